package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// outcome classifies the result of one HTTP delivery attempt for retry
// dispatch.
type outcome int

const (
	outcomeAck       outcome = iota // 200: acknowledge, clear the batch
	outcomeRetryable                // 408/500/503, any other non-200 status outside 4xx, or network error: backoff + redispatch
	outcomeDropped                  // other 4xx: drop batch, log once per status
)

// httpSender posts an already-encoded (and possibly gzipped) batch body to
// the ingestion endpoint.
type httpSender struct {
	client   *http.Client
	endpoint string
	ikey     string
}

func newHTTPSender(endpoint, ikey string) *httpSender {
	return &httpSender{
		client: &http.Client{
			Timeout: 20 * time.Second, // read timeout
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
			},
		},
		endpoint: endpoint,
		ikey:     ikey,
	}
}

// send issues one delivery attempt and classifies the result. statusCode is
// 0 on a network-level error (no response at all).
func (h *httpSender) send(ctx context.Context, body []byte, gzipped bool) (statusCode int, out outcome, err error) {
	url := h.endpoint
	if h.ikey != "" {
		url += "?ikey=" + h.ikey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, outcomeDropped, fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-json-stream")
	if gzipped {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, outcomeRetryable, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, classifyStatus(resp.StatusCode), nil
}

func classifyStatus(code int) outcome {
	switch code {
	case http.StatusOK:
		return outcomeAck
	case http.StatusRequestTimeout, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return outcomeRetryable
	default:
		if code >= 400 && code < 500 {
			return outcomeDropped
		}
		return outcomeRetryable
	}
}
