package livemetrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// send issues a ping or post request against the aggregator's current
// endpoint and returns the parsed control-protocol response.
func (a *Aggregator) send(ctx context.Context, op string) (*http.Response, controlResponse, error) {
	url := fmt.Sprintf("%s/QuickPulseService.svc/%s?ikey=%s", a.endpoint.Load(), op, a.ikey.Load())

	var body []byte
	if op == "post" {
		snap := a.GetAndRestart()
		res := a.sampler.sample(ctx)
		b, err := encodeSnapshotBody(snap, res, time.Now())
		if err != nil {
			return nil, controlResponse{}, err
		}
		body = b
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, controlResponse{}, err
	}
	setControlHeaders(req, a.streamID, a.identity.MachineName, a.identity.RoleName, a.identity.InstanceName)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, controlResponse{}, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return resp, controlResponse{Subscribed: false}, nil
	}
	return resp, parseControlResponse(resp), nil
}
