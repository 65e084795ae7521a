package livemetrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// dotNetEpochTicks is the tick offset between the Unix epoch and
// .NET's DateTime.MinValue, in 100ns ticks.
const dotNetEpochTicks = 621355968000000000

// transmissionTimeTicks converts t to ticks since the .NET epoch:
// millis*10000 + 621355968000000000.
func transmissionTimeTicks(t time.Time) int64 {
	return t.UnixMilli()*10000 + dotNetEpochTicks
}

const invariantVersion = "1"

// setControlHeaders sets the headers every ping/post request carries.
func setControlHeaders(req *http.Request, streamID, machineName, roleName, instanceName string) {
	req.Header.Set("x-ms-qps-stream-id", streamID)
	req.Header.Set("x-ms-qps-machine-name", machineName)
	req.Header.Set("x-ms-qps-role-name", roleName)
	req.Header.Set("x-ms-qps-instance-name", instanceName)
	req.Header.Set("x-ms-qps-transmission-time", fmt.Sprintf("%d", transmissionTimeTicks(time.Now())))
	req.Header.Set("x-ms-qps-invariant-version", invariantVersion)
	req.Header.Set("Content-Type", "application/json")
}

// controlResponse is what the ping/post response headers drive.
type controlResponse struct {
	Subscribed      bool
	PollingInterval time.Duration
	RedirectTo      string
}

func parseControlResponse(resp *http.Response) controlResponse {
	out := controlResponse{Subscribed: resp.Header.Get("x-ms-qps-subscribed") == "true"}
	if hint := resp.Header.Get("x-ms-qps-service-polling-interval-hint"); hint != "" {
		if ms, err := parsePositiveMillis(hint); err == nil {
			out.PollingInterval = time.Duration(ms) * time.Millisecond
		}
	}
	out.RedirectTo = resp.Header.Get("x-ms-qps-service-endpoint-redirect")
	return out
}

func parsePositiveMillis(s string) (int64, error) {
	var ms int64
	_, err := fmt.Sscanf(s, "%d", &ms)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid polling interval hint %q", s)
	}
	return ms, nil
}

// snapshotBody is the JSON document posted while Streaming: a timestamp,
// the decoded counters, and machine resource samples.
type snapshotBody struct {
	Timestamp                string  `json:"Timestamp"`
	Requests                 int64   `json:"Requests"`
	RequestsDurationMs       int64   `json:"RequestsDurationMs"`
	UnsuccessfulRequests     int32   `json:"UnsuccessfulRequests"`
	Dependencies             int64   `json:"Dependencies"`
	DependenciesDurationMs   int64   `json:"DependenciesDurationMs"`
	UnsuccessfulDependencies int32   `json:"UnsuccessfulDependencies"`
	Exceptions               int32   `json:"Exceptions"`
	CPUUsage                 float64 `json:"CPUUsage"`
	HeapCommittedBytes       uint64  `json:"HeapCommittedBytes"`
}

func encodeSnapshotBody(snap Snapshot, res resourceSample, at time.Time) ([]byte, error) {
	body := snapshotBody{
		Timestamp:                at.UTC().Format(time.RFC3339Nano),
		Requests:                 snap.Requests,
		RequestsDurationMs:       snap.RequestsDurationMs,
		UnsuccessfulRequests:     snap.UnsuccessfulRequests,
		Dependencies:             snap.Dependencies,
		DependenciesDurationMs:   snap.DependenciesDurationMs,
		UnsuccessfulDependencies: snap.UnsuccessfulDependencies,
		Exceptions:               snap.Exceptions,
		CPUUsage:                 res.cpuPercent,
		HeapCommittedBytes:       res.heapCommitted,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
