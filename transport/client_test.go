package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSenderClassifiesStatus(t *testing.T) {
	for _, tt := range []struct {
		name   string
		status int
		want   outcome
	}{
		{"ok", http.StatusOK, outcomeAck},
		{"timeout", http.StatusRequestTimeout, outcomeRetryable},
		{"server-error", http.StatusInternalServerError, outcomeRetryable},
		{"unavailable", http.StatusServiceUnavailable, outcomeRetryable},
		{"bad-request", http.StatusBadRequest, outcomeDropped},
		{"forbidden", http.StatusForbidden, outcomeDropped},
	} {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			sender := newHTTPSender(srv.URL, "ikey-1")
			status, out, err := sender.send(context.Background(), []byte(`{}`), false)
			require.NoError(t, err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestHTTPSenderNetworkError(t *testing.T) {
	sender := newHTTPSender("http://127.0.0.1:1", "ikey-1")
	_, out, err := sender.send(context.Background(), []byte(`{}`), false)
	assert.Error(t, err)
	assert.Equal(t, outcomeRetryable, out)
}

func TestHTTPSenderSetsIKeyAndEncoding(t *testing.T) {
	var gotQuery, gotEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotEncoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := newHTTPSender(srv.URL, "ikey-1")
	_, out, err := sender.send(context.Background(), []byte(`{}`), true)
	require.NoError(t, err)
	assert.Equal(t, outcomeAck, out)
	assert.Equal(t, "ikey=ikey-1", gotQuery)
	assert.Equal(t, "gzip", gotEncoding)
}
