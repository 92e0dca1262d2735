package masterserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", 0)
	assert.Equal(t, "http://localhost:5000", c.baseURL)
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)
}

func TestPublish(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"ok", "OK", false},
		{"ok with newline", "OK\r\n", false},
		{"ok with prefix", "updated OK\n", false},
		{"router failure", "FAIL_ROUTER", true},
		{"empty", "", true},
		{"ok in middle", "OK but not really", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, PublishPath, r.URL.Path)
				assert.Equal(t, http.MethodGet, r.Method)
				got = map[string]string{}
				for k := range r.URL.Query() {
					got[k] = r.URL.Query().Get(k)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := New(server.URL, time.Second)
			err := c.Publish(context.Background(), map[string]string{"serverTitle": "a b&c", "gameStatus": "0"})

			assert.Equal(t, "a b&c", got["serverTitle"])
			assert.Equal(t, "0", got["gameStatus"])
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var rej *RejectedError
			require.True(t, errors.As(err, &rej))
			assert.NotContains(t, rej.Body, "\n")
		})
	}
}

func TestPublish_RejectedBodyKept(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("FAIL_ROUTER\n"))
	}))
	defer server.Close()

	err := New(server.URL, time.Second).Publish(context.Background(), nil)
	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "FAIL_ROUTER", rej.Body)
	assert.Contains(t, err.Error(), "FAIL_ROUTER")
}

func TestPublish_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := server.URL
	server.Close()

	err := New(addr, time.Second).Publish(context.Background(), nil)
	require.Error(t, err)
	var rej *RejectedError
	assert.False(t, errors.As(err, &rej))
}

func TestHealthcheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	assert.Error(t, New(server.URL, time.Second).Healthcheck(context.Background()))
}
