package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMClientConfig(t *testing.T) {
	cfg := LLMClientConfig(30*time.Second, 8)
	assert.Equal(t, 8, cfg.MaxIdleConnsPerHost)
	assert.Equal(t, 32, cfg.MaxConnsPerHost)
	assert.Equal(t, 30*time.Second, cfg.ResponseHeaderTimeout)

	def := LLMClientConfig(time.Second, 0)
	assert.Equal(t, 4, def.MaxIdleConnsPerHost)
}

func TestNewClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(LLMClientConfig(time.Second, 2))
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 2, transport.MaxIdleConnsPerHost)
	assert.Zero(t, client.Timeout)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
