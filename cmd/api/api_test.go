package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/subsquid/archive-gateway/config"
	"github.com/subsquid/archive-gateway/selection"
)

func TestGatewayConfig(t *testing.T) {
	cfg := &config.ServerConfig{
		EVMSupport:        true,
		IncludeCallEvents: true,
		MaxLimit:          50,
		LoaderWait:        2 * time.Millisecond,
		LoaderMaxBatch:    10,
		MetadataCacheSize: 8,
	}
	g := GatewayConfig(cfg)
	require.Equal(t, selection.Capabilities{EVM: true}, g.Capabilities)
	require.True(t, g.IncludeCallEvents)
	require.Equal(t, 50, g.MaxLimit)
	require.Equal(t, 2*time.Millisecond, g.LoaderWait)
	require.Equal(t, 10, g.LoaderMaxBatch)
	require.EqualValues(t, 8, g.MetadataCacheSize)
}

func TestWriteTimeout(t *testing.T) {
	require.Zero(t, writeTimeout(0))
	require.Equal(t, 35*time.Second, writeTimeout(30*time.Second))
}

func TestInMemoryService(t *testing.T) {
	cfg := &config.ServerConfig{
		Endpoint: "localhost:0",
		Storage:  &config.StorageConfig{Backend: "inmemory"},
	}
	require.NoError(t, cfg.Validate())

	s, err := NewService(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)

	w := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"head": -1}`, w.Body.String())
}
