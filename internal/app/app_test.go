package app

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/fairtix/internal/config"
	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/signature"
)

func memoryConfig(admin domain.Identity) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Store:  config.StoreConfig{Backend: config.BackendMemory, LockTimeout: time.Second},
		Bootstrap: config.BootstrapConfig{
			Admin:        admin,
			RefundFeeBps: 500,
		},
		Tickets: config.TicketsConfig{
			PurchaseLimit:   2,
			RateLimit:       10,
			RateWindow:      time.Minute,
			IdempotencyTTL:  time.Hour,
			EventSummaryTTL: time.Minute,
		},
	}
}

func TestNew_MemoryBackendWithoutRedis(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	priv, admin, err := signature.GenerateKey()
	require.NoError(t, err)

	a, err := New(context.Background(), memoryConfig(admin), logger)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.pubsub)

	req := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	req.Header.Set("X-Identity", admin.String())
	w := httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	ts := time.Now().Unix()
	envelope := signature.Sign(priv, signature.RequestDigest(http.MethodGet, "/admin/status", ts, nil))
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", hex.EncodeToString(envelope))
	w = httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"owner":"`+admin.String()+`"`)

	w = httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}
