package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Domenick1991/flightdesk/config"
	"github.com/Domenick1991/flightdesk/internal/payment"
	"github.com/Domenick1991/flightdesk/internal/service/webhook"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Driver = "memory"
	cfg.Supplier.BaseURL = "http://127.0.0.1:1"
	cfg.GRPC.Address = "127.0.0.1:0"
	cfg.HTTP.SwaggerDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.HTTP.SwaggerDir, "doc.json"), []byte(`{"swagger":"2.0"}`), 0o600))
	return cfg
}

func TestNewServers_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := memoryConfig(t)
	log := zap.NewNop()

	deps, err := NewDeps(ctx, cfg, log)
	require.NoError(t, err)
	defer deps.Close()

	assert.Nil(t, deps.Producer)

	searches := deps.SearchService(cfg, log)
	defer searches.Close()
	bookings := deps.BookingService(cfg, log)

	s, err := newServers(ctx, cfg, log, Services{
		Searches: searches,
		Bookings: bookings,
		Webhooks: webhook.NewIngress(bookings, deps.Dedupe, log),
		Verifier: payment.NewVerifier("secret"),
	})
	require.NoError(t, err)
	defer s.grpcServer.Stop()

	tests := []struct {
		name   string
		method string
		path   string
		code   int
	}{
		{"health", http.MethodGet, "/healthz", http.StatusOK},
		{"unknown booking", http.MethodGet, "/api/v1/bookings/BK20261019000042", http.StatusNotFound},
		{"unknown search", http.MethodGet, "/api/v1/searches/nope", http.StatusNotFound},
		{"swagger document", http.MethodGet, "/swagger/doc.json", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			s.httpServer.Handler.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestNewDeps_PostgresUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.Port = 1
	cfg.Supplier.BaseURL = "http://127.0.0.1:1"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDeps(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
}
