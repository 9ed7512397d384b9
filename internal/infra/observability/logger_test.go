package observability_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/observability"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serveLogged(t *testing.T, path string, status int) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)

	h := observability.ZapLoggerMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	return logs
}

func TestZapLoggerMiddleware_Levels(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		status int
		want   zapcore.Level
	}{
		{"api request", "/api/items", http.StatusOK, zapcore.InfoLevel},
		{"client error", "/api/items/missing", http.StatusNotFound, zapcore.WarnLevel},
		{"server error", "/api/orders", http.StatusInternalServerError, zapcore.ErrorLevel},
		{"metrics scrape", "/metrics", http.StatusOK, zapcore.DebugLevel},
		{"liveness probe", "/healthz", http.StatusOK, zapcore.DebugLevel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logs := serveLogged(t, tc.path, tc.status)
			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("expected one log entry, got %d", len(entries))
			}
			if entries[0].Level != tc.want {
				t.Errorf("expected level %s for %s %d, got %s",
					tc.want, tc.path, tc.status, entries[0].Level)
			}
		})
	}
}

func TestZapLoggerMiddleware_FailedProbeStillWarns(t *testing.T) {
	logs := serveLogged(t, "/healthz", http.StatusServiceUnavailable)
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("expected a failing probe to log at Error, got %s", entries[0].Level)
	}
}
