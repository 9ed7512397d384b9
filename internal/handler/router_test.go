package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/handler"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/observability"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func newTestRouter() http.Handler {
	svcs := handler.Services{
		Auth: service.NewAuthService(nil, "test-secret", time.Hour, zap.NewNop()),
	}
	return handler.NewRouter(svcs, observability.NewMetrics(), "http://localhost:3000", zap.NewNop())
}

func TestHealthz(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics_ExposesApplicationCounters(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.IncrOrder("cash")

	svcs := handler.Services{
		Auth: service.NewAuthService(nil, "test-secret", time.Hour, zap.NewNop()),
	}
	router := handler.NewRouter(svcs, metrics, "http://localhost:3000", zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pos_orders_total") {
		t.Error("expected pos_orders_total in the scrape output")
	}
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/orders/admin", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
}

func TestAdminRoutes_RejectNonAdmin(t *testing.T) {
	router := newTestRouter()

	claims := service.JWTClaims{
		Sub:  "user-1",
		Role: "customer",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "pos-api",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin role, got %d", rec.Code)
	}
}

func TestAdminRoutes_RejectForgedToken(t *testing.T) {
	router := newTestRouter()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, service.JWTClaims{
		Sub:  "user-1",
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for forged token, got %d", rec.Code)
	}
}
