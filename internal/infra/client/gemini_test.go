package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/client"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/observability"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/resilience"
)

func testResilienceConfig() resilience.Config {
	return resilience.Config{
		MaxRetries:     0,
		InitialBackoff: time.Millisecond,
	}
}

func geminiResponseWith(text string) string {
	return `{
		"candidates": [{"content": {"parts": [{"text": ` + text + `}]}}],
		"usageMetadata": {"totalTokenCount": 42}
	}`
}

func TestGeminiSuggest_ParsesIDArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-1.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("expected API key in query, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(geminiResponseWith(`"[\"item-1\", \"item-2\"]"`)))
	}))
	defer server.Close()

	c := client.NewGeminiClient(server.Client(), server.URL, "test-key", "gemini-1.5-flash",
		resilience.NewCircuitBreaker("gemini-test"), testResilienceConfig(), observability.NewMetrics())

	ids, err := c.Suggest(context.Background(),
		[]domain.Item{{ID: "item-1", Name: "Coffee", CategoryID: "bev"}},
		[]domain.CartItem{{ID: "item-3"}}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(ids) != 2 || ids[0] != "item-1" || ids[1] != "item-2" {
		t.Errorf("expected [item-1 item-2], got %v", ids)
	}
}

func TestGeminiSuggest_StripsMarkdownFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiResponseWith(`"` + "```json\\n[\\\"item-1\\\"]\\n```" + `"`)))
	}))
	defer server.Close()

	c := client.NewGeminiClient(server.Client(), server.URL, "k", "m",
		resilience.NewCircuitBreaker("gemini-test"), testResilienceConfig(), observability.NewMetrics())

	ids, err := c.Suggest(context.Background(), nil, []domain.CartItem{{ID: "x"}}, nil)
	if err != nil {
		t.Fatalf("expected fenced payload to parse, got %v", err)
	}
	if len(ids) != 1 || ids[0] != "item-1" {
		t.Errorf("expected [item-1], got %v", ids)
	}
}

func TestGeminiSuggest_UnparseablePayloadErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiResponseWith(`"I recommend the coffee!"`)))
	}))
	defer server.Close()

	c := client.NewGeminiClient(server.Client(), server.URL, "k", "m",
		resilience.NewCircuitBreaker("gemini-test"), testResilienceConfig(), observability.NewMetrics())

	var ext *domain.ErrExternalService
	_, err := c.Suggest(context.Background(), nil, []domain.CartItem{{ID: "x"}}, nil)
	if err == nil {
		t.Fatal("expected error for unparseable payload")
	}
	if !errors.As(err, &ext) {
		t.Fatalf("expected external service error, got %v", err)
	}
}

func TestGeminiSuggest_UpstreamErrorWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := client.NewGeminiClient(server.Client(), server.URL, "k", "m",
		resilience.NewCircuitBreaker("gemini-test"), testResilienceConfig(), observability.NewMetrics())

	var ext *domain.ErrExternalService
	_, err := c.Suggest(context.Background(), nil, []domain.CartItem{{ID: "x"}}, nil)
	if !errors.As(err, &ext) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if ext.Service != "gemini" {
		t.Errorf("expected service gemini, got %q", ext.Service)
	}
}

func TestGeminiSuggest_RecordsTokenUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiResponseWith(`"[\"item-1\"]"`)))
	}))
	defer server.Close()

	metrics := observability.NewMetrics()
	c := client.NewGeminiClient(server.Client(), server.URL, "k", "m",
		resilience.NewCircuitBreaker("gemini-test"), testResilienceConfig(), metrics)

	if _, err := c.Suggest(context.Background(), nil, []domain.CartItem{{ID: "x"}}, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := metrics.GetEngineSnapshot().SuggesterTokens; got != 42 {
		t.Errorf("expected 42 suggester tokens recorded, got %f", got)
	}
}
