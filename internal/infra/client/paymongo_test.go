package client_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/client"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/resilience"
)

func newPayMongoClient(baseURL string) *client.PayMongoClient {
	return client.NewPayMongoClient(http.DefaultClient, baseURL, "sk_test_123", "whsk_test_456",
		"https://pos.example", resilience.NewCircuitBreaker("paymongo-test"), testResilienceConfig())
}

func TestPayMongoCreateSource_ConvertsToCentavos(t *testing.T) {
	var gotAmount int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Data struct {
				Attributes struct {
					Amount int64 `json:"amount"`
				} `json:"attributes"`
			} `json:"data"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotAmount = req.Data.Attributes.Amount

		w.Write([]byte(`{"data": {"id": "src_1", "attributes": {"redirect": {"checkout_url": "https://pay.example/src_1"}}}}`))
	}))
	defer server.Close()

	c := newPayMongoClient(server.URL)
	session, err := c.CreateSource(context.Background(), "order-1", 99.99, "Ana", "ana@example.com", 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotAmount != 9999 {
		t.Errorf("expected 9999 centavos, got %d", gotAmount)
	}
	if session.SourceID != "src_1" {
		t.Errorf("expected src_1, got %q", session.SourceID)
	}
	if session.PaymentURL != "https://pay.example/src_1" {
		t.Errorf("expected checkout URL, got %q", session.PaymentURL)
	}
}

func TestPayMongoCreateSource_BelowMinimumRejected(t *testing.T) {
	c := newPayMongoClient("http://unused.invalid")

	var validation *domain.ErrValidation
	_, err := c.CreateSource(context.Background(), "order-1", 19.99, "Ana", "ana@example.com", 1)
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error below 20 PHP, got %v", err)
	}
}

func TestPayMongoVerifyWebhookSignature(t *testing.T) {
	c := newPayMongoClient("http://unused.invalid")
	payload := []byte(`{"data": {"attributes": {"type": "source.chargeable"}}}`)

	mac := hmac.New(sha256.New, []byte("whsk_test_456"))
	mac.Write(payload)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !c.VerifyWebhookSignature(payload, valid) {
		t.Error("expected valid signature to verify")
	}
	if c.VerifyWebhookSignature(payload, "deadbeef") {
		t.Error("expected forged signature to fail")
	}
	if c.VerifyWebhookSignature([]byte(`tampered`), valid) {
		t.Error("expected tampered payload to fail")
	}
}
