package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// PayMongoClient drives GCash checkouts through the PayMongo Sources API.
// It implements port.GCashGateway.
type PayMongoClient struct {
	httpClient    *http.Client
	baseURL       string
	secretKey     string
	webhookSecret string
	frontendURL   string
	cb            *gobreaker.CircuitBreaker
	cfg           resilience.Config
}

// NewPayMongoClient creates a new PayMongoClient. baseURL is overridable for
// tests; pass "" for the public API.
func NewPayMongoClient(httpClient *http.Client, baseURL, secretKey, webhookSecret, frontendURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *PayMongoClient {
	if baseURL == "" {
		baseURL = "https://api.paymongo.com/v1"
	}
	return &PayMongoClient{
		httpClient:    httpClient,
		baseURL:       baseURL,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		frontendURL:   frontendURL,
		cb:            cb,
		cfg:           cfg,
	}
}

type paymongoSourceRequest struct {
	Data struct {
		Attributes struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Type     string `json:"type"`
			Redirect struct {
				Success string `json:"success"`
				Failed  string `json:"failed"`
			} `json:"redirect"`
			Description string            `json:"description"`
			Metadata    map[string]string `json:"metadata"`
		} `json:"attributes"`
	} `json:"data"`
}

type paymongoSourceResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status   string `json:"status"`
			Redirect struct {
				CheckoutURL string `json:"checkout_url"`
			} `json:"redirect"`
		} `json:"attributes"`
	} `json:"data"`
}

// CreateSource opens a GCash checkout for the given order. Amounts are pesos;
// PayMongo wants centavos and refuses anything under 2000 of them, so the
// minimum is enforced here before the wire call.
func (c *PayMongoClient) CreateSource(ctx context.Context, orderID string, amount float64, customerName, customerEmail string, itemCount int) (*domain.CheckoutSession, error) {
	ctx, span := tracer.Start(ctx, "PayMongoClient.CreateSource")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	centavos := int64(amount*100 + 0.5)
	if amount < domain.GCashMinimumAmount {
		return nil, &domain.ErrValidation{Field: "totalPrice", Message: fmt.Sprintf("minimum amount for GCash payments is %.0f PHP", domain.GCashMinimumAmount)}
	}

	var session domain.CheckoutSession

	result, err := c.cb.Execute(func() (any, error) {
		var innerErr error
		innerErr = resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			var reqBody paymongoSourceRequest
			attrs := &reqBody.Data.Attributes
			attrs.Amount = centavos
			attrs.Currency = "PHP"
			attrs.Type = "gcash"
			attrs.Redirect.Success = fmt.Sprintf("%s/payment-success?orderId=%s", c.frontendURL, orderID)
			attrs.Redirect.Failed = fmt.Sprintf("%s/payment-failed?orderId=%s", c.frontendURL, orderID)
			attrs.Description = fmt.Sprintf("GENSUGGEST POS Order - %d items", itemCount)
			attrs.Metadata = map[string]string{
				"order_id":       orderID,
				"customer_name":  customerName,
				"customer_email": customerEmail,
			}

			body, err := json.Marshal(reqBody)
			if err != nil {
				return err
			}

			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sources", bytes.NewReader(body))
			if err != nil {
				return err
			}
			c.setHeaders(httpReq)

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
				return fmt.Errorf("paymongo API returned status %d", resp.StatusCode)
			}

			var sr paymongoSourceResponse
			if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
				return err
			}
			session = domain.CheckoutSession{
				SourceID:   sr.Data.ID,
				PaymentURL: sr.Data.Attributes.Redirect.CheckoutURL,
			}
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &session, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "paymongo", Err: err}
	}

	return &domain.CheckoutSession{
		SourceID:   result.(*domain.CheckoutSession).SourceID,
		PaymentURL: result.(*domain.CheckoutSession).PaymentURL,
	}, nil
}

// GetSourceStatus polls the state of a checkout source.
func (c *PayMongoClient) GetSourceStatus(ctx context.Context, sourceID string) (*domain.PaymentSourceStatus, error) {
	ctx, span := tracer.Start(ctx, "PayMongoClient.GetSourceStatus")
	defer span.End()
	span.SetAttributes(attribute.String("payment.source_id", sourceID))

	var status domain.PaymentSourceStatus

	result, err := c.cb.Execute(func() (any, error) {
		var innerErr error
		innerErr = resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sources/"+sourceID, nil)
			if err != nil {
				return err
			}
			c.setHeaders(httpReq)

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return &domain.ErrNotFound{Resource: "payment source", ID: sourceID}
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("paymongo API returned status %d", resp.StatusCode)
			}

			var sr paymongoSourceResponse
			if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
				return err
			}
			status = domain.PaymentSourceStatus{
				SourceID: sr.Data.ID,
				Status:   sr.Data.Attributes.Status,
			}
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &status, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "paymongo", Err: err}
	}

	return result.(*domain.PaymentSourceStatus), nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 hex signature PayMongo sends
// over each webhook payload.
func (c *PayMongoClient) VerifyWebhookSignature(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *PayMongoClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.secretKey+":")))
}
