package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
)

// PayPalClient drives card checkouts through the PayPal Orders v2 API.
// It implements port.PayPalGateway.
type PayPalClient struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	frontendURL  string
	cb           *gobreaker.CircuitBreaker
	cfg          resilience.Config

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalClient creates a new PayPalClient.
func NewPayPalClient(httpClient *http.Client, baseURL, clientID, clientSecret, frontendURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *PayPalClient {
	if baseURL == "" {
		baseURL = "https://api-m.sandbox.paypal.com"
	}
	return &PayPalClient{
		httpClient:   httpClient,
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		frontendURL:  frontendURL,
		cb:           cb,
		cfg:          cfg,
	}
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// getAccessToken returns a cached OAuth token, refreshing it when within
// five minutes of expiry.
func (c *PayPalClient) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	httpReq.Header.Set("Authorization", "Basic "+auth)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token endpoint returned status %d", resp.StatusCode)
	}

	var tr paypalTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}

	c.accessToken = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - 5*time.Minute)
	return c.accessToken, nil
}

// CreateOrder opens a PayPal checkout for the given POS order. The POS order
// id travels as custom_id and invoice_id so the capture step can find its way
// back without shared state.
func (c *PayPalClient) CreateOrder(ctx context.Context, orderID string, amount float64, description string) (*domain.CheckoutSession, error) {
	ctx, span := tracer.Start(ctx, "PayPalClient.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var session domain.CheckoutSession

	result, err := c.cb.Execute(func() (any, error) {
		var innerErr error
		innerErr = resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			token, err := c.getAccessToken(ctx)
			if err != nil {
				return err
			}

			orderData := map[string]any{
				"intent": "CAPTURE",
				"purchase_units": []map[string]any{{
					"amount": map[string]string{
						"currency_code": "PHP",
						"value":         fmt.Sprintf("%.2f", amount),
					},
					"description":     description,
					"custom_id":       orderID,
					"invoice_id":      orderID,
					"soft_descriptor": "GENSUGGEST POS",
				}},
				"application_context": map[string]string{
					"return_url":          fmt.Sprintf("%s/payment-success?orderId=%s", c.frontendURL, orderID),
					"cancel_url":          fmt.Sprintf("%s/payment-failed?orderId=%s", c.frontendURL, orderID),
					"brand_name":          "GENSUGGEST POS",
					"landing_page":        "LOGIN",
					"user_action":         "PAY_NOW",
					"shipping_preference": "NO_SHIPPING",
				},
			}
			body, err := json.Marshal(orderData)
			if err != nil {
				return err
			}

			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/checkout/orders", bytes.NewReader(body))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Authorization", "Bearer "+token)
			httpReq.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
				return fmt.Errorf("paypal API returned status %d", resp.StatusCode)
			}

			var or paypalOrderResponse
			if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
				return err
			}
			approveURL := ""
			for _, link := range or.Links {
				if link.Rel == "approve" {
					approveURL = link.Href
					break
				}
			}
			if approveURL == "" {
				return fmt.Errorf("paypal order %s has no approve link", or.ID)
			}
			session = domain.CheckoutSession{SourceID: or.ID, PaymentURL: approveURL}
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &session, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "paypal", Err: err}
	}

	return result.(*domain.CheckoutSession), nil
}

// CaptureOrder captures an approved PayPal order and returns the capture
// outcome with the POS order id recovered from custom_id.
func (c *PayPalClient) CaptureOrder(ctx context.Context, paypalOrderID string) (*domain.PayPalCapture, error) {
	ctx, span := tracer.Start(ctx, "PayPalClient.CaptureOrder")
	defer span.End()
	span.SetAttributes(attribute.String("paypal.order_id", paypalOrderID))

	var capture domain.PayPalCapture

	result, err := c.cb.Execute(func() (any, error) {
		var innerErr error
		innerErr = resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			token, err := c.getAccessToken(ctx)
			if err != nil {
				return err
			}

			path := fmt.Sprintf("%s/v2/checkout/orders/%s/capture", c.baseURL, paypalOrderID)
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, path, bytes.NewReader([]byte("{}")))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Authorization", "Bearer "+token)
			httpReq.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return &domain.ErrNotFound{Resource: "paypal order", ID: paypalOrderID}
			}
			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
				return fmt.Errorf("paypal API returned status %d", resp.StatusCode)
			}

			var or paypalOrderResponse
			if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
				return err
			}
			capture = domain.PayPalCapture{
				PayPalOrderID: or.ID,
				Status:        or.Status,
			}
			if len(or.PurchaseUnits) > 0 {
				capture.POSOrderID = or.PurchaseUnits[0].CustomID
				if caps := or.PurchaseUnits[0].Payments.Captures; len(caps) > 0 {
					capture.CaptureID = caps[0].ID
				}
			}
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &capture, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "paypal", Err: err}
	}

	return result.(*domain.PayPalCapture), nil
}
