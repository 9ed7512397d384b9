package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/observability"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// GeminiClient calls the Google Generative Language API to suggest
// cross-sell items. It implements port.Suggester.
type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	metrics    *observability.Metrics
}

// NewGeminiClient creates a new GeminiClient. baseURL is overridable for tests;
// pass "" for the public endpoint.
func NewGeminiClient(httpClient *http.Client, baseURL, apiKey, model string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics) *GeminiClient {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &GeminiClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		cb:         cb,
		cfg:        cfg,
		metrics:    metrics,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// promptItem is the reduced catalog entry embedded in the prompt.
type promptItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CategoryID string `json:"categoryId"`
}

// Suggest asks the model for up to 5 item IDs given the catalog, the current
// cart, and the customer's recent history. The model wraps its JSON in
// ```json fences often enough that stripping them is part of the contract;
// anything still unparseable after that comes back as an error so the caller
// can fall back.
func (c *GeminiClient) Suggest(ctx context.Context, catalog []domain.Item, cart, history []domain.CartItem) ([]string, error) {
	ctx, span := tracer.Start(ctx, "GeminiClient.Suggest")
	defer span.End()
	span.SetAttributes(
		attribute.Int("catalog.size", len(catalog)),
		attribute.Int("cart.size", len(cart)),
	)

	prompt, err := buildPrompt(catalog, cart, history)
	if err != nil {
		return nil, err
	}

	var ids []string

	result, err := c.cb.Execute(func() (any, error) {
		var innerErr error
		innerErr = resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := json.Marshal(geminiRequest{
				Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
			})
			if err != nil {
				return err
			}

			url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("gemini API returned status %d", resp.StatusCode)
			}

			var gr geminiResponse
			if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
				return err
			}
			if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
				return fmt.Errorf("gemini API returned no candidates")
			}

			parsed, err := parseSuggestionIDs(gr.Candidates[0].Content.Parts[0].Text)
			if err != nil {
				return err
			}
			ids = parsed
			span.SetAttributes(attribute.Int("gemini.total_tokens", gr.UsageMetadata.TotalTokenCount))
			c.metrics.RecordSuggesterTokens(gr.UsageMetadata.TotalTokenCount)
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return ids, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "gemini", Err: err}
	}

	return result.([]string), nil
}

func buildPrompt(catalog []domain.Item, cart, history []domain.CartItem) (string, error) {
	items := make([]promptItem, 0, len(catalog))
	for _, it := range catalog {
		items = append(items, promptItem{ID: it.ID, Name: it.Name, CategoryID: it.CategoryID})
	}
	catalogJSON, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	cartJSON, err := json.Marshal(cart)
	if err != nil {
		return "", err
	}
	if history == nil {
		history = []domain.CartItem{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are an expert AI assistant for a Point-of-Sale system in a retail store.
Your task is to recommend items to a customer based on their current shopping cart and purchase history.

Here is the complete list of all available items in the store, in JSON format:
%s

Here is the customer's current shopping cart, as an array of item objects:
%s

Here is the customer's recent purchase history, as an array of item objects (if available):
%s

Based on all this information, please recommend up to 5 additional items for the customer.
Your response MUST be a valid JSON array of strings, where each string is the ID of the recommended item.
Do not include any items that are already in the customer's current cart.
Do not include any explanatory text, just the JSON array.

Example response: ["item_id_1", "item_id_2", "item_id_3"]`,
		catalogJSON, cartJSON, historyJSON), nil
}

// parseSuggestionIDs strips markdown code fences and decodes the ID array.
func parseSuggestionIDs(text string) ([]string, error) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var ids []string
	if err := json.Unmarshal([]byte(cleaned), &ids); err != nil {
		return nil, fmt.Errorf("unparseable suggestion payload: %w", err)
	}
	return ids, nil
}
