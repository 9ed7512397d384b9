package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// analyticsRow maps the customer_analytics table. The whole customer
// summary lives in one JSONB column keyed by customer id, mirroring the
// document shape the aggregator works with.
type analyticsRow struct {
	CustomerID string          `json:"customer_id"`
	Summary    json.RawMessage `json:"summary"`
}

// GetAnalytics returns the stored summary for one customer, or (nil, nil)
// when the customer has no summary yet.
func (c *Client) GetAnalytics(ctx context.Context, customerID string) (*domain.CustomerAnalytics, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAnalytics")
	defer span.End()
	span.SetAttributes(attribute.String("analytics.customer_id", customerID))

	var result *domain.CustomerAnalytics
	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		body, err := c.doGet(ctx, fmt.Sprintf("customer_analytics?customer_id=eq.%s&limit=1", url.QueryEscape(customerID)))
		if err != nil {
			return err
		}
		rows, err := decodeRows[analyticsRow](body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			result = nil
			return nil
		}
		var summary domain.CustomerAnalytics
		if err := json.Unmarshal(rows[0].Summary, &summary); err != nil {
			return err
		}
		summary.CustomerID = rows[0].CustomerID
		result = &summary
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/customer_analytics", Err: err}
	}
	return result, nil
}

// PutAnalytics upserts a customer summary.
func (c *Client) PutAnalytics(ctx context.Context, summary *domain.CustomerAnalytics) error {
	ctx, span := tracer.Start(ctx, "Supabase.PutAnalytics")
	defer span.End()
	span.SetAttributes(attribute.String("analytics.customer_id", summary.CustomerID))

	doc, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	row := analyticsRow{CustomerID: summary.CustomerID, Summary: doc}
	if err := c.doUpsert(ctx, "customer_analytics?on_conflict=customer_id", []analyticsRow{row}); err != nil {
		return &domain.ErrExternalService{Service: "supabase/customer_analytics", Err: err}
	}
	return nil
}

// ListAnalytics returns every stored customer summary.
func (c *Client) ListAnalytics(ctx context.Context) ([]domain.CustomerAnalytics, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListAnalytics")
	defer span.End()

	var summaries []domain.CustomerAnalytics
	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		body, err := c.doGet(ctx, "customer_analytics?order=customer_id.asc")
		if err != nil {
			return err
		}
		rows, err := decodeRows[analyticsRow](body)
		if err != nil {
			return err
		}
		summaries = make([]domain.CustomerAnalytics, 0, len(rows))
		for _, r := range rows {
			var summary domain.CustomerAnalytics
			if err := json.Unmarshal(r.Summary, &summary); err != nil {
				return err
			}
			summary.CustomerID = r.CustomerID
			summaries = append(summaries, summary)
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/customer_analytics", Err: err}
	}
	return summaries, nil
}
