package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// --- Orders (implements port.OrderStore) ---

// orderRow maps the orders table. The delivery address is stored as a
// JSONB document, everything else as flat columns.
type orderRow struct {
	ID                   string          `json:"id,omitempty"`
	UserID               string          `json:"user_id"`
	TotalPrice           float64         `json:"total_price"`
	OrderType            string          `json:"order_type"`
	OrderStatus          string          `json:"order_status"`
	PaymentMethod        string          `json:"payment_method"`
	PaymentStatus        string          `json:"payment_status"`
	DeliveryAddress      json.RawMessage `json:"delivery_address,omitempty"`
	DeliveryInstructions string          `json:"delivery_instructions,omitempty"`
	CustomerName         string          `json:"customer_name"`
	CustomerEmail        string          `json:"customer_email"`
	CustomerPhone        string          `json:"customer_phone,omitempty"`
	PaymentSourceID      string          `json:"payment_source_id,omitempty"`
	PayPalOrderID        string          `json:"paypal_order_id,omitempty"`
	PaymentTransactionID string          `json:"payment_transaction_id,omitempty"`
	AdminNotes           string          `json:"admin_notes,omitempty"`
	CreatedAt            time.Time       `json:"created_at,omitempty"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	FailedAt             *time.Time      `json:"failed_at,omitempty"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
}

// orderItemRow maps the order_items table: one row per purchased line.
// item_name and category_id are denormalized at order time so analytics
// survive later catalog deletions.
type orderItemRow struct {
	ID         string  `json:"id,omitempty"`
	OrderID    string  `json:"order_id"`
	ItemID     string  `json:"item_id"`
	ItemName   string  `json:"item_name"`
	CategoryID string  `json:"category_id,omitempty"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
}

func (r orderRow) toDomain(lines []domain.OrderLine) domain.Order {
	o := domain.Order{
		ID:                   r.ID,
		UserID:               r.UserID,
		Items:                lines,
		TotalPrice:           r.TotalPrice,
		OrderType:            r.OrderType,
		OrderStatus:          r.OrderStatus,
		PaymentMethod:        r.PaymentMethod,
		PaymentStatus:        r.PaymentStatus,
		DeliveryInstructions: r.DeliveryInstructions,
		CustomerName:         r.CustomerName,
		CustomerEmail:        r.CustomerEmail,
		CustomerPhone:        r.CustomerPhone,
		PaymentSourceID:      r.PaymentSourceID,
		PayPalOrderID:        r.PayPalOrderID,
		PaymentTransactionID: r.PaymentTransactionID,
		AdminNotes:           r.AdminNotes,
		CreatedAt:            r.CreatedAt,
		PaidAt:               r.PaidAt,
		FailedAt:             r.FailedAt,
		CompletedAt:          r.CompletedAt,
	}
	if len(r.DeliveryAddress) > 0 && string(r.DeliveryAddress) != "null" {
		var addr domain.DeliveryAddress
		if err := json.Unmarshal(r.DeliveryAddress, &addr); err == nil {
			o.DeliveryAddress = &addr
		}
	}
	return o
}

// CreateOrder inserts the order row plus one order_items row per line.
func (c *Client) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.user_id", order.UserID))

	row := orderRow{
		ID:                   order.ID,
		UserID:               order.UserID,
		TotalPrice:           order.TotalPrice,
		OrderType:            order.OrderType,
		OrderStatus:          order.OrderStatus,
		PaymentMethod:        order.PaymentMethod,
		PaymentStatus:        order.PaymentStatus,
		DeliveryInstructions: order.DeliveryInstructions,
		CustomerName:         order.CustomerName,
		CustomerEmail:        order.CustomerEmail,
		CustomerPhone:        order.CustomerPhone,
		CreatedAt:            order.CreatedAt,
	}
	if order.DeliveryAddress != nil {
		addr, err := json.Marshal(order.DeliveryAddress)
		if err != nil {
			return nil, err
		}
		row.DeliveryAddress = addr
	}

	body, err := c.doPost(ctx, "orders", []orderRow{row})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	rows, err := decodeRows[orderRow](body)
	if err != nil || len(rows) == 0 {
		return nil, &domain.ErrExternalService{Service: "supabase/orders", Err: fmt.Errorf("empty insert response")}
	}

	lineRows := make([]orderItemRow, 0, len(order.Items))
	for _, line := range order.Items {
		lineRows = append(lineRows, orderItemRow{
			OrderID:    rows[0].ID,
			ItemID:     line.ItemID,
			ItemName:   line.Name,
			CategoryID: line.CategoryID,
			Price:      line.Price,
			Quantity:   line.Quantity,
		})
	}
	if len(lineRows) > 0 {
		if _, err := c.doPost(ctx, "order_items", lineRows); err != nil {
			return nil, &domain.ErrExternalService{Service: "supabase/order_items", Err: err}
		}
	}

	created := rows[0].toDomain(order.Items)
	return &created, nil
}

// GetOrder fetches one order with its lines.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var order *domain.Order
	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		body, err := c.doGet(ctx, fmt.Sprintf("orders?id=eq.%s&limit=1", url.QueryEscape(orderID)))
		if err != nil {
			return err
		}
		rows, err := decodeRows[orderRow](body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "order", ID: orderID}
		}

		lines, err := c.listOrderLines(ctx, orderID)
		if err != nil {
			return err
		}
		o := rows[0].toDomain(lines)
		order = &o
		return nil
	})
	if err != nil {
		if nf, ok := asNotFound(err); ok {
			return nil, nf
		}
		return nil, &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	return order, nil
}

// ListOrdersByUser returns all of one user's orders, oldest first, with
// their lines attached.
func (c *Client) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListOrdersByUser")
	defer span.End()
	span.SetAttributes(attribute.String("order.user_id", userID))

	path := fmt.Sprintf("orders?user_id=eq.%s&order=created_at.asc", url.QueryEscape(userID))
	return c.listOrders(ctx, path)
}

// ListAllOrders returns every order, newest first (admin view).
func (c *Client) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListAllOrders")
	defer span.End()

	return c.listOrders(ctx, "orders?order=created_at.desc")
}

func (c *Client) listOrders(ctx context.Context, path string) ([]domain.Order, error) {
	var orders []domain.Order
	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		rows, err := decodeRows[orderRow](body)
		if err != nil {
			return err
		}

		lineBody, err := c.doGet(ctx, "order_items?order=order_id.asc")
		if err != nil {
			return err
		}
		lineRows, err := decodeRows[orderItemRow](lineBody)
		if err != nil {
			return err
		}
		linesByOrder := make(map[string][]domain.OrderLine, len(rows))
		for _, lr := range lineRows {
			linesByOrder[lr.OrderID] = append(linesByOrder[lr.OrderID], domain.OrderLine{
				ItemID:     lr.ItemID,
				Name:       lr.ItemName,
				CategoryID: lr.CategoryID,
				Price:      lr.Price,
				Quantity:   lr.Quantity,
			})
		}

		orders = make([]domain.Order, 0, len(rows))
		for _, r := range rows {
			orders = append(orders, r.toDomain(linesByOrder[r.ID]))
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	return orders, nil
}

func (c *Client) listOrderLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	body, err := c.doGet(ctx, fmt.Sprintf("order_items?order_id=eq.%s", url.QueryEscape(orderID)))
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows[orderItemRow](body)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.OrderLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, domain.OrderLine{
			ItemID:     r.ItemID,
			Name:       r.ItemName,
			CategoryID: r.CategoryID,
			Price:      r.Price,
			Quantity:   r.Quantity,
		})
	}
	return lines, nil
}

// UpdateOrder applies a partial update to one order.
func (c *Client) UpdateOrder(ctx context.Context, orderID string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	if err := c.doPatch(ctx, fmt.Sprintf("orders?id=eq.%s", url.QueryEscape(orderID)), updates); err != nil {
		return &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	return nil
}

// DeleteOrder removes an order and its lines.
func (c *Client) DeleteOrder(ctx context.Context, orderID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	if err := c.doDelete(ctx, fmt.Sprintf("order_items?order_id=eq.%s", url.QueryEscape(orderID))); err != nil {
		return &domain.ErrExternalService{Service: "supabase/order_items", Err: err}
	}
	if err := c.doDelete(ctx, fmt.Sprintf("orders?id=eq.%s", url.QueryEscape(orderID))); err != nil {
		return &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	return nil
}

// ListAllTransactions scans orders and order_items once and returns every
// order reduced to its item IDs, plus the itemID -> name index built from
// the same scan. One entry per line, so an item bought on two lines of the
// same order appears twice. The rule engine tests containment, not
// multiplicity, so duplicates are harmless there, while the recommendation
// fallback deliberately counts per line.
func (c *Client) ListAllTransactions(ctx context.Context) ([]domain.Transaction, map[string]string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListAllTransactions")
	defer span.End()

	var (
		transactions []domain.Transaction
		itemNames    map[string]string
	)
	err := resilience.Execute(ctx, c.cb, c.cfg, func() error {
		orderBody, err := c.doGet(ctx, "orders?select=id,total_price&order=created_at.asc")
		if err != nil {
			return err
		}
		orderRows, err := decodeRows[orderRow](orderBody)
		if err != nil {
			return err
		}

		lineBody, err := c.doGet(ctx, "order_items?select=order_id,item_id,item_name")
		if err != nil {
			return err
		}
		lineRows, err := decodeRows[orderItemRow](lineBody)
		if err != nil {
			return err
		}

		index := make(map[string]int, len(orderRows))
		transactions = make([]domain.Transaction, 0, len(orderRows))
		for i, r := range orderRows {
			index[r.ID] = i
			transactions = append(transactions, domain.Transaction{
				OrderID:     r.ID,
				TotalAmount: r.TotalPrice,
			})
		}

		itemNames = make(map[string]string)
		for _, lr := range lineRows {
			i, ok := index[lr.OrderID]
			if !ok {
				continue // orphan line, skip
			}
			transactions[i].ItemIDs = append(transactions[i].ItemIDs, lr.ItemID)
			itemNames[lr.ItemID] = lr.ItemName
		}
		return nil
	})
	if err != nil {
		return nil, nil, &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	return transactions, itemNames, nil
}
