package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/observability"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService creates and manages orders, drives the payment gateways, and
// feeds each completed purchase into the analytics aggregator.
type OrderService struct {
	store     port.OrderStore
	catalog   port.CatalogStore
	analytics *AnalyticsService
	gcash     port.GCashGateway
	paypal    port.PayPalGateway
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(store port.OrderStore, catalog port.CatalogStore, analytics *AnalyticsService, gcash port.GCashGateway, paypal port.PayPalGateway, metrics *observability.Metrics, logger *zap.Logger) *OrderService {
	return &OrderService{
		store:     store,
		catalog:   catalog,
		analytics: analytics,
		gcash:     gcash,
		paypal:    paypal,
		metrics:   metrics,
		logger:    logger,
	}
}

func validateCreateOrder(req *domain.CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return &domain.ErrValidation{Field: "items", Message: "must not be empty"}
	}
	if req.TotalPrice <= 0 {
		return &domain.ErrValidation{Field: "totalPrice", Message: "must be positive"}
	}
	if req.CustomerName == "" {
		return &domain.ErrValidation{Field: "customerName", Message: "must not be empty"}
	}
	if req.CustomerEmail == "" {
		return &domain.ErrValidation{Field: "customerEmail", Message: "must not be empty"}
	}
	switch req.OrderType {
	case domain.OrderTypeDineIn, domain.OrderTypeTakeout:
	case domain.OrderTypeDelivery:
		if req.DeliveryAddress == nil || req.DeliveryAddress.Street == "" || req.DeliveryAddress.City == "" {
			return &domain.ErrValidation{Field: "deliveryAddress", Message: "street and city are required for delivery orders"}
		}
	default:
		return &domain.ErrValidation{Field: "orderType", Message: fmt.Sprintf("unknown order type %q", req.OrderType)}
	}
	switch req.PaymentMethod {
	case domain.PaymentMethodCash, domain.PaymentMethodGCash, domain.PaymentMethodPayPal:
	default:
		return &domain.ErrValidation{Field: "paymentMethod", Message: fmt.Sprintf("unknown payment method %q", req.PaymentMethod)}
	}
	if req.PaymentMethod == domain.PaymentMethodGCash && req.TotalPrice < domain.GCashMinimumAmount {
		return &domain.ErrValidation{Field: "totalPrice", Message: fmt.Sprintf("minimum amount for GCash payments is %.0f PHP", domain.GCashMinimumAmount)}
	}
	return nil
}

// CreateOrder persists a new order and, for gateway payments, opens a
// checkout session. A gateway failure rolls the stored order back so no
// unpayable order lingers. Cash orders are paid immediately and recorded
// into the customer's analytics; an analytics failure never fails the order.
func (s *OrderService) CreateOrder(ctx context.Context, req *domain.CreateOrderRequest) (*domain.OrderCreationResult, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.payment_method", req.PaymentMethod),
		attribute.Int("order.lines", len(req.Items)),
	)

	if err := validateCreateOrder(req); err != nil {
		return nil, err
	}

	// Fill line names and categories from the catalog; a deleted item is
	// rejected here rather than surfacing later in payment or analytics.
	for i := range req.Items {
		line := &req.Items[i]
		if line.Quantity < 1 {
			line.Quantity = 1
		}
		if line.Name != "" && line.CategoryID != "" {
			continue
		}
		item, err := s.catalog.GetItem(ctx, line.ItemID)
		if err != nil {
			return nil, err
		}
		line.Name = item.Name
		line.CategoryID = item.CategoryID
	}

	order := &domain.Order{
		UserID:               req.UserID,
		Items:                req.Items,
		TotalPrice:           req.TotalPrice,
		OrderType:            req.OrderType,
		OrderStatus:          "pending",
		PaymentMethod:        req.PaymentMethod,
		PaymentStatus:        domain.PaymentStatusPending,
		DeliveryAddress:      req.DeliveryAddress,
		DeliveryInstructions: req.DeliveryInstructions,
		CustomerName:         req.CustomerName,
		CustomerEmail:        req.CustomerEmail,
		CustomerPhone:        req.CustomerPhone,
		CreatedAt:            time.Now().UTC(),
	}

	created, err := s.store.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	result := &domain.OrderCreationResult{Order: created}

	switch req.PaymentMethod {
	case domain.PaymentMethodCash:
		now := time.Now().UTC()
		updates := map[string]any{
			"payment_status": domain.PaymentStatusPaid,
			"order_status":   "preparing",
			"paid_at":        now,
		}
		if err := s.store.UpdateOrder(ctx, created.ID, updates); err != nil {
			return nil, err
		}
		created.PaymentStatus = domain.PaymentStatusPaid
		created.OrderStatus = "preparing"
		created.PaidAt = &now
		s.recordAnalytics(ctx, created)

	case domain.PaymentMethodGCash:
		session, err := s.gcash.CreateSource(ctx, created.ID, created.TotalPrice, created.CustomerName, created.CustomerEmail, len(created.Items))
		if err != nil {
			s.rollbackOrder(ctx, created.ID)
			return nil, err
		}
		if err := s.store.UpdateOrder(ctx, created.ID, map[string]any{"payment_source_id": session.SourceID}); err != nil {
			return nil, err
		}
		created.PaymentSourceID = session.SourceID
		result.PaymentURL = session.PaymentURL
		result.PaymentSourceID = session.SourceID

	case domain.PaymentMethodPayPal:
		description := fmt.Sprintf("GENSUGGEST POS Order - %d items", len(created.Items))
		session, err := s.paypal.CreateOrder(ctx, created.ID, created.TotalPrice, description)
		if err != nil {
			s.rollbackOrder(ctx, created.ID)
			return nil, err
		}
		if err := s.store.UpdateOrder(ctx, created.ID, map[string]any{"paypal_order_id": session.SourceID}); err != nil {
			return nil, err
		}
		created.PayPalOrderID = session.SourceID
		result.PaymentURL = session.PaymentURL
	}

	s.metrics.IncrOrder(req.PaymentMethod)
	s.logger.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("payment_method", req.PaymentMethod),
		zap.Float64("total", created.TotalPrice))
	return result, nil
}

// rollbackOrder removes an order whose payment session could not be opened.
func (s *OrderService) rollbackOrder(ctx context.Context, orderID string) {
	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		s.logger.Error("order rollback failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

// recordAnalytics feeds a paid order into the customer's summary. Failures
// are logged, never propagated.
func (s *OrderService) recordAnalytics(ctx context.Context, order *domain.Order) {
	if order.UserID == "" {
		return
	}
	lines := make([]domain.PurchaseLine, 0, len(order.Items))
	for _, l := range order.Items {
		lines = append(lines, domain.PurchaseLine{
			ItemID:     l.ItemID,
			CategoryID: l.CategoryID,
			Quantity:   l.Quantity,
		})
	}
	if _, err := s.analytics.RecordPurchase(ctx, order.UserID, lines, order.TotalPrice); err != nil {
		s.logger.Warn("analytics update failed for paid order",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	return s.store.GetOrder(ctx, orderID)
}

func (s *OrderService) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.ListOrdersByUser")
	defer span.End()
	span.SetAttributes(attribute.String("order.user_id", userID))

	return s.store.ListOrdersByUser(ctx, userID)
}

func (s *OrderService) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.ListAllOrders")
	defer span.End()

	return s.store.ListAllOrders(ctx)
}

var validOrderStatuses = map[string]bool{
	"pending": true, "preparing": true, "ready": true,
	"completed": true, "cancelled": true,
}

// UpdateOrderStatus moves an order through the kitchen workflow.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID, status, adminNotes string) error {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", status),
	)

	if !validOrderStatuses[status] {
		return &domain.ErrValidation{Field: "orderStatus", Message: fmt.Sprintf("unknown status %q", status)}
	}
	updates := map[string]any{"order_status": status}
	if adminNotes != "" {
		updates["admin_notes"] = adminNotes
	}
	if status == "completed" {
		updates["completed_at"] = time.Now().UTC()
	}
	return s.store.UpdateOrder(ctx, orderID, updates)
}

// MarkPaymentStatus transitions an order's payment state. Moving to paid
// stamps paid_at and records the purchase into analytics; moving to failed
// stamps failed_at.
func (s *OrderService) MarkPaymentStatus(ctx context.Context, orderID, status string) error {
	ctx, span := tracer.Start(ctx, "OrderService.MarkPaymentStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("payment.status", status),
	)

	switch status {
	case domain.PaymentStatusPaid, domain.PaymentStatusFailed, domain.PaymentStatusPending:
	default:
		return &domain.ErrValidation{Field: "paymentStatus", Message: fmt.Sprintf("unknown payment status %q", status)}
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentStatus == status {
		return nil // already there, webhooks retry
	}

	updates := map[string]any{"payment_status": status}
	switch status {
	case domain.PaymentStatusPaid:
		updates["paid_at"] = time.Now().UTC()
		updates["order_status"] = "preparing"
	case domain.PaymentStatusFailed:
		updates["failed_at"] = time.Now().UTC()
		updates["order_status"] = "cancelled"
	}
	if err := s.store.UpdateOrder(ctx, orderID, updates); err != nil {
		return err
	}

	if status == domain.PaymentStatusPaid {
		s.recordAnalytics(ctx, order)
	}
	return nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, orderID string) error {
	ctx, span := tracer.Start(ctx, "OrderService.DeleteOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		return err
	}
	return s.store.DeleteOrder(ctx, orderID)
}

// HandleGCashWebhook processes a PayMongo event. The raw payload must have
// passed signature verification before parsing; source.chargeable marks the
// order paid, payment.failed marks it failed. Events for unknown sources are
// acknowledged and dropped.
func (s *OrderService) HandleGCashWebhook(ctx context.Context, payload []byte, signature string, eventType, sourceID string) error {
	ctx, span := tracer.Start(ctx, "OrderService.HandleGCashWebhook")
	defer span.End()
	span.SetAttributes(attribute.String("webhook.event", eventType))

	if !s.gcash.VerifyWebhookSignature(payload, signature) {
		return &domain.ErrInvalidSignature{Gateway: "paymongo"}
	}

	order, err := s.findOrderBySource(ctx, sourceID)
	if err != nil {
		return err
	}
	if order == nil {
		s.logger.Warn("webhook for unknown payment source", zap.String("source_id", sourceID))
		return nil
	}

	switch eventType {
	case "source.chargeable":
		return s.MarkPaymentStatus(ctx, order.ID, domain.PaymentStatusPaid)
	case "payment.failed", "source.cancelled":
		return s.MarkPaymentStatus(ctx, order.ID, domain.PaymentStatusFailed)
	default:
		s.logger.Debug("ignoring webhook event", zap.String("event", eventType))
		return nil
	}
}

func (s *OrderService) findOrderBySource(ctx context.Context, sourceID string) (*domain.Order, error) {
	if sourceID == "" {
		return nil, nil
	}
	orders, err := s.store.ListAllOrders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].PaymentSourceID == sourceID {
			return &orders[i], nil
		}
	}
	return nil, nil
}

// GetPaymentStatus polls the gateway for a source's state and syncs the
// matching order when the source became chargeable or expired.
func (s *OrderService) GetPaymentStatus(ctx context.Context, sourceID string) (*domain.PaymentSourceStatus, error) {
	ctx, span := tracer.Start(ctx, "OrderService.GetPaymentStatus")
	defer span.End()
	span.SetAttributes(attribute.String("payment.source_id", sourceID))

	status, err := s.gcash.GetSourceStatus(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	order, err := s.findOrderBySource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if order != nil {
		switch strings.ToLower(status.Status) {
		case "chargeable", "consumed":
			if err := s.MarkPaymentStatus(ctx, order.ID, domain.PaymentStatusPaid); err != nil {
				s.logger.Warn("payment status sync failed", zap.String("order_id", order.ID), zap.Error(err))
			}
		case "expired", "cancelled":
			if err := s.MarkPaymentStatus(ctx, order.ID, domain.PaymentStatusFailed); err != nil {
				s.logger.Warn("payment status sync failed", zap.String("order_id", order.ID), zap.Error(err))
			}
		}
	}
	return status, nil
}

// CapturePayPalOrder captures an approved PayPal payment and marks the POS
// order it round-trips back to.
func (s *OrderService) CapturePayPalOrder(ctx context.Context, posOrderID string) (*domain.PayPalCapture, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CapturePayPalOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", posOrderID))

	order, err := s.store.GetOrder(ctx, posOrderID)
	if err != nil {
		return nil, err
	}
	if order.PayPalOrderID == "" {
		return nil, &domain.ErrValidation{Field: "orderId", Message: "order has no PayPal checkout"}
	}

	capture, err := s.paypal.CaptureOrder(ctx, order.PayPalOrderID)
	if err != nil {
		if markErr := s.MarkPaymentStatus(ctx, order.ID, domain.PaymentStatusFailed); markErr != nil {
			s.logger.Warn("failed to mark order after capture error",
				zap.String("order_id", order.ID), zap.Error(markErr))
		}
		return nil, err
	}

	if capture.Status == "COMPLETED" {
		if err := s.store.UpdateOrder(ctx, order.ID, map[string]any{"payment_transaction_id": capture.CaptureID}); err != nil {
			return nil, err
		}
		if err := s.MarkPaymentStatus(ctx, order.ID, domain.PaymentStatusPaid); err != nil {
			return nil, err
		}
	}
	return capture, nil
}
