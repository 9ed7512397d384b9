package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/observability"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockGCashGateway struct {
	session        *domain.CheckoutSession
	sourceStatus   *domain.PaymentSourceStatus
	err            error
	validSignature bool
}

func (m *mockGCashGateway) CreateSource(_ context.Context, orderID string, amount float64, _, _ string, _ int) (*domain.CheckoutSession, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

func (m *mockGCashGateway) GetSourceStatus(_ context.Context, sourceID string) (*domain.PaymentSourceStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sourceStatus, nil
}

func (m *mockGCashGateway) VerifyWebhookSignature(_ []byte, _ string) bool {
	return m.validSignature
}

type mockPayPalGateway struct {
	session *domain.CheckoutSession
	capture *domain.PayPalCapture
	err     error
}

func (m *mockPayPalGateway) CreateOrder(_ context.Context, orderID string, amount float64, _ string) (*domain.CheckoutSession, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

func (m *mockPayPalGateway) CaptureOrder(_ context.Context, paypalOrderID string) (*domain.PayPalCapture, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.capture, nil
}

type orderFixture struct {
	svc            *service.OrderService
	store          *mockOrderStore
	analyticsStore *mockAnalyticsStore
	gcash          *mockGCashGateway
	paypal         *mockPayPalGateway
}

func newOrderFixture(store *mockOrderStore, gcash *mockGCashGateway, paypal *mockPayPalGateway) *orderFixture {
	catalog := newMockCatalogStore()
	catalog.items["a"] = &domain.Item{ID: "a", Name: "Coffee", CategoryID: "bev", Price: 50}

	analyticsStore := newMockAnalyticsStore()
	analytics := newAnalyticsService(analyticsStore, store, catalog)
	svc := service.NewOrderService(store, catalog, analytics, gcash, paypal, observability.NewMetrics(), zap.NewNop())
	return &orderFixture{svc: svc, store: store, analyticsStore: analyticsStore, gcash: gcash, paypal: paypal}
}

func cashOrderRequest() *domain.CreateOrderRequest {
	return &domain.CreateOrderRequest{
		UserID:        "cust-1",
		Items:         []domain.OrderLine{{ItemID: "a", Quantity: 2, Price: 50}},
		TotalPrice:    100,
		OrderType:     domain.OrderTypeDineIn,
		PaymentMethod: domain.PaymentMethodCash,
		CustomerName:  "Ana Cruz",
		CustomerEmail: "ana@example.com",
	}
}

// --- Tests ---

func TestCreateOrder_CashPaidImmediately(t *testing.T) {
	f := newOrderFixture(&mockOrderStore{}, &mockGCashGateway{}, &mockPayPalGateway{})

	result, err := f.svc.CreateOrder(context.Background(), cashOrderRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.Order.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("expected paid, got %s", result.Order.PaymentStatus)
	}
	if result.Order.OrderStatus != "preparing" {
		t.Errorf("expected preparing, got %s", result.Order.OrderStatus)
	}
	if result.Order.PaidAt == nil {
		t.Error("expected paid_at to be stamped")
	}
	if result.PaymentURL != "" {
		t.Error("cash orders have no checkout URL")
	}

	// The purchase lands in the customer's analytics.
	summary := f.analyticsStore.summaries["cust-1"]
	if summary == nil || summary.TotalOrders != 1 {
		t.Fatalf("expected analytics recorded for cash order, got %+v", summary)
	}
	if summary.ItemPurchaseFrequency["a"] != 2 {
		t.Errorf("expected quantity-weighted frequency 2, got %d", summary.ItemPurchaseFrequency["a"])
	}
}

func TestCreateOrder_FillsLineNamesFromCatalog(t *testing.T) {
	f := newOrderFixture(&mockOrderStore{}, &mockGCashGateway{}, &mockPayPalGateway{})

	result, err := f.svc.CreateOrder(context.Background(), cashOrderRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	line := result.Order.Items[0]
	if line.Name != "Coffee" || line.CategoryID != "bev" {
		t.Errorf("expected line enriched from catalog, got %+v", line)
	}
}

func TestCreateOrder_UnknownItemRejected(t *testing.T) {
	f := newOrderFixture(&mockOrderStore{}, &mockGCashGateway{}, &mockPayPalGateway{})

	req := cashOrderRequest()
	req.Items[0].ItemID = "ghost"

	var nf *domain.ErrNotFound
	_, err := f.svc.CreateOrder(context.Background(), req)
	if !errors.As(err, &nf) {
		t.Fatalf("expected not-found for unknown item, got %v", err)
	}
}

func TestCreateOrder_ValidationFailures(t *testing.T) {
	f := newOrderFixture(&mockOrderStore{}, &mockGCashGateway{}, &mockPayPalGateway{})

	cases := map[string]func(*domain.CreateOrderRequest){
		"empty items":       func(r *domain.CreateOrderRequest) { r.Items = nil },
		"zero total":        func(r *domain.CreateOrderRequest) { r.TotalPrice = 0 },
		"no customer name":  func(r *domain.CreateOrderRequest) { r.CustomerName = "" },
		"bad order type":    func(r *domain.CreateOrderRequest) { r.OrderType = "drive_thru" },
		"bad payment":       func(r *domain.CreateOrderRequest) { r.PaymentMethod = "check" },
		"delivery, no addr": func(r *domain.CreateOrderRequest) { r.OrderType = domain.OrderTypeDelivery },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := cashOrderRequest()
			mutate(req)
			var validation *domain.ErrValidation
			if _, err := f.svc.CreateOrder(context.Background(), req); !errors.As(err, &validation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateOrder_GCashBelowMinimumRejected(t *testing.T) {
	f := newOrderFixture(&mockOrderStore{}, &mockGCashGateway{}, &mockPayPalGateway{})

	req := cashOrderRequest()
	req.PaymentMethod = domain.PaymentMethodGCash
	req.TotalPrice = 15

	var validation *domain.ErrValidation
	if _, err := f.svc.CreateOrder(context.Background(), req); !errors.As(err, &validation) {
		t.Fatalf("expected validation error below GCash minimum, got %v", err)
	}
}

func TestCreateOrder_GCashOpensCheckout(t *testing.T) {
	gcash := &mockGCashGateway{session: &domain.CheckoutSession{
		SourceID:   "src_123",
		PaymentURL: "https://checkout.example/src_123",
	}}
	f := newOrderFixture(&mockOrderStore{}, gcash, &mockPayPalGateway{})

	req := cashOrderRequest()
	req.PaymentMethod = domain.PaymentMethodGCash

	result, err := f.svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.PaymentURL != "https://checkout.example/src_123" {
		t.Errorf("expected checkout URL, got %q", result.PaymentURL)
	}
	if result.PaymentSourceID != "src_123" {
		t.Errorf("expected source ID, got %q", result.PaymentSourceID)
	}
	if result.Order.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("gateway orders stay pending until the webhook, got %s", result.Order.PaymentStatus)
	}
}

func TestCreateOrder_GatewayFailureRollsBack(t *testing.T) {
	gcash := &mockGCashGateway{err: errors.New("paymongo down")}
	store := &mockOrderStore{}
	f := newOrderFixture(store, gcash, &mockPayPalGateway{})

	req := cashOrderRequest()
	req.PaymentMethod = domain.PaymentMethodGCash

	if _, err := f.svc.CreateOrder(context.Background(), req); err == nil {
		t.Fatal("expected gateway error to propagate")
	}
	if store.deletedID != "order-1" {
		t.Errorf("expected the stored order to be rolled back, deleted %q", store.deletedID)
	}
}

func TestMarkPaymentStatus_PaidRecordsAnalytics(t *testing.T) {
	store := &mockOrderStore{orders: []domain.Order{{
		ID:            "o1",
		UserID:        "cust-1",
		Items:         []domain.OrderLine{{ItemID: "a", CategoryID: "bev", Quantity: 1}},
		TotalPrice:    50,
		PaymentStatus: domain.PaymentStatusPending,
	}}}
	f := newOrderFixture(store, &mockGCashGateway{}, &mockPayPalGateway{})

	if err := f.svc.MarkPaymentStatus(context.Background(), "o1", domain.PaymentStatusPaid); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if store.updates["payment_status"] != domain.PaymentStatusPaid {
		t.Errorf("expected payment_status update, got %v", store.updates)
	}
	if store.updates["order_status"] != "preparing" {
		t.Errorf("expected order moved to preparing, got %v", store.updates)
	}
	if f.analyticsStore.summaries["cust-1"] == nil {
		t.Error("expected analytics recorded on paid transition")
	}
}

func TestMarkPaymentStatus_IdempotentOnRepeat(t *testing.T) {
	store := &mockOrderStore{orders: []domain.Order{{
		ID:            "o1",
		UserID:        "cust-1",
		Items:         []domain.OrderLine{{ItemID: "a", Quantity: 1}},
		TotalPrice:    50,
		PaymentStatus: domain.PaymentStatusPaid,
	}}}
	f := newOrderFixture(store, &mockGCashGateway{}, &mockPayPalGateway{})

	if err := f.svc.MarkPaymentStatus(context.Background(), "o1", domain.PaymentStatusPaid); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if store.updates != nil {
		t.Errorf("repeated webhook delivery must be a no-op, got update %v", store.updates)
	}
	if f.analyticsStore.summaries["cust-1"] != nil {
		t.Error("repeated delivery must not double-count analytics")
	}
}

func TestHandleGCashWebhook_BadSignature(t *testing.T) {
	f := newOrderFixture(&mockOrderStore{}, &mockGCashGateway{validSignature: false}, &mockPayPalGateway{})

	var sig *domain.ErrInvalidSignature
	err := f.svc.HandleGCashWebhook(context.Background(), []byte(`{}`), "bad", "source.chargeable", "src_1")
	if !errors.As(err, &sig) {
		t.Fatalf("expected invalid signature error, got %v", err)
	}
}

func TestHandleGCashWebhook_ChargeableMarksPaid(t *testing.T) {
	store := &mockOrderStore{orders: []domain.Order{{
		ID:              "o1",
		UserID:          "cust-1",
		Items:           []domain.OrderLine{{ItemID: "a", Quantity: 1}},
		TotalPrice:      50,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentSourceID: "src_1",
	}}}
	f := newOrderFixture(store, &mockGCashGateway{validSignature: true}, &mockPayPalGateway{})

	if err := f.svc.HandleGCashWebhook(context.Background(), []byte(`{}`), "ok", "source.chargeable", "src_1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if store.updates["payment_status"] != domain.PaymentStatusPaid {
		t.Errorf("expected order marked paid, got %v", store.updates)
	}
}

func TestHandleGCashWebhook_UnknownSourceAcknowledged(t *testing.T) {
	f := newOrderFixture(&mockOrderStore{}, &mockGCashGateway{validSignature: true}, &mockPayPalGateway{})

	if err := f.svc.HandleGCashWebhook(context.Background(), []byte(`{}`), "ok", "source.chargeable", "src_unknown"); err != nil {
		t.Errorf("unknown sources must be acknowledged, got %v", err)
	}
}

func TestCapturePayPalOrder_Completed(t *testing.T) {
	store := &mockOrderStore{orders: []domain.Order{{
		ID:            "o1",
		UserID:        "cust-1",
		Items:         []domain.OrderLine{{ItemID: "a", Quantity: 1}},
		TotalPrice:    50,
		PaymentStatus: domain.PaymentStatusPending,
		PayPalOrderID: "PP-1",
	}}}
	paypal := &mockPayPalGateway{capture: &domain.PayPalCapture{
		CaptureID:     "CAP-1",
		PayPalOrderID: "PP-1",
		POSOrderID:    "o1",
		Status:        "COMPLETED",
	}}
	f := newOrderFixture(store, &mockGCashGateway{}, paypal)

	capture, err := f.svc.CapturePayPalOrder(context.Background(), "o1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if capture.Status != "COMPLETED" {
		t.Errorf("expected COMPLETED, got %s", capture.Status)
	}
	if store.updates["payment_status"] != domain.PaymentStatusPaid {
		t.Errorf("expected order marked paid after capture, got %v", store.updates)
	}
}

func TestCapturePayPalOrder_FailureMarksFailed(t *testing.T) {
	store := &mockOrderStore{orders: []domain.Order{{
		ID:            "o1",
		PaymentStatus: domain.PaymentStatusPending,
		PayPalOrderID: "PP-1",
	}}}
	paypal := &mockPayPalGateway{err: errors.New("capture declined")}
	f := newOrderFixture(store, &mockGCashGateway{}, paypal)

	if _, err := f.svc.CapturePayPalOrder(context.Background(), "o1"); err == nil {
		t.Fatal("expected capture error to propagate")
	}
	if store.updates["payment_status"] != domain.PaymentStatusFailed {
		t.Errorf("expected order marked failed, got %v", store.updates)
	}
}

func TestCapturePayPalOrder_NoCheckoutRejected(t *testing.T) {
	store := &mockOrderStore{orders: []domain.Order{{ID: "o1"}}}
	f := newOrderFixture(store, &mockGCashGateway{}, &mockPayPalGateway{})

	var validation *domain.ErrValidation
	if _, err := f.svc.CapturePayPalOrder(context.Background(), "o1"); !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateOrderStatus_RejectsUnknown(t *testing.T) {
	f := newOrderFixture(&mockOrderStore{}, &mockGCashGateway{}, &mockPayPalGateway{})

	var validation *domain.ErrValidation
	if err := f.svc.UpdateOrderStatus(context.Background(), "o1", "teleported", ""); !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
