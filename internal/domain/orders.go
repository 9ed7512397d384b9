package domain

import "time"

// ============================================================
// Orders & payments
// ============================================================

// Order types and payment methods accepted by the POS.
const (
	OrderTypeDineIn   = "dine_in"
	OrderTypeTakeout  = "takeout"
	OrderTypeDelivery = "delivery"

	PaymentMethodCash   = "cash"
	PaymentMethodGCash  = "gcash"
	PaymentMethodPayPal = "paypal"

	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// GCashMinimumAmount is the gateway-enforced floor for GCash payments (PHP).
const GCashMinimumAmount = 20.0

// OrderLine is one purchased item inside an order.
type OrderLine struct {
	ItemID     string  `json:"itemId"`
	Name       string  `json:"name"`
	CategoryID string  `json:"categoryId,omitempty"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
}

// DeliveryAddress is required for delivery orders.
type DeliveryAddress struct {
	Street     string `json:"street"`
	Barangay   string `json:"barangay,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// Order is a completed or in-flight POS order.
type Order struct {
	ID                   string           `json:"id"`
	UserID               string           `json:"userId"`
	Items                []OrderLine      `json:"items"`
	TotalPrice           float64          `json:"totalPrice"`
	OrderType            string           `json:"orderType"`
	OrderStatus          string           `json:"orderStatus"`
	PaymentMethod        string           `json:"paymentMethod"`
	PaymentStatus        string           `json:"paymentStatus"`
	DeliveryAddress      *DeliveryAddress `json:"deliveryAddress,omitempty"`
	DeliveryInstructions string           `json:"deliveryInstructions,omitempty"`
	CustomerName         string           `json:"customerName"`
	CustomerEmail        string           `json:"customerEmail"`
	CustomerPhone        string           `json:"customerPhone,omitempty"`
	PaymentSourceID      string           `json:"paymentSourceId,omitempty"`
	PayPalOrderID        string           `json:"paypalOrderId,omitempty"`
	PaymentTransactionID string           `json:"paymentTransactionId,omitempty"`
	AdminNotes           string           `json:"adminNotes,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
	PaidAt               *time.Time       `json:"paidAt,omitempty"`
	FailedAt             *time.Time       `json:"failedAt,omitempty"`
	CompletedAt          *time.Time       `json:"completedAt,omitempty"`
}

// CreateOrderRequest is the POST /api/orders payload.
type CreateOrderRequest struct {
	UserID               string           `json:"userId"`
	Items                []OrderLine      `json:"items"`
	TotalPrice           float64          `json:"totalPrice"`
	OrderType            string           `json:"orderType"`
	PaymentMethod        string           `json:"paymentMethod"`
	DeliveryAddress      *DeliveryAddress `json:"deliveryAddress,omitempty"`
	DeliveryInstructions string           `json:"deliveryInstructions,omitempty"`
	CustomerName         string           `json:"customerName"`
	CustomerEmail        string           `json:"customerEmail"`
	CustomerPhone        string           `json:"customerPhone,omitempty"`
}

// OrderCreationResult is returned after an order (and any payment session)
// has been created.
type OrderCreationResult struct {
	Order           *Order `json:"order"`
	PaymentURL      string `json:"paymentUrl,omitempty"`
	PaymentSourceID string `json:"paymentSourceId,omitempty"`
}

// CheckoutSession is what a payment gateway returns for a redirect flow.
type CheckoutSession struct {
	SourceID   string
	PaymentURL string
}

// PaymentSourceStatus is the polled state of a gateway payment source.
type PaymentSourceStatus struct {
	SourceID string `json:"sourceId"`
	Status   string `json:"status"`
}

// PayPalCapture is the outcome of capturing an approved PayPal order.
type PayPalCapture struct {
	CaptureID     string
	PayPalOrderID string
	POSOrderID    string // custom_id round-tripped through PayPal
	Status        string
}

// ============================================================
// Transactions (the rule engine's unit of analysis)
// ============================================================

// Transaction is one order reduced to its purchased item identifiers.
// Item order is irrelevant; duplicates may appear when an item was bought
// on multiple lines.
type Transaction struct {
	OrderID     string
	ItemIDs     []string
	TotalAmount float64
}

// RegenerationReport summarises an admin analytics rebuild.
type RegenerationReport struct {
	TotalUsers   int `json:"totalUsers"`
	SuccessCount int `json:"successCount"`
	ErrorCount   int `json:"errorCount"`
	TotalOrders  int `json:"totalOrders"`
}
