package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func createOrderHandler(svc *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.CreateOrderRequest
		if !decodeBody(w, r, &req) {
			return
		}
		result, err := svc.CreateOrder(r.Context(), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func getOrderHandler(svc *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func listUserOrdersHandler(svc *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := svc.ListOrdersByUser(r.Context(), chi.URLParam(r, "userId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if orders == nil {
			orders = []domain.Order{}
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func listAllOrdersHandler(svc *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := svc.ListAllOrders(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if orders == nil {
			orders = []domain.Order{}
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func updateOrderStatusHandler(svc *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	type statusRequest struct {
		OrderStatus string `json:"orderStatus"`
		AdminNotes  string `json:"adminNotes,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := svc.UpdateOrderStatus(r.Context(), chi.URLParam(r, "orderId"), req.OrderStatus, req.AdminNotes); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func updatePaymentStatusHandler(svc *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	type paymentRequest struct {
		PaymentStatus string `json:"paymentStatus"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := svc.MarkPaymentStatus(r.Context(), chi.URLParam(r, "orderId"), req.PaymentStatus); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func deleteOrderHandler(svc *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteOrder(r.Context(), chi.URLParam(r, "orderId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// paymongoWebhookHandler verifies and applies PayMongo events. The raw body
// is read once and handed to signature verification before any parsing.
func paymongoWebhookHandler(svc *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	type webhookEvent struct {
		Data struct {
			Attributes struct {
				Type string `json:"type"`
				Data struct {
					ID string `json:"id"`
				} `json:"data"`
			} `json:"attributes"`
		} `json:"data"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable payload")
			return
		}
		signature := r.Header.Get("Paymongo-Signature")

		var event webhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		err = svc.HandleGCashWebhook(r.Context(), payload, signature,
			event.Data.Attributes.Type, event.Data.Attributes.Data.ID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	}
}

// paypalWebhookHandler acknowledges PayPal events; the capture endpoint is
// the authoritative state transition, so events are logged and accepted.
func paypalWebhookHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event map[string]any
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if t, ok := event["event_type"].(string); ok {
			logger.Info("paypal webhook received", zap.String("event_type", t))
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	}
}

func capturePayPalHandler(svc *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		capture, err := svc.CapturePayPalOrder(r.Context(), chi.URLParam(r, "orderId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"captureId": capture.CaptureID,
			"status":    capture.Status,
			"orderId":   capture.POSOrderID,
		})
	}
}

func paymentStatusHandler(svc *service.OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := svc.GetPaymentStatus(r.Context(), chi.URLParam(r, "sourceId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func regenerateAnalyticsHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.RegenerateAll(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
