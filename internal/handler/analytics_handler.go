package handler

import (
	"net/http"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/observability"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func getCustomerAnalyticsHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.GetCustomerAnalytics(r.Context(), chi.URLParam(r, "userId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func recordPurchaseHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	type purchaseRequest struct {
		Items       []domain.PurchaseLine `json:"items"`
		TotalAmount float64               `json:"totalAmount"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req purchaseRequest
		if !decodeBody(w, r, &req) {
			return
		}
		summary, err := svc.RecordPurchase(r.Context(), chi.URLParam(r, "userId"), req.Items, req.TotalAmount)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func globalAnalyticsHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		global, err := svc.GlobalAnalytics(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, global)
	}
}

func associationRulesHandler(engine *service.RuleEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := engine.AssociationRules(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if rules == nil {
			rules = []domain.AssociationRule{}
		}
		writeJSON(w, http.StatusOK, rules)
	}
}

func popularCombinationsHandler(engine *service.RuleEngine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		combos, err := engine.PopularCombinations(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if combos == nil {
			combos = []domain.PopularCombination{}
		}
		writeJSON(w, http.StatusOK, combos)
	}
}

func engineMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetEngineSnapshot())
	}
}
