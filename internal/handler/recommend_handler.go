package handler

import (
	"net/http"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/service"

	"go.uber.org/zap"
)

func recommendHandler(svc *service.RecommendationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.RecommendationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		items, err := svc.Recommend(r.Context(), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}
