package handler

import (
	"net/http"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/service"

	"go.uber.org/zap"
)

func registerHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.RegisterRequest
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err := authSvc.Register(r.Context(), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func loginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.LoginRequest
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err := authSvc.Login(r.Context(), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
