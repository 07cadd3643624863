package handlers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"chargebook/internal/service"
)

const maxCallbackBody = 1 << 16

// PaymentHandler receives signed settlement callbacks from the gateway.
type PaymentHandler struct {
	svc    *service.PaymentService
	logger *zap.Logger
}

// NewPaymentHandler builds handler.
func NewPaymentHandler(svc *service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, logger: logger}
}

// Callback handles POST /payments/callback.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := h.svc.HandleCallback(r.Context(), body, r.Header.Get("X-Signature")); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
