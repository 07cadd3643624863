package handlers

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"chargebook/internal/http/middleware"
	"chargebook/internal/liveview"
	"chargebook/internal/service"
)

// BookingHandler serves the booking lifecycle endpoints.
type BookingHandler struct {
	svc      *service.BookingService
	live     *liveview.Store
	validate *validator.Validate
	logger   *zap.Logger
}

// NewBookingHandler builds handler.
func NewBookingHandler(svc *service.BookingService, live *liveview.Store, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{
		svc:      svc,
		live:     live,
		validate: validator.New(),
		logger:   logger,
	}
}

type createBookingRequest struct {
	StationID   int64     `json:"station_id" validate:"required"`
	VehicleType string    `json:"vehicle_type" validate:"required"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
	PromoCode   string    `json:"promo_code"`
}

// Create handles POST /bookings.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createBookingRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "station_id, vehicle_type, start_time and end_time are required")
		return
	}

	booking, err := h.svc.Create(r.Context(), service.CreateBookingInput{
		UserID:      userID,
		StationID:   req.StationID,
		VehicleType: req.VehicleType,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		PromoCode:   req.PromoCode,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"booking": booking})
}

// Confirm handles PUT /bookings/{id}/confirm. The returned code goes to the
// operator; it is never exposed to the end user through this call.
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	code, err := h.svc.Confirm(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"booking_id": id,
		"code":       code,
	})
}

type verifyCodeRequest struct {
	BookingID string `json:"booking_id" validate:"required"`
	Code      string `json:"code" validate:"required,len=6"`
}

// VerifyCode handles POST /bookings/verify-code.
func (h *BookingHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "booking_id and 6-digit code are required")
		return
	}
	if !h.authorizeOwner(w, r, req.BookingID) {
		return
	}

	booking, err := h.svc.VerifyAndStart(r.Context(), req.BookingID, req.Code)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"booking": booking})
}

// Cancel handles PUT /bookings/{id}/cancel, the user-facing cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.authorizeOwner(w, r, id) {
		return
	}
	if err := h.svc.Cancel(r.Context(), id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"booking_id": id,
		"status":     "cancelled",
	})
}

// ResendCode handles POST /bookings/{id}/resend-code.
func (h *BookingHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	code, err := h.svc.ResendCode(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"booking_id": id,
		"code":       code,
	})
}

// Live handles GET /bookings/{id}/live, serving the cached telemetry snapshot.
func (h *BookingHandler) Live(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.authorizeOwner(w, r, id) {
		return
	}
	snapshot, err := h.live.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    snapshot,
	})
}

// authorizeOwner permits the booking's owner or an operator and writes the
// response itself when access is denied.
func (h *BookingHandler) authorizeOwner(w http.ResponseWriter, r *http.Request, bookingID string) bool {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	if role, _ := middleware.RoleFromContext(r.Context()); role == middleware.RoleOperator {
		return true
	}

	booking, err := h.svc.Get(r.Context(), bookingID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return false
	}
	if booking.UserID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}
