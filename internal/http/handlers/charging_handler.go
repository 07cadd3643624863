package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"chargebook/internal/apperrors"
	"chargebook/internal/ingest"
)

// ChargingHandler serves the trusted-network device endpoints and the
// operator override for active sessions.
type ChargingHandler struct {
	gateway *ingest.Gateway
	logger  *zap.Logger
}

// NewChargingHandler builds handler.
func NewChargingHandler(gateway *ingest.Gateway, logger *zap.Logger) *ChargingHandler {
	return &ChargingHandler{gateway: gateway, logger: logger}
}

type chargingUpdateRequest struct {
	EnergyConsumed        float64 `json:"energy_consumed"`
	CurrentBatteryPercent int     `json:"current_battery_percent"`
}

// Update handles POST /internal/charging-update/{id}. Non-monotonic updates
// are anomalies: absorbed with success=false, no state change, no retry storm.
func (h *ChargingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req chargingUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	snapshot, err := h.gateway.Ingest(r.Context(), id, ingest.Update{
		EnergyKWh:      req.EnergyConsumed,
		BatteryPercent: req.CurrentBatteryPercent,
	})
	if err != nil {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) && appErr.Kind == apperrors.KindAnomaly {
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": false})
			return
		}
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"estimated_cost": snapshot.EstimatedCost,
			"time_remaining": snapshot.TimeRemainingSec,
		},
	})
}

// Stop handles POST /internal/charging-stop/{id}, the device disconnect signal.
func (h *ChargingHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.stop(w, r)
}

// OperatorCancel handles PUT /bookings/{id}/operator-cancel. Cancelling an
// active charging session is an explicit operator override, not the user
// cancel path; it rides the same stopped-not-completed termination.
func (h *ChargingHandler) OperatorCancel(w http.ResponseWriter, r *http.Request) {
	h.stop(w, r)
}

func (h *ChargingHandler) stop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snapshot, err := h.gateway.Stop(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    snapshot,
	})
}
