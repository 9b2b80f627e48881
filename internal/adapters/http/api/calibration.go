// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/calibration"
)

// CalibrationDependencies defines the interface for calibration operations.
type CalibrationDependencies interface {
	Calibration(ctx context.Context) *calibration.Set
	ApplyCalibration(ctx context.Context, set *calibration.Set) error
}

// CalibrationHandler handles calibration read and replace requests.
type CalibrationHandler struct {
	deps CalibrationDependencies
}

// NewCalibrationHandler creates a new calibration handler.
func NewCalibrationHandler(deps CalibrationDependencies) *CalibrationHandler {
	return &CalibrationHandler{deps: deps}
}

// HandleCalibration handles GET and PUT /calibration requests. PUT replaces
// the full set atomically; a rejected set leaves the previous one active.
func (h *CalibrationHandler) HandleCalibration(w http.ResponseWriter, r *http.Request) {
	const op = "api.calibration"
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.deps.Calibration(r.Context()))
	case http.MethodPut:
		var set calibration.Set
		if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		if err := h.deps.ApplyCalibration(r.Context(), &set); err != nil {
			if errors.Is(err, calibration.ErrRejected) {
				writeError(w, http.StatusUnprocessableEntity, "rejected", err)
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, h.deps.Calibration(r.Context()))
	default:
		http.NotFound(w, r)
	}
}
