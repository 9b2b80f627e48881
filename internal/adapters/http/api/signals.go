// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/adapters/repository"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/types"
)

// Signal search limits.
const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

// SignalDependencies defines the interface for signal read operations.
type SignalDependencies interface {
	Search(ctx context.Context, filter types.SearchFilter) ([]*model.Signal, error)
	GetSignal(ctx context.Context, id string) (*model.Signal, error)
}

// SignalsHandler handles signal query requests.
type SignalsHandler struct {
	deps SignalDependencies
}

// NewSignalsHandler creates a new signals handler.
func NewSignalsHandler(deps SignalDependencies) *SignalsHandler {
	return &SignalsHandler{deps: deps}
}

// HandleSearch handles GET /signals requests with min_score, kind,
// company_id, since, and limit query parameters.
func (h *SignalsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.search_signals"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	filter, err := parseSearchFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	signals, err := h.deps.Search(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, signals)
}

// HandleGet handles GET /signals/{id} requests.
func (h *SignalsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_signal"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/signals/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	sig, err := h.deps.GetSignal(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func parseSearchFilter(r *http.Request) (types.SearchFilter, error) {
	q := r.URL.Query()
	filter := types.SearchFilter{Limit: defaultSearchLimit}

	if v := q.Get("min_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			return filter, errors.New("invalid min_score; must be 0..100")
		}
		filter.MinScore = n
	}
	if v := q.Get("kind"); v != "" {
		filter.Kind = model.SignalKind(v)
	}
	if v := q.Get("company_id"); v != "" {
		filter.CompanyID = v
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("invalid since; must be RFC3339")
		}
		filter.Since = ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, errors.New("invalid limit")
		}
		if n > maxSearchLimit {
			n = maxSearchLimit
		}
		filter.Limit = n
	}
	return filter, nil
}
