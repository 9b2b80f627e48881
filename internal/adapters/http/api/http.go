// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/calibration"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/dedupe"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes an event for async processing. Returns false on backpressure.
	Enqueue(ctx context.Context, e model.Event) bool

	// Read operations expose emitted signals.
	Search(ctx context.Context, filter types.SearchFilter) ([]*model.Signal, error)
	GetSignal(ctx context.Context, id string) (*model.Signal, error)

	// Calibration surface.
	Calibration(ctx context.Context) *calibration.Set
	ApplyCalibration(ctx context.Context, set *calibration.Set) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	signalsHandler     *SignalsHandler
	calibrationHandler *CalibrationHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		eventsHandler:      NewEventsHandler(deps),
		signalsHandler:     NewSignalsHandler(deps),
		calibrationHandler: NewCalibrationHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/signals", MetricsMiddleware(s.signalsHandler.HandleSearch, "signals"))
	mux.HandleFunc("/signals/", MetricsMiddleware(s.signalsHandler.HandleGet, "signal"))
	mux.HandleFunc("/calibration", MetricsMiddleware(s.calibrationHandler.HandleCalibration, "calibration"))
}

// eventRequest mirrors the wire schema for POST /events.
type eventRequest struct {
	DeliveryID string            `json:"delivery_id"`
	CompanyID  string            `json:"company_id"`
	Type       string            `json:"type"`
	TS         string            `json:"ts"`
	Features   map[string]string `json:"features"`
	SourceURL  string            `json:"source_url"`
	Title      string            `json:"title"`
	Text       string            `json:"text"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.DeliveryID) == "":
		return errors.New("missing delivery_id")
	case strings.TrimSpace(e.CompanyID) == "":
		return errors.New("missing company_id")
	case strings.TrimSpace(e.Type) == "":
		return errors.New("missing type")
	case strings.TrimSpace(e.TS) == "":
		return errors.New("missing ts")
	}
	if _, err := time.Parse(time.RFC3339, e.TS); err != nil {
		return errors.New("invalid ts; must be RFC3339")
	}
	return nil
}

// toEvent converts a validated request into the domain event.
func (e eventRequest) toEvent() model.Event {
	ts, _ := time.Parse(time.RFC3339, e.TS)
	return model.Event{
		DeliveryID: e.DeliveryID,
		CompanyID:  e.CompanyID,
		Type:       model.EventType(e.Type),
		TS:         ts,
		Features:   e.Features,
		SourceURL:  e.SourceURL,
		Title:      e.Title,
		Text:       e.Text,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// Wrap annotates an error with the operation that produced it.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// WrapKind annotates a sentinel kind with the operation and the cause.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %v", op, kind, err)
}

// NewKind annotates a sentinel kind with the operation.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}
