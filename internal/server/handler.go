// Package server exposes a report service over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bilalbayram/adlens/internal/metrics"
	"github.com/bilalbayram/adlens/internal/report"
	"github.com/bilalbayram/adlens/internal/telemetry"
	"github.com/bilalbayram/adlens/internal/view"
)

const maxRequestBodySize = 1 << 20

// ReportService is the part of report.Service the HTTP surface drives.
type ReportService interface {
	Update(params report.Params)
	Refresh()
	Params() report.Params
	State() report.State
	TabData(tab report.Tab, usePeriodB bool) *report.TabData
}

type Deps struct {
	Service  ReportService
	Engine   *metrics.Engine
	Logger   *zap.Logger
	Counters *telemetry.InMemoryRecorder
}

// ViewRequest is the body of POST /v1/tabs/{tab}/view.
type ViewRequest struct {
	State   view.State `json:"state"`
	Compare bool       `json:"compare"`
}

type handler struct {
	service  ReportService
	engine   *metrics.Engine
	counters *telemetry.InMemoryRecorder
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := deps.Engine
	if engine == nil {
		engine = metrics.Default
	}
	h := &handler{service: deps.Service, engine: engine, counters: deps.Counters}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(RequestID)
	r.Use(AccessLog(logger))
	r.Use(Recoverer(logger))

	r.Get("/healthz", h.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Get("/params", h.params)
		r.Put("/params", h.updateParams)
		r.Post("/refresh", h.refresh)
		r.Get("/tabs/{tab}", h.tabData)
		r.Post("/tabs/{tab}/view", h.tabView)
		r.Get("/telemetry", h.telemetry)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.State())
}

func (h *handler) params(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Params())
}

func (h *handler) updateParams(w http.ResponseWriter, r *http.Request) {
	var params report.Params
	if err := decodeJSON(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(params.ReportID) == "" {
		writeError(w, http.StatusBadRequest, "report_id is required")
		return
	}
	h.service.Update(params)
	writeJSON(w, http.StatusAccepted, h.service.State())
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	h.service.Refresh()
	writeJSON(w, http.StatusAccepted, h.service.State())
}

func (h *handler) tabData(w http.ResponseWriter, r *http.Request) {
	tab, err := report.ParseTab(chi.URLParam(r, "tab"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	usePeriodB := strings.EqualFold(r.URL.Query().Get("period"), "b")
	data := h.service.TabData(tab, usePeriodB)
	if data == nil {
		writeNotReady(w, h.service.State())
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *handler) tabView(w http.ResponseWriter, r *http.Request) {
	tab, err := report.ParseTab(chi.URLParam(r, "tab"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var request ViewRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := request.State.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	current := h.service.TabData(tab, false)
	if current == nil {
		writeNotReady(w, h.service.State())
		return
	}
	input := view.Input{Rows: current.Rows, State: request.State}
	if request.Compare {
		if previous := h.service.TabData(tab, true); previous != nil {
			input.PreviousRows = previous.Rows
		}
	}
	writeJSON(w, http.StatusOK, view.Apply(h.engine, input))
}

func (h *handler) telemetry(w http.ResponseWriter, r *http.Request) {
	if h.counters == nil {
		writeError(w, http.StatusNotFound, "telemetry is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, h.counters.Snapshot())
}

type errorResponse struct {
	Error string        `json:"error"`
	State *report.State `json:"state,omitempty"`
}

func writeNotReady(w http.ResponseWriter, state report.State) {
	message := "report data is not loaded yet"
	if state.Error != "" {
		message = state.Error
	}
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: message, State: &state})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
