// Package handler wires the run module's HTTP endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clinops/internal/engine/audit"
	"clinops/internal/engine/prioritize"
	"clinops/internal/engine/state"
	"clinops/internal/run/models"
	"clinops/pkg/domain"
	dErrors "clinops/pkg/domain-errors"
	"clinops/pkg/platform/httputil"
	"clinops/pkg/requestcontext"
)

// Service defines the interface for run operations.
type Service interface {
	Execute(ctx context.Context, studyID domain.StudyID) (models.Run, error)
	GetRun(ctx context.Context, runID domain.RunID) (models.Run, error)
	ListRunsByStudy(ctx context.Context, studyID domain.StudyID) ([]models.Run, error)
	Participants(ctx context.Context, runID domain.RunID) ([]state.ParticipantView, error)
	Sites(ctx context.Context, runID domain.RunID) ([]state.SiteView, error)
	Events(ctx context.Context, runID domain.RunID, filter audit.Filter) ([]audit.Event, error)
	SiteActions(ctx context.Context, runID domain.RunID, siteID domain.SiteID) ([]prioritize.Action, error)
}

// Handler wires run endpoints to the run service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a run handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts run endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/studies/{studyID}/runs", h.HandleExecute)
	r.Get("/studies/{studyID}/runs", h.HandleListRuns)
	r.Get("/runs/{runID}", h.HandleGetRun)
	r.Get("/runs/{runID}/participants", h.HandleParticipants)
	r.Get("/runs/{runID}/sites", h.HandleSites)
	r.Get("/runs/{runID}/sites/{siteID}/actions", h.HandleSiteActions)
	r.Get("/runs/{runID}/events", h.HandleEvents)
}

// HandleExecute handles POST /studies/{studyID}/runs. The run executes
// synchronously; an aborted run reports its failure but still records a run
// id for the audit trail.
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	studyID, err := domain.ParseStudyID(chi.URLParam(r, "studyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	run, err := h.service.Execute(ctx, studyID)
	if err != nil {
		h.logger.ErrorContext(ctx, "run execution failed",
			"request_id", requestcontext.RequestID(ctx),
			"study_id", studyID,
			"error", err,
		)
		if run.Status == models.StatusAborted {
			// The aborted record exists; surface both it and the failure.
			httputil.WriteJSON(w, http.StatusUnprocessableEntity, run)
			return
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "run executed",
		"request_id", requestcontext.RequestID(ctx),
		"study_id", studyID,
		"run_id", run.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, run)
}

// HandleListRuns handles GET /studies/{studyID}/runs.
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	studyID, err := domain.ParseStudyID(chi.URLParam(r, "studyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	runs, err := h.service.ListRunsByStudy(r.Context(), studyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// HandleGetRun handles GET /runs/{runID}.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := domain.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	run, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}

// HandleParticipants handles GET /runs/{runID}/participants.
func (h *Handler) HandleParticipants(w http.ResponseWriter, r *http.Request) {
	runID, err := domain.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	participants, err := h.service.Participants(r.Context(), runID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"participants": participants})
}

// HandleSites handles GET /runs/{runID}/sites.
func (h *Handler) HandleSites(w http.ResponseWriter, r *http.Request) {
	runID, err := domain.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sites, err := h.service.Sites(r.Context(), runID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

// HandleSiteActions handles GET /runs/{runID}/sites/{siteID}/actions.
func (h *Handler) HandleSiteActions(w http.ResponseWriter, r *http.Request) {
	runID, err := domain.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	siteID, err := domain.ParseSiteID(chi.URLParam(r, "siteID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	actions, err := h.service.SiteActions(r.Context(), runID, siteID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

// HandleEvents handles GET /runs/{runID}/events with optional site,
// participant, and kind filters.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	runID, err := domain.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	filter := audit.Filter{
		SiteID:        domain.SiteID(r.URL.Query().Get("site")),
		ParticipantID: domain.ParticipantID(r.URL.Query().Get("participant")),
	}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind := audit.Kind(raw)
		if !kind.IsValid() {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "unknown event kind %q", raw))
			return
		}
		filter.Kind = kind
	}

	events, err := h.service.Events(r.Context(), runID, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}
