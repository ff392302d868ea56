package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/common"
	"github.com/finsignal/finsignal/internal/interfaces"
	"github.com/finsignal/finsignal/internal/models"
	"github.com/finsignal/finsignal/internal/services/enrichment"
	"github.com/finsignal/finsignal/internal/services/pipeline"
)

// startRequest is the POST body for launching an analysis session. Every
// field is optional; zero values take the configured defaults.
type startRequest struct {
	Sources       []string `json:"sources"`
	ModelID       string   `json:"model_id"`
	MaxPositions  int      `json:"max_positions"`
	MinConfidence *float64 `json:"min_confidence"`
	HeadlineOnly  bool     `json:"headline_only"`
}

// AnalysisHandler serves the analysis session API.
type AnalysisHandler struct {
	orchestrator *pipeline.Orchestrator
	storage      interfaces.StorageManager
	adapters     map[string]interfaces.SourceAdapter
	defaults     common.PipelineConfig
	defaultModel string
	logger       arbor.ILogger
}

// NewAnalysisHandler creates the analysis API handler. defaultModel is used
// when a start request names no model.
func NewAnalysisHandler(
	orchestrator *pipeline.Orchestrator,
	storage interfaces.StorageManager,
	adapters map[string]interfaces.SourceAdapter,
	defaults common.PipelineConfig,
	defaultModel string,
	logger arbor.ILogger,
) *AnalysisHandler {
	return &AnalysisHandler{
		orchestrator: orchestrator,
		storage:      storage,
		adapters:     adapters,
		defaults:     defaults,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// StartAnalysisHandler launches a session and returns its id immediately.
// The pipeline runs in the background; progress streams over the websocket.
func (h *AnalysisHandler) StartAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req startRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	sources := req.Sources
	if len(sources) == 0 {
		for id := range h.adapters {
			sources = append(sources, id)
		}
		sort.Strings(sources)
	}
	for _, id := range sources {
		if _, ok := h.adapters[id]; !ok {
			WriteError(w, http.StatusBadRequest, "unknown source: "+id)
			return
		}
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = h.defaultModel
	}
	if _, err := enrichment.ProviderFor(modelID); err != nil {
		WriteError(w, http.StatusBadRequest, "unsupported model: "+modelID)
		return
	}

	maxPositions := req.MaxPositions
	if maxPositions <= 0 {
		maxPositions = h.defaults.MaxPositions
	}
	minConfidence := h.defaults.MinConfidence
	if req.MinConfidence != nil {
		minConfidence = *req.MinConfidence
	}
	if minConfidence < 0 || minConfidence > 1 {
		WriteError(w, http.StatusBadRequest, "min_confidence must be within [0, 1]")
		return
	}

	session := &models.AnalysisSession{
		ID:            uuid.New().String(),
		Sources:       sources,
		ModelID:       modelID,
		MaxPositions:  maxPositions,
		MinConfidence: minConfidence,
		HeadlineOnly:  req.HeadlineOnly,
		Stage:         models.StagePending,
		StartedAt:     time.Now(),
	}
	if err := h.storage.SessionStorage().SaveSession(r.Context(), session); err != nil {
		h.logger.Error().Err(err).Msg("Failed to create analysis session")
		WriteError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	// Detached from the request context so the client can disconnect.
	go h.orchestrator.Run(context.Background(), session)

	h.logger.Info().
		Str("session_id", session.ID).
		Str("model", modelID).
		Strs("sources", sources).
		Msg("Analysis session started")

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"session_id": session.ID,
		"stage":      session.Stage,
	})
}

// SessionRoutesHandler serves GET /api/analysis/{id} and its subresources
// /positions, /summary, /results and /activity.
func (h *AnalysisHandler) SessionRoutesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/analysis/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	if parts[0] == "" {
		WriteError(w, http.StatusBadRequest, "session id is required")
		return
	}
	sessionID := parts[0]

	session, err := h.storage.SessionStorage().GetSession(r.Context(), sessionID)
	if err == interfaces.ErrNotFound {
		WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to load session")
		WriteError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	if len(parts) == 1 {
		WriteJSON(w, http.StatusOK, session)
		return
	}

	switch parts[1] {
	case "positions":
		positions, err := h.storage.PositionStorage().ListPositionsBySession(r.Context(), sessionID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load positions")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"positions": positions, "count": len(positions)})
	case "summary":
		summary, err := h.storage.SummaryStorage().GetSummaryBySession(r.Context(), sessionID)
		if err == interfaces.ErrNotFound {
			WriteError(w, http.StatusNotFound, "summary not available")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load summary")
			return
		}
		WriteJSON(w, http.StatusOK, summary)
	case "results":
		results, err := h.storage.AnalysisStorage().ListAnalysesBySession(r.Context(), sessionID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load results")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
	case "activity":
		entries, err := h.storage.ActivityStorage().ListBySession(r.Context(), sessionID, 200)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load activity")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
	default:
		WriteError(w, http.StatusNotFound, "unknown resource: "+parts[1])
	}
}
