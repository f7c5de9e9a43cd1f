package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/takurot/susanoh/internal/dashboard"
	"github.com/takurot/susanoh/internal/effects"
	"github.com/takurot/susanoh/internal/logger"
	"github.com/takurot/susanoh/internal/models"
)

// defaultTransitionLimit caps /api/v1/transitions responses.
const defaultTransitionLimit = 50

// TransitionReader serves the audit trail. Implemented by the storage
// layer; when storage is disabled the dashboard's in-memory ring backs it.
type TransitionReader interface {
	RecentTransitions(limit int) ([]models.TransitionLog, error)
	TransitionsForUser(userID string, limit int) ([]models.TransitionLog, error)
}

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	dash        *dashboard.Dashboard
	transitions TransitionReader
	now         func() time.Time
}

// NewAPIHandlers constructs an APIHandlers instance. transitions may be
// nil, in which case the dashboard's in-memory ring is served.
func NewAPIHandlers(dash *dashboard.Dashboard, transitions TransitionReader) *APIHandlers {
	return &APIHandlers{
		dash:        dash,
		transitions: transitions,
		now:         time.Now,
	}
}

func (h *APIHandlers) handleIncidents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"incidents": h.dash.Incidents()})
}

func (h *APIHandlers) handleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, h.dash.GraphWithFlags())
}

func (h *APIHandlers) handleEffects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, h.dash.Effects(h.now()))
}

func (h *APIHandlers) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, h.dash.Stats())
}

func (h *APIHandlers) handleTransitions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	limit := defaultTransitionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	userID := r.URL.Query().Get("user")

	var (
		logs []models.TransitionLog
		err  error
	)
	switch {
	case h.transitions != nil && userID != "":
		logs, err = h.transitions.TransitionsForUser(userID, limit)
	case h.transitions != nil:
		logs, err = h.transitions.RecentTransitions(limit)
	default:
		logs = h.dash.RecentTransitions(limit)
		if userID != "" {
			filtered := logs[:0]
			for _, tr := range logs {
				if tr.UserID == userID {
					filtered = append(filtered, tr)
				}
			}
			logs = filtered
		}
	}
	if err != nil {
		logger.Error("Failed to read transitions: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read transitions")
		return
	}
	if logs == nil {
		logs = []models.TransitionLog{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"transitions": logs})
}

func (h *APIHandlers) handleFocus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req effects.FocusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid focus request body")
		return
	}
	if req.NodeID == "" {
		writeError(w, http.StatusBadRequest, "node_id is required")
		return
	}

	accepted := h.dash.RequestFocus(req)
	respondJSON(w, http.StatusAccepted, map[string]any{"accepted": accepted})
}

type nodePosition struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

func (h *APIHandlers) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var positions []nodePosition
	if err := json.NewDecoder(r.Body).Decode(&positions); err != nil {
		writeError(w, http.StatusBadRequest, "invalid positions body")
		return
	}
	for _, p := range positions {
		if p.ID == "" {
			continue
		}
		h.dash.SetNodePosition(p.ID, p.X, p.Y)
	}
	respondJSON(w, http.StatusOK, map[string]any{"updated": len(positions)})
}
