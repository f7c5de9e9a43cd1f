// Package dashboard orchestrates one surveillance view: it feeds each
// polled snapshot through the incident builder and the graph reconciler,
// schedules visual effects for the changes it finds, and serves the
// resulting views to the HTTP layer.
package dashboard

import (
	"sync"
	"time"

	"github.com/takurot/susanoh/internal/classify"
	"github.com/takurot/susanoh/internal/effects"
	"github.com/takurot/susanoh/internal/graph"
	"github.com/takurot/susanoh/internal/incident"
	"github.com/takurot/susanoh/internal/logger"
	"github.com/takurot/susanoh/internal/models"
)

// recentTransitionCap bounds the in-memory transition ring.
const recentTransitionCap = 100

// Store persists observed transitions and ban alerts for audit.
// Implementations must be safe for concurrent use.
type Store interface {
	SaveTransition(tr models.TransitionLog) error
	SaveBanAlert(userID, fromState, summary string, notified bool) error
}

// Notifier delivers out-of-band alerts for account bans.
type Notifier interface {
	NotifyBan(tr models.TransitionLog) error
}

// Config holds the dashboard's tunables.
type Config struct {
	Classifier   classify.Config
	Effects      effects.Config
	MaxIncidents int
}

// Snapshot is one poll's worth of upstream state.
type Snapshot struct {
	Users    []models.UserInfo
	Events   []models.GameEvent
	Analyses []models.Analysis
	Graph    models.GraphData
	Stats    models.Stats
}

// ApplyResult summarizes what one snapshot changed.
type ApplyResult struct {
	Incidents       int
	TopologyChanged bool
	StateChanged    bool
	Transitions     []models.TransitionLog
	NewlySuspicious []string
}

// Dashboard is the mutable core shared between the poll loop and the HTTP
// handlers. All exported methods are safe for concurrent use.
type Dashboard struct {
	mu sync.Mutex

	cfg        Config
	reconciler *graph.Reconciler
	scheduler  *effects.Scheduler
	focus      *effects.FocusTracker

	userStates  map[string]string
	incidents   []incident.Item
	graphView   graph.StableGraph
	stats       models.Stats
	transitions []models.TransitionLog

	lastTopologyChanged bool
	lastStateChanged    bool

	store    Store
	notifier Notifier
}

// New builds an empty dashboard. store and notifier may be nil.
func New(cfg Config, store Store, notifier Notifier) *Dashboard {
	if cfg.MaxIncidents <= 0 {
		cfg.MaxIncidents = 8
	}
	return &Dashboard{
		cfg:        cfg,
		reconciler: graph.New(cfg.Classifier),
		scheduler:  effects.NewScheduler(cfg.Effects),
		focus:      effects.NewFocusTracker(),
		userStates: make(map[string]string),
		store:      store,
		notifier:   notifier,
	}
}

// Apply ingests one snapshot: rebuilds the incident list, reconciles the
// graph, schedules effects for escalations and newly suspicious links, and
// records state transitions seen on the account stream.
func (d *Dashboard) Apply(snap Snapshot, now time.Time) ApplyResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.incidents = incident.BuildIncidents(d.cfg.Classifier, snap.Users, snap.Events, snap.Analyses, d.cfg.MaxIncidents)
	d.stats = snap.Stats

	res := d.reconciler.Reconcile(snap.Graph)
	d.graphView = res.Graph

	for _, tr := range res.Transitions {
		d.scheduler.RecordTransition(tr, now)
	}
	for _, key := range res.NewlySuspicious {
		d.scheduler.RecordLinkSuspicion(key, now)
	}

	logs := d.recordUserTransitions(snap, now)

	d.lastTopologyChanged = res.TopologyChanged
	d.lastStateChanged = res.StateChanged || len(logs) > 0

	return ApplyResult{
		Incidents:       len(d.incidents),
		TopologyChanged: d.lastTopologyChanged,
		StateChanged:    d.lastStateChanged,
		Transitions:     logs,
		NewlySuspicious: res.NewlySuspicious,
	}
}

// recordUserTransitions diffs the account stream against the last poll.
// The account stream is authoritative for the audit trail; graph nodes
// only drive rendering. Callers hold d.mu.
func (d *Dashboard) recordUserTransitions(snap Snapshot, now time.Time) []models.TransitionLog {
	latestAnalysis := make(map[string]models.Analysis, len(snap.Analyses))
	for _, a := range snap.Analyses {
		if _, ok := latestAnalysis[a.TargetID]; !ok {
			latestAnalysis[a.TargetID] = a
		}
	}

	var logs []models.TransitionLog
	for _, u := range snap.Users {
		prev, seen := d.userStates[u.UserID]
		d.userStates[u.UserID] = u.State
		if !seen || prev == u.State {
			continue
		}

		tr := models.TransitionLog{
			UserID:    u.UserID,
			FromState: prev,
			ToState:   u.State,
			Trigger:   "state_poll",
			Timestamp: now.UTC().Format(time.RFC3339),
		}
		if a, ok := latestAnalysis[u.UserID]; ok {
			tr.TriggeredByRule = a.FraudType
			tr.EvidenceSummary = a.Reasoning
		}
		logs = append(logs, tr)

		// The account stream feeds the same effect tables as the graph
		// stream; rescheduling an identical window is harmless.
		d.scheduler.RecordTransition(graph.Transition{NodeID: u.UserID, From: prev, To: u.State}, now)

		d.transitions = append(d.transitions, tr)
		if len(d.transitions) > recentTransitionCap {
			d.transitions = d.transitions[len(d.transitions)-recentTransitionCap:]
		}

		if d.store != nil {
			if err := d.store.SaveTransition(tr); err != nil {
				logger.Warn("Failed to persist transition for %s: %v", tr.UserID, err)
			}
		}
		if u.State == models.StateBanned {
			notified := false
			if d.notifier != nil {
				if err := d.notifier.NotifyBan(tr); err != nil {
					logger.Warn("Failed to notify ban of %s: %v", tr.UserID, err)
				} else {
					notified = true
				}
			}
			if d.store != nil {
				if err := d.store.SaveBanAlert(tr.UserID, tr.FromState, tr.EvidenceSummary, notified); err != nil {
					logger.Warn("Failed to persist ban alert for %s: %v", tr.UserID, err)
				}
			}
		}
	}
	return logs
}

// Tick prunes expired effects.
func (d *Dashboard) Tick(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scheduler.Tick(now)
}

// AnyEffectsActive reports whether any effect window is still open.
func (d *Dashboard) AnyEffectsActive(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scheduler.AnyActive(now)
}

// Incidents returns the current ranked incident list.
func (d *Dashboard) Incidents() []incident.Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]incident.Item, len(d.incidents))
	copy(out, d.incidents)
	return out
}

// Graph returns the current reconciled graph view.
func (d *Dashboard) Graph() graph.StableGraph {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.graphView
}

// GraphView is the graph plus the reheat flags of the last applied
// snapshot, which tell the renderer whether to restart its simulation.
type GraphView struct {
	Nodes           []*graph.Node `json:"nodes"`
	Links           []*graph.Link `json:"links"`
	TopologyChanged bool          `json:"topology_changed"`
	StateChanged    bool          `json:"state_changed"`
}

// GraphWithFlags returns the graph together with the last reheat flags.
func (d *Dashboard) GraphWithFlags() GraphView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return GraphView{
		Nodes:           d.graphView.Nodes,
		Links:           d.graphView.Links,
		TopologyChanged: d.lastTopologyChanged,
		StateChanged:    d.lastStateChanged,
	}
}

// Stats returns the latest upstream stats snapshot.
func (d *Dashboard) Stats() models.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// RecentTransitions returns the newest transitions first, at most limit.
func (d *Dashboard) RecentTransitions(limit int) []models.TransitionLog {
	d.mu.Lock()
	defer d.mu.Unlock()
	if limit <= 0 || limit > len(d.transitions) {
		limit = len(d.transitions)
	}
	out := make([]models.TransitionLog, 0, limit)
	for i := len(d.transitions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, d.transitions[i])
	}
	return out
}

// NodeEffect is the effect state of one node.
type NodeEffect struct {
	NodeID            string  `json:"node_id"`
	Highlighted       bool    `json:"highlighted"`
	HighlightFraction float64 `json:"highlight_fraction"`
	BannedGlow        bool    `json:"banned_glow"`
	GlowFraction      float64 `json:"glow_fraction"`
}

// LinkEffect is the effect state of one link.
type LinkEffect struct {
	Key           string  `json:"key"`
	Boosted       bool    `json:"boosted"`
	BoostFraction float64 `json:"boost_fraction"`
}

// EffectsView is the full effect state for the current graph, plus the
// resolved focus target when a pending request landed this cycle.
type EffectsView struct {
	Nodes []NodeEffect         `json:"nodes"`
	Links []LinkEffect         `json:"links"`
	Focus *effects.FocusTarget `json:"focus,omitempty"`
}

// Effects reports which effects are active right now, restricted to
// entities present in the reconciled graph.
func (d *Dashboard) Effects(now time.Time) EffectsView {
	d.mu.Lock()
	defer d.mu.Unlock()

	view := EffectsView{}
	for _, n := range d.graphView.Nodes {
		hl, hf := d.scheduler.IsHighlighted(n.ID, now)
		gl, gf := d.scheduler.IsBannedGlow(n.ID, now)
		if !hl && !gl {
			continue
		}
		view.Nodes = append(view.Nodes, NodeEffect{
			NodeID:            n.ID,
			Highlighted:       hl,
			HighlightFraction: hf,
			BannedGlow:        gl,
			GlowFraction:      gf,
		})
	}
	for _, l := range d.graphView.Links {
		if on, frac := d.scheduler.IsLinkBoosted(l.Key, now); on {
			view.Links = append(view.Links, LinkEffect{Key: l.Key, Boosted: true, BoostFraction: frac})
		}
	}
	if target, ok := d.focus.Resolve(d.reconciler.Position); ok {
		view.Focus = &target
	}
	return view
}

// RequestFocus forwards a focus request; stale sequences are dropped.
func (d *Dashboard) RequestFocus(req effects.FocusRequest) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focus.Request(req)
}

// SetNodePosition records renderer-reported coordinates for a node.
func (d *Dashboard) SetNodePosition(id string, x, y float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reconciler.SetPosition(id, x, y)
}
