// Package effects schedules the time-bounded visual effects the dashboard
// renders on top of the reconciled graph: escalation highlights, the banned
// glow, and boosted links. Each effect lives in its own expiry table; Tick
// prunes entries whose window has closed.
package effects

import (
	"time"

	"github.com/takurot/susanoh/internal/graph"
	"github.com/takurot/susanoh/internal/models"
)

// Config holds the effect windows. Zero values are filled in by New.
type Config struct {
	HighlightTTL  time.Duration
	BannedGlowTTL time.Duration
	LinkBoostTTL  time.Duration
	ReducedMotion bool
}

// DefaultConfig returns the standard effect windows.
func DefaultConfig() Config {
	return Config{
		HighlightTTL:  3 * time.Second,
		BannedGlowTTL: 6 * time.Second,
		LinkBoostTTL:  4 * time.Second,
	}
}

// Scheduler tracks which effects are active and until when. It is not
// safe for concurrent use; the owner serializes calls.
type Scheduler struct {
	cfg Config

	highlights map[string]time.Time
	glows      map[string]time.Time
	boosts     map[string]time.Time
}

// NewScheduler returns a scheduler with cfg, filling unset windows from
// DefaultConfig.
func NewScheduler(cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.HighlightTTL <= 0 {
		cfg.HighlightTTL = def.HighlightTTL
	}
	if cfg.BannedGlowTTL <= 0 {
		cfg.BannedGlowTTL = def.BannedGlowTTL
	}
	if cfg.LinkBoostTTL <= 0 {
		cfg.LinkBoostTTL = def.LinkBoostTTL
	}
	return &Scheduler{
		cfg:        cfg,
		highlights: make(map[string]time.Time),
		glows:      make(map[string]time.Time),
		boosts:     make(map[string]time.Time),
	}
}

// RecordTransition schedules effects for one observed state change. An
// escalation (strictly higher severity) starts a highlight; a transition
// into BANNED additionally starts the glow. De-escalations schedule
// nothing. Under reduced motion all transitions are ignored.
func (s *Scheduler) RecordTransition(tr graph.Transition, now time.Time) {
	if s.cfg.ReducedMotion || tr.From == "" || tr.To == "" {
		return
	}
	if models.StateRank(tr.To) > models.StateRank(tr.From) {
		s.highlights[tr.NodeID] = now.Add(s.cfg.HighlightTTL)
	}
	if tr.To == models.StateBanned && tr.From != models.StateBanned {
		s.glows[tr.NodeID] = now.Add(s.cfg.BannedGlowTTL)
	}
}

// RecordLinkSuspicion starts a boost window for a newly suspicious link.
func (s *Scheduler) RecordLinkSuspicion(linkKey string, now time.Time) {
	if s.cfg.ReducedMotion {
		return
	}
	s.boosts[linkKey] = now.Add(s.cfg.LinkBoostTTL)
}

// Tick drops every effect whose window has closed.
func (s *Scheduler) Tick(now time.Time) {
	prune(s.highlights, now)
	prune(s.glows, now)
	prune(s.boosts, now)
}

func prune(m map[string]time.Time, now time.Time) {
	for k, deadline := range m {
		if !now.Before(deadline) {
			delete(m, k)
		}
	}
}

// IsHighlighted reports whether a node is inside its highlight window,
// plus the remaining fraction of the window in [0, 1].
func (s *Scheduler) IsHighlighted(nodeID string, now time.Time) (bool, float64) {
	return remaining(s.highlights, nodeID, s.cfg.HighlightTTL, now)
}

// IsBannedGlow reports whether a node is inside its banned-glow window,
// plus the remaining fraction of the window.
func (s *Scheduler) IsBannedGlow(nodeID string, now time.Time) (bool, float64) {
	return remaining(s.glows, nodeID, s.cfg.BannedGlowTTL, now)
}

// IsLinkBoosted reports whether a link is inside its boost window, plus
// the remaining fraction of the window.
func (s *Scheduler) IsLinkBoosted(linkKey string, now time.Time) (bool, float64) {
	return remaining(s.boosts, linkKey, s.cfg.LinkBoostTTL, now)
}

func remaining(m map[string]time.Time, key string, ttl time.Duration, now time.Time) (bool, float64) {
	deadline, ok := m[key]
	if !ok || !now.Before(deadline) {
		return false, 0
	}
	frac := float64(deadline.Sub(now)) / float64(ttl)
	if frac > 1 {
		frac = 1
	}
	return true, frac
}

// AnyActive reports whether any effect window is still open. The render
// loop uses this to fall back to the slow tick when the screen is calm.
func (s *Scheduler) AnyActive(now time.Time) bool {
	return anyOpen(s.highlights, now) || anyOpen(s.glows, now) || anyOpen(s.boosts, now)
}

func anyOpen(m map[string]time.Time, now time.Time) bool {
	for _, deadline := range m {
		if now.Before(deadline) {
			return true
		}
	}
	return false
}
