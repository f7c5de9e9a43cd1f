package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/takurot/susanoh/internal/classify"
	"github.com/takurot/susanoh/internal/models"
)

// maxWorldEvents bounds the retained event window.
const maxWorldEvents = 500

// allowedTransitions encodes the account lifecycle. BANNED is terminal.
var allowedTransitions = map[string][]string{
	models.StateNormal:             {models.StateRestrictedWithdraw},
	models.StateRestrictedWithdraw: {models.StateUnderSurveillance},
	models.StateUnderSurveillance:  {models.StateBanned, models.StateNormal},
	models.StateBanned:             {},
}

type linkStats struct {
	amount int64
	count  int
}

// world is the in-memory upstream the simulator feeds. It runs the same
// screening rules a production backend would: flagged events restrict the
// target, repeat offenders go under surveillance, and a local arbitration
// pass bans the worst of them.
type world struct {
	mu sync.Mutex

	cfg classify.Config

	states      map[string]string
	events      []models.GameEvent
	analyses    []models.Analysis
	transitions []models.TransitionLog
	links       map[string]*linkStats

	flaggedEvents int
}

func newWorld(cfg classify.Config) *world {
	return &world{
		cfg:    cfg,
		states: make(map[string]string),
		links:  make(map[string]*linkStats),
	}
}

func (w *world) stateOf(userID string) string {
	if s, ok := w.states[userID]; ok {
		return s
	}
	w.states[userID] = models.StateNormal
	return models.StateNormal
}

func (w *world) transition(userID, to, trigger, rule, evidence string) bool {
	from := w.stateOf(userID)
	ok := false
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			ok = true
			break
		}
	}
	if !ok {
		return false
	}
	w.states[userID] = to
	w.transitions = append(w.transitions, models.TransitionLog{
		UserID:          userID,
		FromState:       from,
		ToState:         to,
		Trigger:         trigger,
		TriggeredByRule: rule,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		EvidenceSummary: evidence,
	})
	return true
}

// Ingest screens one batch of events and advances the world state. The
// whole batch lands in the event window before anyone is escalated, so
// arbitration sees the complete evidence.
func (w *world) Ingest(batch []models.GameEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := classify.BuildWindowStats(append(append([]models.GameEvent{}, w.events...), batch...))

	var flaggedTargets []string
	for i := range batch {
		e := &batch[i]
		w.stateOf(e.ActorID)
		w.stateOf(e.TargetID)
		verdict := w.cfg.ClassifyEvent(*e, stats)
		screened := verdict.Suspicious
		e.Screened = &screened
		w.events = append(w.events, *e)
		if !screened {
			continue
		}
		w.flaggedEvents++
		flaggedTargets = append(flaggedTargets, e.TargetID)

		key := e.ActorID + "→" + e.TargetID
		ls := w.links[key]
		if ls == nil {
			ls = &linkStats{}
			w.links[key] = ls
		}
		ls.amount += e.ActionDetails.CurrencyAmount
		ls.count++
	}
	if len(w.events) > maxWorldEvents {
		w.events = w.events[len(w.events)-maxWorldEvents:]
	}

	for _, target := range flaggedTargets {
		w.escalate(target, stats)
	}
}

// escalate walks the target one step up the lifecycle and runs the local
// arbitration pass once it is under surveillance.
func (w *world) escalate(target string, stats map[string]classify.WindowStats) {
	switch w.stateOf(target) {
	case models.StateNormal:
		w.transition(target, models.StateRestrictedWithdraw, "l1_screening", "R1",
			"flagged inbound transfer")
	case models.StateRestrictedWithdraw:
		if w.transition(target, models.StateUnderSurveillance, "l1_screening", "R2",
			"repeated flagged transfers") {
			w.arbitrate(target, stats)
		}
	case models.StateUnderSurveillance:
		w.arbitrate(target, stats)
	}
}

// arbitrate scores the target from its evidence window and appends an
// analysis. Scores over 70 ban the account.
func (w *world) arbitrate(target string, stats map[string]classify.WindowStats) {
	ws := stats[target]
	score := 30 + ws.Count*15
	if score > 100 {
		score = 100
	}

	senders := make(map[string]bool)
	var evidence []string
	for _, e := range w.events {
		if e.TargetID != target || e.Screened == nil || !*e.Screened {
			continue
		}
		senders[e.ActorID] = true
		if len(evidence) < 10 {
			evidence = append(evidence, e.EventID)
		}
	}

	action := models.StateUnderSurveillance
	switch {
	case score <= 30:
		action = models.StateNormal
	case score > 70:
		action = models.StateBanned
	}

	fraudType := "MONEY_LAUNDERING"
	if len(senders) >= 3 {
		fraudType = "RMT_SMURFING"
	}

	analysis := models.Analysis{
		TargetID:          target,
		IsFraud:           score > 30,
		RiskScore:         score,
		FraudType:         fraudType,
		RecommendedAction: action,
		Reasoning: fmt.Sprintf("%d flagged transfers from %d senders totalling %d",
			ws.Count, len(senders), ws.TotalAmount),
		EvidenceEventIDs: evidence,
		Confidence:       0.8,
	}
	// Newest first, matching the upstream API contract.
	w.analyses = append([]models.Analysis{analysis}, w.analyses...)

	if action == models.StateBanned {
		w.transition(target, models.StateBanned, "l2_arbitration", fraudType, analysis.Reasoning)
	}
}

// Users lists every known account and its state.
func (w *world) Users() []models.UserInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	users := make([]models.UserInfo, 0, len(w.states))
	for id, state := range w.states {
		users = append(users, models.UserInfo{UserID: id, State: state})
	}
	return users
}

// RecentEvents returns the newest events first, at most limit.
func (w *world) RecentEvents(limit int) []models.GameEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	if limit <= 0 || limit > len(w.events) {
		limit = len(w.events)
	}
	out := make([]models.GameEvent, 0, limit)
	for i := len(w.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, w.events[i])
	}
	return out
}

// Analyses returns the arbitration results, newest first.
func (w *world) Analyses() []models.Analysis {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.Analysis, len(w.analyses))
	copy(out, w.analyses)
	return out
}

// Graph aggregates the flagged transfer edges and their endpoints.
func (w *world) Graph() models.GraphData {
	w.mu.Lock()
	defer w.mu.Unlock()

	var g models.GraphData
	seen := make(map[string]bool)
	for key, ls := range w.links {
		source, target := splitLinkKey(key)
		if source == "" || target == "" {
			continue
		}
		g.Links = append(g.Links, models.GraphLink{
			Source: source,
			Target: target,
			Amount: ls.amount,
			Count:  ls.count,
		})
		for _, id := range []string{source, target} {
			if seen[id] {
				continue
			}
			seen[id] = true
			g.Nodes = append(g.Nodes, models.GraphNode{
				ID:    id,
				State: w.stateOf(id),
				Label: id,
			})
		}
	}
	return g
}

// Stats reports the aggregate pipeline counters.
func (w *world) Stats() models.Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := models.Stats{
		TotalAccounts:    len(w.states),
		TotalTransitions: len(w.transitions),
		L1Flags:          w.flaggedEvents,
		L2Analyses:       len(w.analyses),
		TotalEvents:      len(w.events),
	}
	for _, state := range w.states {
		switch state {
		case models.StateBanned:
			stats.Banned++
		case models.StateUnderSurveillance:
			stats.UnderSurveillance++
		case models.StateRestrictedWithdraw:
			stats.RestrictedWithdraw++
		default:
			stats.Normal++
		}
	}
	for _, tr := range w.transitions {
		if tr.ToState == models.StateRestrictedWithdraw {
			stats.BlockedWithdrawals++
		}
	}
	return stats
}

// Transitions returns the lifecycle log, newest first, at most limit.
func (w *world) Transitions(limit int) []models.TransitionLog {
	w.mu.Lock()
	defer w.mu.Unlock()
	if limit <= 0 || limit > len(w.transitions) {
		limit = len(w.transitions)
	}
	out := make([]models.TransitionLog, 0, limit)
	for i := len(w.transitions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, w.transitions[i])
	}
	return out
}

func splitLinkKey(key string) (source, target string) {
	for i, r := range key {
		if r == '→' {
			return key[:i], key[i+len(string(r)):]
		}
	}
	return "", ""
}
