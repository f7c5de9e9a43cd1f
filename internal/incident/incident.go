// Package incident builds the ranked incident view from the polled
// account, event, and analysis snapshots. BuildIncidents is a pure
// function: identical inputs produce identical output, including the step
// detail strings, regardless of map iteration order.
package incident

import (
	"fmt"
	"sort"

	"github.com/takurot/susanoh/internal/classify"
	"github.com/takurot/susanoh/internal/models"
)

// Step is one stage of an incident's progress through the pipeline.
type Step struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Done   bool   `json:"done"`
	Detail string `json:"detail,omitempty"`
}

// Item is one account under active investigation. Items are recomputed in
// full on every call and carry no identity beyond UserID.
type Item struct {
	UserID    string `json:"userId"`
	State     string `json:"state"`
	RiskScore *int   `json:"riskScore,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Steps     []Step `json:"steps"`
}

// BuildIncidents derives the ranked, capped incident list from one poll's
// snapshots. Candidates are accounts that are not NORMAL, have an L2
// analysis, or are targets of at least one suspicious event. A limit of
// zero or below yields an empty list.
func BuildIncidents(cfg classify.Config, users []models.UserInfo, events []models.GameEvent, analyses []models.Analysis, limit int) []Item {
	usersByID := make(map[string]models.UserInfo, len(users))
	for _, u := range users {
		usersByID[u.UserID] = u
	}

	// Analyses arrive newest-first; the first occurrence per target wins.
	latestAnalysis := make(map[string]models.Analysis, len(analyses))
	for _, a := range analyses {
		if _, ok := latestAnalysis[a.TargetID]; !ok {
			latestAnalysis[a.TargetID] = a
		}
	}

	stats := classify.BuildWindowStats(events)
	flagged := make(map[string]bool)
	for _, e := range events {
		if cfg.ClassifyEvent(e, stats).Suspicious {
			flagged[e.TargetID] = true
		}
	}

	candidates := make(map[string]bool)
	for _, u := range users {
		if u.State != models.StateNormal {
			candidates[u.UserID] = true
		}
	}
	for target := range latestAnalysis {
		candidates[target] = true
	}
	for target := range flagged {
		candidates[target] = true
	}

	items := make([]Item, 0, len(candidates))
	for userID := range candidates {
		analysis, hasL2 := latestAnalysis[userID]

		state := models.StateNormal
		if u, ok := usersByID[userID]; ok {
			state = u.State
		} else if hasL2 && analysis.RecommendedAction != "" {
			state = analysis.RecommendedAction
		}

		withdrawRestricted := state != models.StateNormal

		item := Item{
			UserID: userID,
			State:  state,
			Steps: []Step{
				{Key: "l1", Label: "L1 Flagged", Done: flagged[userID]},
				{Key: "withdraw", Label: "Withdraw Restricted", Done: withdrawRestricted},
				{Key: "l2", Label: "L2 Analyzed", Done: hasL2},
				{Key: "final", Label: "Final: " + state, Done: state != models.StateNormal},
			},
		}
		if hasL2 {
			risk := analysis.RiskScore
			item.RiskScore = &risk
			item.Reasoning = analysis.Reasoning
			item.Steps[2].Detail = fmt.Sprintf("risk %d", risk)
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		ri, rj := models.StateRank(items[i].State), models.StateRank(items[j].State)
		if ri != rj {
			return ri > rj
		}
		si, sj := riskOrMissing(items[i].RiskScore), riskOrMissing(items[j].RiskScore)
		if si != sj {
			return si > sj
		}
		return items[i].UserID < items[j].UserID
	})

	if limit < 0 {
		limit = 0
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func riskOrMissing(risk *int) int {
	if risk == nil {
		return -1
	}
	return *risk
}
