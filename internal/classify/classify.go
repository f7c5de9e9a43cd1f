// Package classify implements the rule-based suspicion classifier for raw
// transfer events and graph links. All functions are pure transforms over
// their inputs; thresholds live in Config so they can be tuned without
// touching the rules.
package classify

import (
	"regexp"

	"github.com/takurot/susanoh/internal/models"
)

// slangPattern matches transliterated banking/payment jargon in chat logs
// (bank transfer, account number, payment confirmation, PayPal, etc.).
var slangPattern = regexp.MustCompile(`振[り込]?込|D[でにて]確認|[0-9]+[kK千万]|りょ[。.]|PayPa[ly]|銀行|口座|送金|入金確認`)

// Config holds the classifier thresholds.
type Config struct {
	AmountThreshold     int64
	CountThreshold      int
	MarketAvgMultiplier float64
	LinkAmountThreshold int64
	LinkCountThreshold  int
}

// DefaultConfig returns the production threshold set.
func DefaultConfig() Config {
	return Config{
		AmountThreshold:     1_000_000,
		CountThreshold:      10,
		MarketAvgMultiplier: 100,
		LinkAmountThreshold: 500_000,
		LinkCountThreshold:  3,
	}
}

// VerdictSource distinguishes an upstream verdict from a locally computed one.
type VerdictSource int

const (
	SourceComputed VerdictSource = iota
	SourceAuthoritative
)

// Verdict is a suspicion verdict together with its provenance. An
// authoritative verdict comes from the upstream screening pipeline and
// always wins over the local fallback rules.
type Verdict struct {
	Source     VerdictSource
	Suspicious bool
}

// WindowStats aggregates the inbound events of one target across the
// current snapshot's event batch.
type WindowStats struct {
	TotalAmount int64
	Count       int
}

// BuildWindowStats sums currency amounts and counts events grouped by
// target id across the supplied batch.
func BuildWindowStats(events []models.GameEvent) map[string]WindowStats {
	stats := make(map[string]WindowStats, len(events))
	for _, e := range events {
		ws := stats[e.TargetID]
		ws.TotalAmount += e.ActionDetails.CurrencyAmount
		ws.Count++
		stats[e.TargetID] = ws
	}
	return stats
}

// ClassifyEvent applies the suspicion policy in priority order: the
// upstream screened flag verbatim, then non-empty triggered rules, then the
// slang pattern, then the quantitative fallback over the target's window
// stats. First match wins.
func (c Config) ClassifyEvent(event models.GameEvent, stats map[string]WindowStats) Verdict {
	if event.Screened != nil {
		return Verdict{Source: SourceAuthoritative, Suspicious: *event.Screened}
	}
	if len(event.TriggeredRules) > 0 {
		return Verdict{Source: SourceComputed, Suspicious: true}
	}
	if chat := event.ContextMetadata.RecentChatLog; chat != "" && slangPattern.MatchString(chat) {
		return Verdict{Source: SourceComputed, Suspicious: true}
	}

	ws := stats[event.TargetID]
	if ws.TotalAmount >= c.AmountThreshold {
		return Verdict{Source: SourceComputed, Suspicious: true}
	}
	if ws.Count >= c.CountThreshold {
		return Verdict{Source: SourceComputed, Suspicious: true}
	}
	avg := event.ActionDetails.MarketAvgPrice
	if avg > 0 && float64(event.ActionDetails.CurrencyAmount) >= avg*c.MarketAvgMultiplier {
		return Verdict{Source: SourceComputed, Suspicious: true}
	}
	return Verdict{Source: SourceComputed, Suspicious: false}
}

// ClassifyLink reports whether an aggregated transfer edge looks
// suspicious: total amount or transfer count over the link thresholds.
func (c Config) ClassifyLink(link models.GraphLink) bool {
	return link.Amount >= c.LinkAmountThreshold || link.Count >= c.LinkCountThreshold
}
