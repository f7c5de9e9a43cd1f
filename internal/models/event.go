// Package models defines the core domain entities: feed events, risk
// analyses, account states, and the transaction graph snapshot.
package models

// ActionDetails carries the economic payload of a game event.
type ActionDetails struct {
	CurrencyAmount int64   `json:"currency_amount"`
	ItemID         string  `json:"item_id,omitempty"`
	MarketAvgPrice float64 `json:"market_avg_price,omitempty"`
}

// ContextMetadata carries actor context attached to a game event.
type ContextMetadata struct {
	ActorLevel     int    `json:"actor_level"`
	AccountAgeDays int    `json:"account_age_days"`
	RecentChatLog  string `json:"recent_chat_log,omitempty"`
}

// GameEvent is one raw transfer event from the surveillance feed.
// Screened and TriggeredRules, when present, are an authoritative upstream
// verdict that short-circuits local classification.
type GameEvent struct {
	EventID         string          `json:"event_id"`
	Timestamp       string          `json:"timestamp"`
	EventType       string          `json:"event_type"`
	ActorID         string          `json:"actor_id"`
	TargetID        string          `json:"target_id"`
	Screened        *bool           `json:"screened,omitempty"`
	TriggeredRules  []string        `json:"triggered_rules,omitempty"`
	ActionDetails   ActionDetails   `json:"action_details"`
	ContextMetadata ContextMetadata `json:"context_metadata"`
}

// Analysis is an externally computed L2 risk assessment for one account.
// Multiple analyses may reference the same target across polls; the feed
// delivers them newest-first and only the first per target is authoritative.
type Analysis struct {
	TargetID          string   `json:"target_id"`
	IsFraud           bool     `json:"is_fraud"`
	RiskScore         int      `json:"risk_score"`
	FraudType         string   `json:"fraud_type"`
	RecommendedAction string   `json:"recommended_action"`
	Reasoning         string   `json:"reasoning"`
	EvidenceEventIDs  []string `json:"evidence_event_ids"`
	Confidence        float64  `json:"confidence"`
}
