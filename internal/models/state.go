package models

// Account states, ordered by severity. Upstream data is untrusted: unknown
// strings rank alongside NORMAL and must never cause a panic.
const (
	StateNormal             = "NORMAL"
	StateRestrictedWithdraw = "RESTRICTED_WITHDRAWAL"
	StateUnderSurveillance  = "UNDER_SURVEILLANCE"
	StateBanned             = "BANNED"
)

// StateRank maps an account state to its severity rank:
// NORMAL(0) < RESTRICTED_WITHDRAWAL(1) < UNDER_SURVEILLANCE(2) < BANNED(3).
// Unrecognized states rank 0.
func StateRank(state string) int {
	switch state {
	case StateBanned:
		return 3
	case StateUnderSurveillance:
		return 2
	case StateRestrictedWithdraw:
		return 1
	default:
		return 0
	}
}

// UserInfo is one entry of the polled account roster.
type UserInfo struct {
	UserID string `json:"user_id"`
	State  string `json:"state"`
}

// TransitionLog records one observed account state transition.
type TransitionLog struct {
	UserID          string `json:"user_id"`
	FromState       string `json:"from_state"`
	ToState         string `json:"to_state"`
	Trigger         string `json:"trigger"`
	TriggeredByRule string `json:"triggered_by_rule"`
	Timestamp       string `json:"timestamp"`
	EvidenceSummary string `json:"evidence_summary"`
}

// Stats mirrors the upstream counters snapshot.
type Stats struct {
	Normal             int `json:"NORMAL"`
	RestrictedWithdraw int `json:"RESTRICTED_WITHDRAWAL"`
	UnderSurveillance  int `json:"UNDER_SURVEILLANCE"`
	Banned             int `json:"BANNED"`
	TotalAccounts      int `json:"total_accounts"`
	TotalTransitions   int `json:"total_transitions"`
	BlockedWithdrawals int `json:"blocked_withdrawals"`
	L1Flags            int `json:"l1_flags"`
	L2Analyses         int `json:"l2_analyses"`
	TotalEvents        int `json:"total_events"`
}
