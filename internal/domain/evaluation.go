package domain

import "time"

// EvalType selects the evaluation programme.
type EvalType string

const (
	EvalOneStep EvalType = "1-step"
	EvalTwoStep EvalType = "2-step"
)

// Valid reports whether t is a known programme.
func (t EvalType) Valid() bool {
	return t == EvalOneStep || t == EvalTwoStep
}

// AccountStatus is the lifecycle state of an evaluation account.
type AccountStatus string

const (
	StatusActive  AccountStatus = "active"
	StatusFunded  AccountStatus = "funded"
	StatusPassed  AccountStatus = "passed"
	StatusFailed  AccountStatus = "failed"
	StatusExpired AccountStatus = "expired"
)

// Tradable reports whether trades may be opened or closed on an account in
// this status.
func (s AccountStatus) Tradable() bool {
	return s == StatusActive || s == StatusFunded
}

// EvaluationWindow is how long each phase stays open.
const EvaluationWindow = 30 * 24 * time.Hour

// PhaseTwoProfitTargetPct is the target applied when a 2-step account is
// promoted into phase 2.
const PhaseTwoProfitTargetPct = 4.0

// Account is a simulated trading account going through an evaluation.
type Account struct {
	ID                 string
	UserID             string
	EvalType           EvalType
	AccountSize        float64
	ProfitTargetPct    float64
	MaxDrawdownPct     float64
	ConsistencyRulePct float64
	MinTrades          int
	Phase              int
	Status             AccountStatus
	StartingBalance    float64
	Balance            float64
	HighWaterMark      float64
	TradesCount        int
	TotalProfit        float64
	TotalLoss          float64
	LargestTradeProfit float64
	CreatedAt          time.Time
	ExpiresAt          time.Time
	// Version increments on every ledger write and guards concurrent updates.
	Version int64
}

// RuleSet is the parameter preset applied when an account is granted.
type RuleSet struct {
	ProfitTargetPct    float64
	MaxDrawdownPct     float64
	ConsistencyRulePct float64
	MinTrades          int
}

// Presets holds the rule set for each programme.
var Presets = map[EvalType]RuleSet{
	EvalOneStep: {ProfitTargetPct: 10, MaxDrawdownPct: 6, ConsistencyRulePct: 20, MinTrades: 5},
	EvalTwoStep: {ProfitTargetPct: 6, MaxDrawdownPct: 6, ConsistencyRulePct: 50, MinTrades: 2},
}

// NewAccount builds a fresh phase-1 account of the given size using the
// programme preset. The caller assigns ID.
func NewAccount(userID string, evalType EvalType, size float64, now time.Time) Account {
	rules := Presets[evalType]
	return Account{
		UserID:             userID,
		EvalType:           evalType,
		AccountSize:        size,
		ProfitTargetPct:    rules.ProfitTargetPct,
		MaxDrawdownPct:     rules.MaxDrawdownPct,
		ConsistencyRulePct: rules.ConsistencyRulePct,
		MinTrades:          rules.MinTrades,
		Phase:              1,
		Status:             StatusActive,
		StartingBalance:    size,
		Balance:            size,
		HighWaterMark:      size,
		CreatedAt:          now,
		ExpiresAt:          now.Add(EvaluationWindow),
	}
}

// AccountEvent is published on the signal bus whenever an account changes.
type AccountEvent struct {
	Kind      string    `json:"kind"`
	AccountID string    `json:"account_id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Phase     int       `json:"phase"`
	Balance   float64   `json:"balance"`
	TradeID   string    `json:"trade_id,omitempty"`
	PnL       float64   `json:"pnl,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Account event kinds.
const (
	EventTradeOpened = "trade_opened"
	EventTradeClosed = "trade_closed"
	EventFailed      = "evaluation_failed"
	EventPassed      = "evaluation_passed"
	EventPromoted    = "evaluation_promoted"
	EventExpired     = "evaluation_expired"
	EventCreated     = "evaluation_created"
)

// ChannelAccountEvents is the signal bus channel for AccountEvent payloads.
const ChannelAccountEvents = "account_events"

// LeaderboardEntry is one row of the public leaderboard view.
type LeaderboardEntry struct {
	Trader      string
	AccountSize float64
	EvalType    EvalType
	ReturnPct   float64
	TradesCount int
	Status      AccountStatus
}
