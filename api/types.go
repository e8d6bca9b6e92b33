package api

import "time"

// QueryResponse is the standard response envelope.
type QueryResponse struct {
	Data        interface{} `json:"data"`
	LastFetched time.Time   `json:"last_fetched,omitempty"`
}

// ErrorResponse carries a single error string.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse summarizes the running client.
type StatusResponse struct {
	Account        string         `json:"account"`
	Variants       []string       `json:"variants"`
	PendingActions int            `json:"pending_actions"`
	Cooldowns      map[string]int `json:"cooldowns_seconds"` // token id -> remaining
}

// ActionView is the JSON rendering of a PendingAction.
type ActionView struct {
	Kind       string `json:"kind"`
	ResourceID uint64 `json:"resource_id"`
	Amount     string `json:"amount,omitempty"`
	Status     string `json:"status"`
	TxHash     string `json:"tx_hash,omitempty"`
	ErrKind    string `json:"err_kind,omitempty"`
	UpdatedAt  int64  `json:"updated_at"`
}

// ActivityView is the JSON rendering of one activity feed entry.
type ActivityView struct {
	Type        string `json:"type"`
	SourceToken string `json:"source_token"`
	ResourceID  uint64 `json:"resource_id"`
	Level       uint8  `json:"level,omitempty"`
	FromLevel   uint8  `json:"from_level,omitempty"`
	ToLevel     uint8  `json:"to_level,omitempty"`
	Stake       string `json:"stake,omitempty"`
	Reward      string `json:"reward,omitempty"`
	Cost        string `json:"cost,omitempty"`
	Success     bool   `json:"success"`
	OccurredAt  int64  `json:"occurred_at"`
}

// LeaderboardView is the rendered board for one partition.
type LeaderboardView struct {
	Partition   string               `json:"partition"`
	Source      string               `json:"source"` // live, cached, or synthetic-fallback
	LastFetched int64                `json:"last_fetched"`
	Rows        []LeaderboardRowView `json:"rows"`
}

// LeaderboardRowView is one ranked leaderboard row.
type LeaderboardRowView struct {
	Rank    int    `json:"rank"`
	Account string `json:"account"`
	Wins    uint64 `json:"wins"`
	Runs    uint64 `json:"runs"`
}
