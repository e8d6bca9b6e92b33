package api

import (
	"context"

	"github.com/lowtide-labs/boatclient/leaderboard"
	"github.com/lowtide-labs/boatclient/session"
)

// SessionSource exposes the active session to the handlers. Satisfied by
// *session.Manager.
type SessionSource interface {
	Current() *session.Session
}

// LeaderboardSource serves ranked snapshots per partition. Satisfied by
// *leaderboard.Cache.
type LeaderboardSource interface {
	Load(ctx context.Context, partition string, force bool) leaderboard.Snapshot
}
