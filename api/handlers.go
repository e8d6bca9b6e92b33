package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cast"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleStatus handles GET /api/v1/status
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "no active session")
		return
	}

	pending := 0
	for _, act := range sess.Actions.List(sess.Account()) {
		if !act.Status.Terminal() {
			pending++
		}
	}

	cooldowns := make(map[string]int)
	for id, remaining := range sess.Clock.Snapshot() {
		cooldowns[fmt.Sprintf("%d", id)] = int(remaining.Seconds())
	}

	writeJSON(w, StatusResponse{
		Account:        sess.Account().Hex(),
		Variants:       sess.VariantNames(),
		PendingActions: pending,
		Cooldowns:      cooldowns,
	})
}

// handleActions handles GET /api/v1/actions
func (s *Server) handleActions(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "no active session")
		return
	}

	actions := sess.Actions.List(sess.Account())
	views := make([]ActionView, 0, len(actions))
	for _, act := range actions {
		view := ActionView{
			Kind:       string(act.Kind),
			ResourceID: act.ResourceID,
			Status:     string(act.Status),
			ErrKind:    act.ErrKind,
			UpdatedAt:  act.UpdatedAt.Unix(),
		}
		if act.Amount != nil {
			view.Amount = act.Amount.String()
		}
		if act.TxHash != (ethcommon.Hash{}) {
			view.TxHash = act.TxHash.Hex()
		}
		views = append(views, view)
	}

	writeJSON(w, QueryResponse{Data: views})
}

// handleActivity handles GET /api/v1/activity
func (s *Server) handleActivity(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "no active session")
		return
	}

	entries := sess.Activity.Entries()
	views := make([]ActivityView, 0, len(entries))
	for _, rec := range entries {
		view := ActivityView{
			Type:        string(rec.Type),
			SourceToken: rec.SourceToken,
			ResourceID:  rec.ResourceID,
			Level:       rec.Level,
			FromLevel:   rec.FromLevel,
			ToLevel:     rec.ToLevel,
			Success:     rec.Success,
			OccurredAt:  rec.OccurredAt.Unix(),
		}
		if rec.Stake != nil {
			view.Stake = rec.Stake.String()
		}
		if rec.Reward != nil {
			view.Reward = rec.Reward.String()
		}
		if rec.Cost != nil {
			view.Cost = rec.Cost.String()
		}
		views = append(views, view)
	}

	writeJSON(w, QueryResponse{Data: views})
}

// handleLeaderboard handles GET /api/v1/leaderboard?partition=<token>&force=<bool>
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.leaderboard == nil {
		writeError(w, http.StatusServiceUnavailable, "leaderboard not configured")
		return
	}

	partition := r.URL.Query().Get("partition")
	if partition == "" {
		partition = "BOAT"
	}
	force := cast.ToBool(r.URL.Query().Get("force"))

	snap := s.leaderboard.Load(r.Context(), partition, force)
	rows := make([]LeaderboardRowView, 0, len(snap.Rows))
	for i, row := range snap.Rows {
		rows = append(rows, LeaderboardRowView{
			Rank:    i + 1,
			Account: row.Account,
			Wins:    row.Wins,
			Runs:    row.Runs,
		})
	}

	writeJSON(w, QueryResponse{Data: LeaderboardView{
		Partition:   partition,
		Source:      string(snap.Source),
		LastFetched: snap.FetchedAt.Unix(),
		Rows:        rows,
	}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
