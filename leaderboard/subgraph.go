// Package leaderboard serves ranked cross-account statistics with a TTL'd
// cache, a rate limit, and a deterministic fallback for when the
// aggregation service is down.
package leaderboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	clierrors "github.com/lowtide-labs/boatclient/errors"
	"github.com/lowtide-labs/boatclient/game"
)

// Aggregator fetches ranked player stats for one partition (reward token).
type Aggregator interface {
	FetchTop(ctx context.Context, partition string, limit int) ([]game.PlayerStat, error)
}

// winsFields maps a partition to the subgraph field holding its win count.
var winsFields = map[string]string{
	"BOAT":  "boatWins",
	"JOINT": "jointWins",
}

// SubgraphClient queries The Graph endpoint indexing the game contracts.
type SubgraphClient struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewSubgraphClient creates a client with a bounded request timeout.
func NewSubgraphClient(url string, timeout time.Duration, logger zerolog.Logger) *SubgraphClient {
	return &SubgraphClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "subgraph").Logger(),
	}
}

type graphqlRequest struct {
	Query string `json:"query"`
}

type graphqlResponse struct {
	Data struct {
		Users []struct {
			ID        string      `json:"id"`
			BoatWins  json.Number `json:"boatWins"`
			JointWins json.Number `json:"jointWins"`
			Runs      json.Number `json:"runs"`
		} `json:"users"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchTop implements Aggregator against the subgraph schema.
func (s *SubgraphClient) FetchTop(ctx context.Context, partition string, limit int) ([]game.PlayerStat, error) {
	field, ok := winsFields[partition]
	if !ok {
		field = "boatWins"
	}

	query := fmt.Sprintf(`{
  users(first: %d, orderBy: %s, orderDirection: desc, where: { %s_gt: 0 }) {
    id
    boatWins
    jointWins
    runs
  }
}`, limit, field, field)

	body, err := json.Marshal(graphqlRequest{Query: query})
	if err != nil {
		return nil, clierrors.New(clierrors.KindInternal, "marshal query", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, clierrors.New(clierrors.KindInternal, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, clierrors.New(clierrors.KindAggregationUnavailable, "subgraph request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, clierrors.New(clierrors.KindAggregationUnavailable,
			fmt.Sprintf("subgraph returned %d", resp.StatusCode), nil)
	}

	var decoded graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, clierrors.New(clierrors.KindAggregationUnavailable, "decode response", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, clierrors.New(clierrors.KindAggregationUnavailable, decoded.Errors[0].Message, nil)
	}

	stats := make([]game.PlayerStat, 0, len(decoded.Data.Users))
	for _, u := range decoded.Data.Users {
		wins := u.BoatWins
		if partition == "JOINT" {
			wins = u.JointWins
		}
		stats = append(stats, game.PlayerStat{
			Account: u.ID,
			Wins:    toUint64(wins),
			Runs:    toUint64(u.Runs),
		})
	}
	return stats, nil
}

func toUint64(n json.Number) uint64 {
	v, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
