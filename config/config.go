// Package config loads and validates the boatclient configuration. A JSON
// file under <home>/config is merged over embedded defaults via viper, with
// BOATCLIENT_* environment variables taking precedence.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	configSubdir   = "config"
	configFileName = "boatclient_config.json"

	envPrefix = "BOATCLIENT"
)

//go:embed default_config.json
var defaultConfigJSON []byte

// GameContracts holds the deployed addresses for one game variant. The
// run-event shape is shared across variants; only addresses differ.
type GameContracts struct {
	Name         string `json:"name" mapstructure:"name"`                   // "BOAT", "JOINT", ...
	GameAddress  string `json:"game_address" mapstructure:"game_address"`   // wagering contract
	TokenAddress string `json:"token_address" mapstructure:"token_address"` // ERC-20 stake token
	NFTAddress   string `json:"nft_address" mapstructure:"nft_address"`     // boat ERC-721
}

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level" mapstructure:"log_level"`
	LogFormat  string `json:"log_format" mapstructure:"log_format"`
	LogSampler bool   `json:"log_sampler" mapstructure:"log_sampler"`

	// Node Config
	HomeDir string `json:"home_dir" mapstructure:"home_dir"` // data directory (default: ~/.boatclient)

	// Chain configuration
	RPCURL  string `json:"rpc_url" mapstructure:"rpc_url"`
	ChainID int64  `json:"chain_id" mapstructure:"chain_id"`

	// Game contract variants. The first entry is the primary game; the rest
	// are structurally identical deployments normalized by the event table.
	Games []GameContracts `json:"games" mapstructure:"games"`

	// Subgraph endpoint for the leaderboard aggregation service.
	SubgraphURL string `json:"subgraph_url" mapstructure:"subgraph_url"`

	// Query Server Config
	APIPort int `json:"api_port" mapstructure:"api_port"`

	// Timeouts and intervals, in seconds
	ReadTimeoutSeconds          int `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	EstimateTimeoutSeconds      int `json:"estimate_timeout_seconds" mapstructure:"estimate_timeout_seconds"`
	ConfirmTimeoutSeconds       int `json:"confirm_timeout_seconds" mapstructure:"confirm_timeout_seconds"`
	EventPollingIntervalSeconds int `json:"event_polling_interval_seconds" mapstructure:"event_polling_interval_seconds"`
	SweepIntervalSeconds        int `json:"sweep_interval_seconds" mapstructure:"sweep_interval_seconds"`
	SecondaryInvalidationDelay  int `json:"secondary_invalidation_delay_seconds" mapstructure:"secondary_invalidation_delay_seconds"`

	// Fee estimation margins. Gas limit is widened by GasMarginPercent, the
	// tip by TipMarginPercent plus a flat TipBumpWei priority bump.
	GasMarginPercent int    `json:"gas_margin_percent" mapstructure:"gas_margin_percent"`
	TipMarginPercent int    `json:"tip_margin_percent" mapstructure:"tip_margin_percent"`
	TipBumpWei       uint64 `json:"tip_bump_wei" mapstructure:"tip_bump_wei"`

	// Fee cap used when live estimation fails and no base fee is known.
	FallbackFeeCapGwei uint64 `json:"fallback_fee_cap_gwei" mapstructure:"fallback_fee_cap_gwei"`

	// Submitter retry policy for budget shortfalls: one retry at
	// firstGas + RetryGasIncrement, or RetryGasFloor when the first plan
	// was itself a fallback.
	RetryGasIncrement uint64 `json:"retry_gas_increment" mapstructure:"retry_gas_increment"`
	RetryGasFloor     uint64 `json:"retry_gas_floor" mapstructure:"retry_gas_floor"`

	// Approval sentinel, in whole tokens. Approvals always grant this
	// amount rather than the exact required amount.
	ApprovalSentinelTokens uint64 `json:"approval_sentinel_tokens" mapstructure:"approval_sentinel_tokens"`

	// Leaderboard cache policy
	LeaderboardTTLSeconds         int `json:"leaderboard_ttl_seconds" mapstructure:"leaderboard_ttl_seconds"`
	LeaderboardMinIntervalSeconds int `json:"leaderboard_min_interval_seconds" mapstructure:"leaderboard_min_interval_seconds"`

	// Activity log capacity per account
	ActivityCapacity int `json:"activity_capacity" mapstructure:"activity_capacity"`
}

func validateConfig(cfg *Config) error {
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.HomeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfg.HomeDir = filepath.Join(home, ".boatclient")
	}

	if cfg.RPCURL == "" {
		cfg.RPCURL = "http://localhost:8545"
	}
	if len(cfg.Games) == 0 {
		return fmt.Errorf("at least one game contract set is required")
	}
	for i, g := range cfg.Games {
		if g.Name == "" {
			return fmt.Errorf("games[%d]: name is required", i)
		}
		if g.GameAddress == "" {
			return fmt.Errorf("games[%d]: game_address is required", i)
		}
	}

	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}

	if cfg.ReadTimeoutSeconds == 0 {
		cfg.ReadTimeoutSeconds = 10
	}
	if cfg.EstimateTimeoutSeconds == 0 {
		cfg.EstimateTimeoutSeconds = 10
	}
	if cfg.ConfirmTimeoutSeconds == 0 {
		cfg.ConfirmTimeoutSeconds = 180
	}
	if cfg.EventPollingIntervalSeconds == 0 {
		cfg.EventPollingIntervalSeconds = 5
	}
	if cfg.SweepIntervalSeconds == 0 {
		cfg.SweepIntervalSeconds = 30
	}
	if cfg.SecondaryInvalidationDelay == 0 {
		cfg.SecondaryInvalidationDelay = 2
	}

	if cfg.GasMarginPercent == 0 {
		cfg.GasMarginPercent = 20
	}
	if cfg.TipMarginPercent == 0 {
		cfg.TipMarginPercent = 10
	}
	if cfg.TipBumpWei == 0 {
		cfg.TipBumpWei = 1_000_000_000 // 1 gwei
	}
	if cfg.FallbackFeeCapGwei == 0 {
		cfg.FallbackFeeCapGwei = 50
	}

	if cfg.RetryGasIncrement == 0 {
		cfg.RetryGasIncrement = 100_000
	}
	if cfg.RetryGasFloor == 0 {
		cfg.RetryGasFloor = 500_000
	}

	if cfg.ApprovalSentinelTokens == 0 {
		cfg.ApprovalSentinelTokens = 1_000_000
	}

	if cfg.LeaderboardTTLSeconds == 0 {
		cfg.LeaderboardTTLSeconds = 120
	}
	if cfg.LeaderboardMinIntervalSeconds == 0 {
		cfg.LeaderboardMinIntervalSeconds = 10
	}

	if cfg.ActivityCapacity == 0 {
		cfg.ActivityCapacity = 20
	}

	return nil
}

// Load reads the config file under basePath (if present) merged over the
// embedded defaults, applies environment overrides, validates, and fills
// defaults. A missing file is not an error; defaults are used.
func Load(basePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	if err := v.ReadConfig(bytes.NewReader(defaultConfigJSON)); err != nil {
		return nil, fmt.Errorf("failed to read embedded defaults: %w", err)
	}

	if basePath != "" {
		path := filepath.Join(basePath, configSubdir, configFileName)
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// AutomaticEnv does not populate unset struct fields on unmarshal, so
	// pick up the overrides that matter for deployment explicitly.
	if raw := os.Getenv(envPrefix + "_RPC_URL"); raw != "" {
		cfg.RPCURL = raw
	}
	if raw := os.Getenv(envPrefix + "_SUBGRAPH_URL"); raw != "" {
		cfg.SubgraphURL = raw
	}
	if raw := os.Getenv(envPrefix + "_API_PORT"); raw != "" {
		cfg.APIPort = cast.ToInt(raw)
	}
	if raw := os.Getenv(envPrefix + "_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = cast.ToInt(raw)
	}

	if basePath != "" {
		cfg.HomeDir = basePath
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Save writes the given config to <HomeDir>/config/boatclient_config.json.
func Save(cfg *Config) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(cfg.HomeDir, configSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(configDir, configFileName), data, 0o600)
}

// Duration accessors over the seconds-typed fields.

func (c *Config) ReadTimeout() time.Duration { return time.Duration(c.ReadTimeoutSeconds) * time.Second }

func (c *Config) EstimateTimeout() time.Duration {
	return time.Duration(c.EstimateTimeoutSeconds) * time.Second
}

func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSeconds) * time.Second
}

func (c *Config) EventPollInterval() time.Duration {
	return time.Duration(c.EventPollingIntervalSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) SecondaryDelay() time.Duration {
	return time.Duration(c.SecondaryInvalidationDelay) * time.Second
}

func (c *Config) LeaderboardTTL() time.Duration {
	return time.Duration(c.LeaderboardTTLSeconds) * time.Second
}

func (c *Config) LeaderboardMinInterval() time.Duration {
	return time.Duration(c.LeaderboardMinIntervalSeconds) * time.Second
}

// FallbackFeeCap returns the configured cap in wei.
func (c *Config) FallbackFeeCap() *big.Int {
	wei := new(big.Int).SetUint64(c.FallbackFeeCapGwei)
	return wei.Mul(wei, big.NewInt(1_000_000_000))
}

// Game returns the contract set for the named variant, or nil.
func (c *Config) Game(name string) *GameContracts {
	for i := range c.Games {
		if c.Games[i].Name == name {
			return &c.Games[i]
		}
	}
	return nil
}
