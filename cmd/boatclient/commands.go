package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"github.com/lowtide-labs/boatclient/api"
	"github.com/lowtide-labs/boatclient/chain"
	"github.com/lowtide-labs/boatclient/config"
	"github.com/lowtide-labs/boatclient/contracts"
	"github.com/lowtide-labs/boatclient/db"
	"github.com/lowtide-labs/boatclient/leaderboard"
	"github.com/lowtide-labs/boatclient/logger"
	"github.com/lowtide-labs/boatclient/session"
	"github.com/lowtide-labs/boatclient/version"
)

const privateKeyEnv = "BOATCLIENT_PRIVATE_KEY"

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(initCmd())
}

func startCmd() *cobra.Command {
	var home string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the boat game client",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(home)
			if err != nil {
				return err
			}

			log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			hexKey := os.Getenv(privateKeyEnv)
			if hexKey == "" {
				return fmt.Errorf("%s is required", privateKeyEnv)
			}
			chainID := big.NewInt(cfg.ChainID)
			signer, err := chain.NewLocalSigner(hexKey, chainID)
			if err != nil {
				return err
			}

			backend, err := ethclient.DialContext(ctx, cfg.RPCURL)
			if err != nil {
				return fmt.Errorf("failed to dial %s: %w", cfg.RPCURL, err)
			}
			defer backend.Close()

			registry, err := contracts.NewRegistry(cfg.Games)
			if err != nil {
				return err
			}

			database, err := db.OpenFileDB(cfg.HomeDir, "boatclient.db", true)
			if err != nil {
				return err
			}
			defer database.Close()

			manager := session.NewManager(session.Deps{
				Backend:  backend,
				Registry: registry,
				Database: database,
				Config:   cfg,
				ChainID:  chainID,
				Logger:   log,
			})
			defer manager.Close()

			if _, err := manager.Switch(ctx, signer); err != nil {
				return err
			}

			var board api.LeaderboardSource
			if cfg.SubgraphURL != "" {
				aggregator := leaderboard.NewSubgraphClient(cfg.SubgraphURL, cfg.ReadTimeout(), log)
				board = leaderboard.NewCache(aggregator, database, leaderboard.CacheConfig{
					TTL:         cfg.LeaderboardTTL(),
					MinInterval: cfg.LeaderboardMinInterval(),
				}, log)
			} else {
				log.Warn().Msg("no subgraph url configured, leaderboard disabled")
			}

			server := api.NewServer(manager, board, cfg.APIPort, log)
			if err := server.Start(); err != nil {
				return err
			}
			defer server.Stop()

			log.Info().
				Str("account", signer.Address().Hex()).
				Str("rpc", cfg.RPCURL).
				Int("api_port", cfg.APIPort).
				Msg("boatclient started")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
			case <-ctx.Done():
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&home, "home", "", "data directory (default ~/.boatclient)")
	return cmd
}

func initCmd() *cobra.Command {
	var home string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load(home)
			if err != nil {
				return err
			}
			return config.Save(cfg)
		},
	}

	cmd.Flags().StringVar(&home, "home", "", "data directory (default ~/.boatclient)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print boatclient version info",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("Name:    %s\n", version.Name)
			fmt.Printf("Version: %s\n", version.Version)
			fmt.Printf("Commit:  %s\n", version.Commit)
		},
	}
}
