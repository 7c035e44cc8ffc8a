package main

import (
	"context"
	"io/ioutil"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tendermint/tendermint/crypto"
	"github.com/tendermint/tendermint/crypto/ed25519"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmlog "github.com/tendermint/tendermint/libs/log"
	dbm "github.com/tendermint/tm-db"
	"golang.org/x/sync/errgroup"

	"github.com/bpolania/near-cosmos-ibc/relayer"
	tmchain "github.com/bpolania/near-cosmos-ibc/relayer/chains/tendermint"
	"github.com/bpolania/near-cosmos-ibc/relayer/config"
	"github.com/bpolania/near-cosmos-ibc/relayer/server"
)

const (
	flagHome = "home"

	configFileName = "config.yaml"
	keyFileName    = "key.json"
	dbName         = "relayer"

	// signerName is the account name the relayer registers its signing key
	// under on both chains.
	signerName = "relayer"
)

// NewRootCmd builds the relayerd command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relayerd",
		Short: "IBC packet relayer daemon",
		Long: `relayerd relays IBC packets, acknowledgements and timeouts between two
chains along a configured path. It scans both chains for packet events, keeps
the light client on each chain up to date with its counterparty and submits
proven messages, retrying with backoff and parking undeliverable work in a
dead-letter queue.`,
	}

	defaultHome := filepath.Join(os.ExpandEnv("$HOME"), ".relayerd")
	rootCmd.PersistentFlags().String(flagHome, defaultHome, "directory for config, keys and the relay database")

	rootCmd.AddCommand(
		initCmd(),
		startCmd(),
	)
	return rootCmd
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file and generate a signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := cmd.Flags().GetString(flagHome)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(home, 0o755); err != nil {
				return err
			}

			configPath := filepath.Join(home, configFileName)
			if _, err := os.Stat(configPath); err == nil {
				return errors.Errorf("config file %s already exists", configPath)
			}

			bz, err := config.Default().Marshal()
			if err != nil {
				return err
			}
			if err := ioutil.WriteFile(configPath, bz, 0o644); err != nil {
				return err
			}

			if _, err := loadOrCreateKey(home); err != nil {
				return err
			}

			cmd.Printf("wrote %s\n", configPath)
			return nil
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start relaying along the configured path",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := cmd.Flags().GetString(flagHome)
			if err != nil {
				return err
			}

			cfg, err := config.Load(filepath.Join(home, configFileName))
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Global.LogLevel)
			if err != nil {
				return err
			}
			privKey, err := loadOrCreateKey(home)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, privKey, logger)
		},
	}
}

func run(ctx context.Context, cfg *config.Config, privKey crypto.PrivKey, logger tmlog.Logger) error {
	if _, err := relayer.SetupMetrics("relayerd"); err != nil {
		return errors.Wrap(err, "setting up metrics")
	}

	db, err := openDB(cfg.Global.DBPath)
	if err != nil {
		return errors.Wrap(err, "opening relay database")
	}
	defer db.Close()

	src, err := tmchain.NewChain(cfg.Src.ChainID, cfg.Src.RPCAddr, signerName, privKey, cfg.Src.Timeout, logger)
	if err != nil {
		return err
	}
	dst, err := tmchain.NewChain(cfg.Dst.ChainID, cfg.Dst.RPCAddr, signerName, privKey, cfg.Dst.Timeout, logger)
	if err != nil {
		return err
	}

	tracker, err := relayer.NewTracker(db, logger, cfg.Global.Retention)
	if err != nil {
		return errors.Wrap(err, "opening relay tracker")
	}
	coordinator := relayer.NewCoordinator(cfg.Coordinator, src, dst, cfg.Path, tracker, logger)
	srv := server.New(cfg.Global.ListenAddr, coordinator, src, dst, cfg.Path, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return coordinator.Run(ctx)
	})
	group.Go(func() error {
		return srv.Start()
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("relayer started", "path", cfg.Path.String())
	return group.Wait()
}

func openDB(path string) (dbm.DB, error) {
	if path == "" {
		return dbm.NewMemDB(), nil
	}
	return dbm.NewGoLevelDB(dbName, path)
}

func newLogger(level string) (tmlog.Logger, error) {
	logger := tmlog.NewTMLogger(tmlog.NewSyncWriter(os.Stdout))
	switch level {
	case "debug":
		return tmlog.NewFilter(logger, tmlog.AllowDebug()), nil
	case "info", "":
		return tmlog.NewFilter(logger, tmlog.AllowInfo()), nil
	case "error":
		return tmlog.NewFilter(logger, tmlog.AllowError()), nil
	case "none":
		return tmlog.NewFilter(logger, tmlog.AllowNone()), nil
	default:
		return nil, errors.Errorf("unknown log level %q", level)
	}
}

// loadOrCreateKey reads the relayer's ed25519 signing key, generating and
// persisting a fresh one on first use.
func loadOrCreateKey(home string) (crypto.PrivKey, error) {
	keyPath := filepath.Join(home, keyFileName)

	if bz, err := ioutil.ReadFile(keyPath); err == nil {
		var privKey ed25519.PrivKey
		if err := tmjson.Unmarshal(bz, &privKey); err != nil {
			return nil, errors.Wrapf(err, "unmarshaling key file %s", keyPath)
		}
		return privKey, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	privKey := ed25519.GenPrivKey()
	bz, err := tmjson.Marshal(privKey)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return nil, err
	}
	if err := ioutil.WriteFile(keyPath, bz, 0o600); err != nil {
		return nil, errors.Wrapf(err, "writing key file %s", keyPath)
	}
	return privKey, nil
}
