package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagetune/pagetune-server/internal/chaptersync"
	"github.com/pagetune/pagetune-server/internal/config"
	"github.com/pagetune/pagetune-server/internal/logger"
	"github.com/pagetune/pagetune-server/internal/store/kv"
	"github.com/pagetune/pagetune-server/internal/store/sqlite"
)

// globalFlags are shared by every subcommand and forwarded to config.Load,
// so environment variables and .env files apply as they do for the server.
type globalFlags struct {
	dataPath          string
	checkpointBackend string
	logLevel          string
	envFile           string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "pagetune",
		Short:         "Chapter-synchronized music for e-book reading",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataPath, "data-path", "", "Base path for data storage")
	root.PersistentFlags().StringVar(&flags.checkpointBackend, "checkpoint-backend", "", "Checkpoint store: sqlite or badger")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Path to .env file")

	root.AddCommand(
		newListenCmd(flags),
		newImportCmd(flags),
		newInspectCmd(flags),
	)
	return root
}

func (f *globalFlags) args() []string {
	args := []string{"-env-file=" + f.envFile}
	if f.dataPath != "" {
		args = append(args, "-data-path="+f.dataPath)
	}
	if f.checkpointBackend != "" {
		args = append(args, "-checkpoint-backend="+f.checkpointBackend)
	}
	if f.logLevel != "" {
		args = append(args, "-log-level="+f.logLevel)
	}
	return args
}

// runtime holds what every subcommand opens.
type runtime struct {
	cfg         *config.Config
	log         *logger.Logger
	store       *sqlite.Store
	checkpoints chaptersync.CheckpointStore
	kv          *kv.Store
}

func openRuntime(f *globalFlags) (*runtime, error) {
	cfg, err := config.Load(f.args())
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Writer:      os.Stderr,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	if err := os.MkdirAll(cfg.Data.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	st, err := sqlite.Open(cfg.DatabasePath(), log.Logger)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, log: log, store: st, checkpoints: st}
	if cfg.Checkpoint.Backend == config.BackendBadger {
		db, err := kv.Open(cfg.CheckpointKVPath(), log.Logger, kv.Options{})
		if err != nil {
			st.Close()
			return nil, err
		}
		rt.kv = db
		rt.checkpoints = db
	}
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.kv != nil {
		if err := rt.kv.Close(); err != nil {
			rt.log.Warn("close checkpoint store", slog.String("error", err.Error()))
		}
	}
	if err := rt.store.Close(); err != nil {
		rt.log.Warn("close database", slog.String("error", err.Error()))
	}
}
