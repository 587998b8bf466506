package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"task-management/internal/config"
	"task-management/internal/logging"
	"task-management/internal/store"
	"task-management/internal/store/memory"
	"task-management/internal/store/sqlstore"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "tasks",
	Short:         "Task tracking service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tasks schema in the configured SQL store",
	RunE:  runMigrate,
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print task events published on the postgres notify channel",
	RunE:  runListen,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, listenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// appEnv holds what every command needs after config loading.
type appEnv struct {
	cfg    config.Config
	logger *slog.Logger
}

func loadEnv(w io.Writer) (appEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return appEnv{}, fmt.Errorf("load config: %w", err)
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return appEnv{}, err
	}
	return appEnv{cfg: cfg, logger: logging.New(level, cfg.Log.Format, w)}, nil
}

// openedStore is the task store chosen by config plus its SQL handle, if any.
type openedStore struct {
	tasks store.TaskStore
	sql   *sqlstore.TaskStore
}

func (s openedStore) Close() error {
	if s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

func openStore(ctx context.Context, cfg config.StoreConfig, migrate bool) (openedStore, error) {
	if cfg.Driver == config.DriverMemory {
		return openedStore{tasks: memory.New()}, nil
	}

	ts, err := sqlstore.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return openedStore{}, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := ts.Ping(pingCtx); err != nil {
		_ = ts.Close()
		return openedStore{}, fmt.Errorf("ping %s store: %w", cfg.Driver, err)
	}

	if migrate {
		if err := ts.Migrate(ctx); err != nil {
			_ = ts.Close()
			return openedStore{}, err
		}
	}
	return openedStore{tasks: ts, sql: ts}, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	env, err := loadEnv(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if env.cfg.Store.Driver == config.DriverMemory {
		return fmt.Errorf("migrate needs a SQL store, driver is %q", env.cfg.Store.Driver)
	}

	st, err := openStore(cmd.Context(), env.cfg.Store, true)
	if err != nil {
		return err
	}
	defer st.Close()

	env.logger.Info("schema migrated", slog.String("driver", env.cfg.Store.Driver))
	return nil
}
