package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyedge/internal/app"
	"github.com/alanyoungcy/polyedge/internal/config"
	"github.com/alanyoungcy/polyedge/internal/service"
)

var (
	cfgFile string
	userID  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "polyedgectl",
	Short: "Administer PolyEdge evaluation accounts",
	Long: `polyedgectl runs admin tasks against the PolyEdge stores.

It reads the same TOML configuration and POLYEDGE_* environment as the
server. With store = "memory" every invocation starts empty, which is
useful for dry runs.

Examples:
  polyedgectl create --user u-1 --type 2-step --size 10000
  polyedgectl list --user u-1
  polyedgectl trade open <account-id> --user u-1 --contract "BTC > 100k" --side YES --size 500 --cents 42
  polyedgectl trade close <account-id> <trade-id> --user u-1 --cents 55
  polyedgectl leaderboard --limit 20
  polyedgectl archive list --month 2026-03`,
	SilenceUsage: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to TOML configuration file")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user id the command acts for")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level to stderr")
}

// env is what a command gets after configuration and wiring.
type env struct {
	cfg      *config.Config
	deps     *app.Dependencies
	services *app.Services
	logger   *slog.Logger
	cleanup  func()
}

func (e *env) Close() {
	if e.cleanup != nil {
		e.cleanup()
	}
}

func (e *env) session() (service.Session, error) {
	if userID == "" {
		return service.Session{}, fmt.Errorf("missing --user")
	}
	return service.Session{UserID: userID}, nil
}

// setup loads configuration and wires stores and services. Callers must
// Close the returned env.
func setup(ctx context.Context) (*env, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	deps, cleanup, err := app.Wire(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}
	return &env{
		cfg:      cfg,
		deps:     deps,
		services: app.NewServices(cfg, deps, logger),
		logger:   logger,
		cleanup:  cleanup,
	}, nil
}
