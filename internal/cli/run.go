package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dkarayel/starcrier/internal/config"
	"github.com/dkarayel/starcrier/internal/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the posting loop until interrupted",
	RunE:  runAction,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAction(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	sched, db, err := buildScheduler(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
