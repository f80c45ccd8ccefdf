package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkarayel/starcrier/internal/config"
	"github.com/dkarayel/starcrier/internal/logger"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single posting cycle, ignoring the schedule gate",
	RunE:  onceAction,
}

func init() {
	rootCmd.AddCommand(onceCmd)
}

func onceAction(cmd *cobra.Command, _ []string) error {
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

	return sched.RunOnce(cmd.Context())
}
