package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkarayel/starcrier/internal/compose"
	"github.com/dkarayel/starcrier/internal/config"
	"github.com/dkarayel/starcrier/internal/snapshot"
	"github.com/dkarayel/starcrier/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system health and dependencies",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	cfg, err := config.Load(configPath)
	if err != nil {
		printCheck(false, "config: %v", err)
		return fmt.Errorf("some checks failed")
	}
	printCheck(true, "config %s", configPath)

	if cfg.Publisher.HasCredentials() {
		printCheck(true, "publisher credentials")
	} else {
		printCheck(false, "publisher credentials missing (set %s, %s, %s, %s)",
			cfg.Publisher.APIKeyEnv, cfg.Publisher.APISecretEnv,
			cfg.Publisher.AccessTokenEnv, cfg.Publisher.AccessSecretEnv)
		ok = false
	}

	if db, err := store.Open(cfg.Storage.Path); err != nil {
		printCheck(false, "database: %v", err)
		ok = false
	} else {
		_ = db.Close()
		printCheck(true, "database %s", cfg.Storage.Path)
	}

	llm, err := compose.NewLLM(cfg.Compose.Host, cfg.Compose.Model, cfg.Compose.MaxTokens, compose.TemplateComposer{})
	if err != nil {
		printCheck(false, "ollama client: %v", err)
		ok = false
	} else if err := llm.Ping(cmd.Context()); err != nil {
		printWarn("ollama: %v (posts will use fallback text)", err)
	} else if err := llm.CheckModel(cmd.Context()); err != nil {
		printWarn("ollama: %v", err)
	} else {
		printCheck(true, "ollama model %s", cfg.Compose.Model)
	}

	if cfg.Snapshot.Disabled {
		printCheck(true, "screenshots disabled")
	} else if path, err := snapshot.FindBrowser(); err != nil {
		printWarn("browser: %v (posts will go out without images)", err)
	} else {
		printCheck(true, "browser %s", path)
	}

	if cfg.Source.Token == "" {
		printCheck(true, "github token not set (search fallback will be unauthenticated)")
	} else {
		printCheck(true, "github token")
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("All checks passed.")
	return nil
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

// printWarn marks degraded-but-usable conditions. They never fail the
// doctor run; only FAIL marks do.
func printWarn(format string, args ...any) {
	fmt.Printf("[WARN] %s\n", fmt.Sprintf(format, args...))
}
