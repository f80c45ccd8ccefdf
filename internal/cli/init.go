package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example config file",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

const exampleConfig = `# starcrier configuration

source:
  # extra candidate feeds (optional); items must link to repository pages
  feeds: []
  # restrict candidates to these languages; empty allows all
  languages: []
  min_stars: 0
  token_env: GITHUB_TOKEN

compose:
  # empty host uses OLLAMA_HOST or http://localhost:11434
  host: ""
  model: deepseek-coder
  max_tokens: 280

snapshot:
  dir: screenshots
  timeout: 90s
  disabled: false

publisher:
  api_key_env: TWITTER_API_KEY
  api_secret_env: TWITTER_API_SECRET
  access_token_env: TWITTER_ACCESS_TOKEN
  access_secret_env: TWITTER_ACCESS_TOKEN_SECRET

schedule:
  active_start: 9
  active_end: 23
  off_hours_skip: 0.8
  active_skip: 0.1
  min_sleep: 45m
  max_sleep: 120m
  timezone: Local

storage:
  path: .starcrier/starcrier.db
  retain_days: 90

log:
  level: info
  file: starcrier.log
`

func initAction(_ *cobra.Command, _ []string) error {
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("%s already exists.\n", configPath)
		return nil
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Wrote %s.\n", configPath)
	return nil
}
