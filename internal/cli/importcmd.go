package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkarayel/starcrier/internal/config"
	"github.com/dkarayel/starcrier/internal/store"
)

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file.log>",
	Short: "Import posted URLs from a legacy flat log file",
	Long:  "Reads 'Posted: <url>' lines, as written by the old bot's generated_tweets.log, and records them so they are never reposted.",
	Args:  cobra.ExactArgs(1),
	RunE:  importAction,
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "show what would be imported without modifying the store")
	rootCmd.AddCommand(importCmd)
}

const postedLinePrefix = "Posted: "

func importAction(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if _, after, found := strings.Cut(line, postedLinePrefix); found {
			if u := strings.TrimSpace(after); u != "" {
				urls = append(urls, u)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log: %w", err)
	}

	if len(urls) == 0 {
		fmt.Println("No posted URLs found in log file.")
		return nil
	}

	if importDryRun {
		for _, u := range urls {
			fmt.Println(u)
		}
		fmt.Printf("Would import %d URLs.\n", len(urls))
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	imported, err := db.ImportURLs(cmd.Context(), urls, time.Now())
	if err != nil {
		return fmt.Errorf("import urls: %w", err)
	}

	fmt.Printf("Imported %d of %d URLs (%d already known).\n", imported, len(urls), len(urls)-imported)
	return nil
}
