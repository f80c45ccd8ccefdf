package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkarayel/starcrier/internal/config"
	"github.com/dkarayel/starcrier/internal/store"
)

var (
	historySince  string
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show previously posted repositories",
	RunE:  historyAction,
}

func init() {
	historyCmd.Flags().StringVar(&historySince, "since", "30d", "time window (e.g. 7d, 48h)")
	historyCmd.Flags().StringVar(&historyFormat, "format", "terminal", "output format: terminal, json")
	rootCmd.AddCommand(historyCmd)
}

func historyAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	sinceDur, err := parseDuration(historySince)
	if err != nil {
		return fmt.Errorf("parse --since: %w", err)
	}
	sinceTime := time.Now().Add(-sinceDur)

	ctx := cmd.Context()

	posts, err := db.ListPosts(ctx, sinceTime)
	if err != nil {
		return fmt.Errorf("list posts: %w", err)
	}

	stats, err := db.GetLanguageStats(ctx, sinceTime)
	if err != nil {
		return fmt.Errorf("get language stats: %w", err)
	}

	switch historyFormat {
	case "json":
		return json.NewEncoder(os.Stdout).Encode(struct {
			Posts     []store.Record        `json:"posts"`
			Languages []store.LanguageStats `json:"languages"`
		}{Posts: posts, Languages: stats})
	case "terminal":
		printHistory(posts, stats, sinceDur)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", historyFormat)
	}
}

func printHistory(posts []store.Record, stats []store.LanguageStats, since time.Duration) {
	if len(posts) == 0 {
		fmt.Printf("No posts in the last %s.\n", since)
		return
	}

	fmt.Printf("%d posts in the last %s\n\n", len(posts), since)
	for _, p := range posts {
		media := ""
		if p.MediaPath != "" {
			media = " [img]"
		}
		fmt.Printf("  %s  %-40s %s (%d⭐)%s\n",
			p.PostedAt.Local().Format("2006-01-02 15:04"), p.FullName, p.Language, p.Stars, media)
	}

	fmt.Println("\nBy language:")
	for _, ls := range stats {
		fmt.Printf("  %-16s %d\n", ls.Language, ls.Posts)
	}
}

// parseDuration accepts time.ParseDuration syntax plus a "d" suffix for
// days.
func parseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
