package cli

import (
	"fmt"

	"github.com/dkarayel/starcrier/internal/compose"
	"github.com/dkarayel/starcrier/internal/config"
	"github.com/dkarayel/starcrier/internal/publisher"
	"github.com/dkarayel/starcrier/internal/scheduler"
	"github.com/dkarayel/starcrier/internal/snapshot"
	"github.com/dkarayel/starcrier/internal/source"
	"github.com/dkarayel/starcrier/internal/store"
)

// buildScheduler wires every collaborator from config. The caller owns
// closing the returned store.
func buildScheduler(cfg *config.Config) (*scheduler.Scheduler, *store.Store, error) {
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	sources := []source.Source{source.NewGitHub(cfg.Source.Token)}
	if len(cfg.Source.Feeds) > 0 {
		rs, err := source.NewRSS(cfg.Source.Feeds)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("create rss source: %w", err)
		}
		sources = append(sources, rs)
	}

	composer, err := compose.NewLLM(cfg.Compose.Host, cfg.Compose.Model, cfg.Compose.MaxTokens, compose.TemplateComposer{})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create composer: %w", err)
	}

	var capturer scheduler.Capturer
	if !cfg.Snapshot.Disabled {
		snap, err := snapshot.New(cfg.Snapshot.Dir, cfg.Snapshot.Timeout.Duration)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("create capturer: %w", err)
		}
		capturer = snap
	}

	pub, err := publisher.New(publisher.Credentials{
		APIKey:       cfg.Publisher.APIKey,
		APISecret:    cfg.Publisher.APISecret,
		AccessToken:  cfg.Publisher.AccessToken,
		AccessSecret: cfg.Publisher.AccessSecret,
	})
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	sched, err := scheduler.New(scheduler.Config{
		ActiveStart:  *cfg.Schedule.ActiveStart,
		ActiveEnd:    *cfg.Schedule.ActiveEnd,
		OffHoursSkip: *cfg.Schedule.OffHoursSkip,
		ActiveSkip:   *cfg.Schedule.ActiveSkip,
		MinSleep:     cfg.Schedule.MinSleep.Duration,
		MaxSleep:     cfg.Schedule.MaxSleep.Duration,
		PostsPerHour: cfg.Schedule.PostsPerHour,
		Location:     cfg.Location(),
		Languages:    cfg.Source.Languages,
		MinStars:     cfg.Source.MinStars,
		RetainDays:   cfg.Storage.RetainDays,
	}, sources, composer, capturer, pub, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return sched, db, nil
}
