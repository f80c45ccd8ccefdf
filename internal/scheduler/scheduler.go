// Package scheduler decides when to post and drives the pipeline:
// fetch candidates, guard duplicates, compose, capture, publish.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dkarayel/starcrier/internal/compose"
	"github.com/dkarayel/starcrier/internal/logger"
	"github.com/dkarayel/starcrier/internal/publisher"
	"github.com/dkarayel/starcrier/internal/source"
	"github.com/dkarayel/starcrier/internal/store"
)

// Store is the subset of the posted-repos store the scheduler needs.
type Store interface {
	PostedURLs(ctx context.Context) (map[string]bool, error)
	RecordPost(ctx context.Context, in store.RecordInput) (store.Record, error)
	PruneOld(ctx context.Context, retainDays int) (int64, error)
}

// Publisher submits a composed post.
type Publisher interface {
	Publish(ctx context.Context, post publisher.Post) (publisher.Result, error)
}

// Capturer saves a screenshot of the repository page and cleans up old
// ones.
type Capturer interface {
	Capture(ctx context.Context, repoURL string) (string, error)
	Prune(maxAge time.Duration) (int, error)
}

// Config holds the gating policy and candidate filters.
type Config struct {
	ActiveStart  int     // first active hour, inclusive
	ActiveEnd    int     // last active hour, exclusive
	OffHoursSkip float64 // skip probability outside active hours
	ActiveSkip   float64 // skip probability inside active hours
	MinSleep     time.Duration
	MaxSleep     time.Duration
	PostsPerHour int // optional hint; derives a minimum gap between wakes
	Location     *time.Location

	Languages  []string // allowed candidate languages; empty allows all
	MinStars   int
	RetainDays int
}

// Scheduler runs the wake/skip/post/sleep loop.
type Scheduler struct {
	cfg      Config
	sources  []source.Source
	composer compose.Composer
	capturer Capturer // nil disables screenshots
	pub      Publisher
	db       Store

	now func() time.Time
	rng *rand.Rand
	log *logrus.Logger
}

// New wires the pipeline. The capturer may be nil; everything else is
// required.
func New(cfg Config, sources []source.Source, composer compose.Composer, capturer Capturer, pub Publisher, db Store) (*Scheduler, error) {
	if len(sources) == 0 {
		return nil, errors.New("scheduler: at least one source is required")
	}
	if composer == nil {
		return nil, errors.New("scheduler: composer is required")
	}
	if pub == nil {
		return nil, errors.New("scheduler: publisher is required")
	}
	if db == nil {
		return nil, errors.New("scheduler: store is required")
	}
	if cfg.MinSleep <= 0 || cfg.MaxSleep < cfg.MinSleep {
		return nil, fmt.Errorf("scheduler: sleep window [%s, %s] is invalid", cfg.MinSleep, cfg.MaxSleep)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	return &Scheduler{
		cfg:      cfg,
		sources:  sources,
		composer: composer,
		capturer: capturer,
		pub:      pub,
		db:       db,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      logger.Log,
	}, nil
}

// Run loops until the context is canceled. A failed cycle is logged and
// treated as skipped; the loop always proceeds to the next sleep.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started")
	for {
		if s.shouldSkip(s.now()) {
			s.log.Info("cycle skipped by schedule gate")
		} else if err := s.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Errorf("cycle failed: %v", err)
		}

		d := s.sleepDuration()
		s.log.Infof("sleeping %s until next cycle", d.Round(time.Second))

		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return ctx.Err()
		case <-time.After(d):
		}
	}
}

// RunOnce executes a single posting cycle, bypassing the skip gate.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

// shouldSkip applies the hour-of-day gate: a high skip probability outside
// active hours, a low one inside.
func (s *Scheduler) shouldSkip(t time.Time) bool {
	hour := t.In(s.cfg.Location).Hour()
	p := s.cfg.OffHoursSkip
	if hour >= s.cfg.ActiveStart && hour < s.cfg.ActiveEnd {
		p = s.cfg.ActiveSkip
	}
	return s.rng.Float64() < p
}

// sleepDuration draws uniformly from [MinSleep, MaxSleep]. A
// posts-per-hour hint raises the lower bound to the implied gap, which
// never exceeds MaxSleep for any valid hint.
func (s *Scheduler) sleepDuration() time.Duration {
	span := s.cfg.MaxSleep - s.cfg.MinSleep
	d := s.cfg.MinSleep + time.Duration(s.rng.Float64()*float64(span))

	if s.cfg.PostsPerHour > 0 {
		gap := time.Hour / time.Duration(s.cfg.PostsPerHour)
		if gap > d && gap <= s.cfg.MaxSleep {
			d = gap
		}
	}
	return d
}

func (s *Scheduler) runCycle(ctx context.Context) error {
	posted, err := s.db.PostedURLs(ctx)
	if err != nil {
		return fmt.Errorf("load posted urls: %w", err)
	}

	var candidates []source.Candidate
	for _, src := range s.sources {
		cs, err := src.Fetch(ctx)
		if err != nil {
			s.log.Warnf("source %s failed: %v", src.Name(), err)
			continue
		}
		candidates = append(candidates, cs...)
	}

	eligible := s.filter(candidates, posted)
	if len(eligible) == 0 {
		s.log.Info("no new candidates this cycle")
		return nil
	}

	cand := eligible[s.rng.Intn(len(eligible))]
	s.log.WithFields(logrus.Fields{
		"repo":  cand.FullName,
		"stars": cand.Stars,
		"lang":  cand.Language,
	}).Info("selected candidate")

	text := s.composer.Compose(ctx, cand)
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("composer returned empty body for %s", cand.FullName)
	}

	mediaPath := ""
	if s.capturer != nil {
		path, err := s.capturer.Capture(ctx, cand.URL)
		if err != nil {
			s.log.Warnf("screenshot failed for %s: %v", cand.URL, err)
		} else {
			mediaPath = path
		}
	}

	res, err := s.pub.Publish(ctx, publisher.Post{
		Text:      text,
		MediaPath: mediaPath,
		LinkReply: cand.URL,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", cand.FullName, err)
	}

	if _, err := s.db.RecordPost(ctx, store.RecordInput{
		RepoURL:   cand.URL,
		FullName:  cand.FullName,
		Language:  cand.Language,
		Stars:     cand.Stars,
		Content:   text,
		MediaPath: mediaPath,
		PostID:    res.PostID,
		PostedAt:  s.now(),
	}); err != nil {
		return fmt.Errorf("record post: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"repo":    cand.FullName,
		"post_id": res.PostID,
		"media":   mediaPath != "",
	}).Info("posted")

	if s.cfg.RetainDays > 0 {
		if n, err := s.db.PruneOld(ctx, s.cfg.RetainDays); err != nil {
			s.log.Warnf("prune old posts: %v", err)
		} else if n > 0 {
			s.log.Infof("pruned %d old posts", n)
		}
		if s.capturer != nil {
			maxAge := time.Duration(s.cfg.RetainDays) * 24 * time.Hour
			if n, err := s.capturer.Prune(maxAge); err != nil {
				s.log.Warnf("prune screenshots: %v", err)
			} else if n > 0 {
				s.log.Infof("pruned %d stale screenshots", n)
			}
		}
	}

	return nil
}

// filter drops already-posted, under-starred, and disallowed-language
// candidates, and collapses duplicate URLs within the batch.
func (s *Scheduler) filter(candidates []source.Candidate, posted map[string]bool) []source.Candidate {
	seen := make(map[string]bool)
	var eligible []source.Candidate
	for _, c := range candidates {
		id := c.ID()
		if id == "" || seen[id] || posted[id] {
			continue
		}
		seen[id] = true

		if c.Stars < s.cfg.MinStars {
			continue
		}
		if !s.languageAllowed(c.Language) {
			continue
		}
		eligible = append(eligible, c)
	}
	return eligible
}

func (s *Scheduler) languageAllowed(lang string) bool {
	if len(s.cfg.Languages) == 0 {
		return true
	}
	for _, allowed := range s.cfg.Languages {
		if strings.EqualFold(allowed, lang) {
			return true
		}
	}
	return false
}
