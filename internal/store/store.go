// Package store persists the log of already-promoted repositories.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Record is one promoted repository.
type Record struct {
	ID        int64
	RepoURL   string
	FullName  string
	Language  string
	Stars     int
	Content   string
	MediaPath string
	PostID    string
	PostedAt  time.Time
}

// RecordInput holds the fields written when a post succeeds.
type RecordInput struct {
	RepoURL   string
	FullName  string
	Language  string
	Stars     int
	Content   string
	MediaPath string
	PostID    string
	PostedAt  time.Time
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordPost writes a successful post. Reposting the same URL updates the
// existing row rather than duplicating it.
func (s *Store) RecordPost(ctx context.Context, in RecordInput) (Record, error) {
	if s == nil || s.db == nil {
		return Record{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(in.RepoURL) == "" {
		return Record{}, errors.New("repo_url is required")
	}
	if strings.TrimSpace(in.FullName) == "" {
		return Record{}, errors.New("full_name is required")
	}
	if in.PostedAt.IsZero() {
		return Record{}, errors.New("posted_at is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posted_repos (
			repo_url, full_name, language, stars, content, media_path, post_id, posted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_url) DO UPDATE SET
			full_name = excluded.full_name,
			language = excluded.language,
			stars = excluded.stars,
			content = excluded.content,
			media_path = excluded.media_path,
			post_id = excluded.post_id,
			posted_at = excluded.posted_at
	`,
		strings.TrimSpace(in.RepoURL),
		in.FullName,
		nullString(in.Language),
		in.Stars,
		nullString(in.Content),
		nullString(in.MediaPath),
		nullString(in.PostID),
		formatTime(in.PostedAt),
	)
	if err != nil {
		return Record{}, fmt.Errorf("record post: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, repo_url, full_name, language, stars, content, media_path, post_id, posted_at
		FROM posted_repos
		WHERE repo_url = ?
	`, strings.TrimSpace(in.RepoURL))

	return scanRecord(row)
}

// IsPosted reports whether the repository URL is already in the log.
func (s *Store) IsPosted(ctx context.Context, repoURL string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM posted_repos WHERE repo_url = ?", strings.TrimSpace(repoURL),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check posted: %w", err)
	}
	return true, nil
}

// PostedURLs returns the full membership set for bulk candidate filtering.
func (s *Store) PostedURLs(ctx context.Context) (map[string]bool, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, "SELECT repo_url FROM posted_repos")
	if err != nil {
		return nil, fmt.Errorf("list posted urls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	urls := make(map[string]bool)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		urls[u] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate urls: %w", err)
	}
	return urls, nil
}

// ListPosts returns posts made since the given time, newest first.
func (s *Store) ListPosts(ctx context.Context, since time.Time) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_url, full_name, language, stars, content, media_path, post_id, posted_at
		FROM posted_repos
		WHERE posted_at >= ?
		ORDER BY posted_at DESC
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return records, nil
}

// ImportURLs records repository URLs from a legacy flat log. Already known
// URLs are skipped. Returns the number of new rows.
func (s *Store) ImportURLs(ctx context.Context, urls []string, importedAt time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if importedAt.IsZero() {
		importedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}

	imported := 0
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO posted_repos (repo_url, full_name, stars, posted_at)
			VALUES (?, ?, 0, ?)
		`, u, fullNameFromURL(u), formatTime(importedAt))
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("import url %s: %w", u, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			imported++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return imported, nil
}

// LanguageStats holds per-language posting aggregates.
type LanguageStats struct {
	Language string
	Posts    int
	LastPost time.Time
}

// GetLanguageStats returns per-language aggregates for posts since the
// given time.
func (s *Store) GetLanguageStats(ctx context.Context, since time.Time) ([]LanguageStats, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(language, 'Unknown'),
			COUNT(*) AS posts,
			MAX(posted_at) AS last_post
		FROM posted_repos
		WHERE posted_at >= ?
		GROUP BY COALESCE(language, 'Unknown')
		ORDER BY posts DESC, 1
	`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("get language stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []LanguageStats
	for rows.Next() {
		var ls LanguageStats
		var lastPost string
		if err := rows.Scan(&ls.Language, &ls.Posts, &lastPost); err != nil {
			return nil, fmt.Errorf("scan language stats: %w", err)
		}
		ls.LastPost, err = parseTime(lastPost)
		if err != nil {
			return nil, fmt.Errorf("parse last_post: %w", err)
		}
		stats = append(stats, ls)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate language stats: %w", err)
	}
	return stats, nil
}

// PruneOld deletes records older than retainDays. Returns the number of
// rows removed.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(time.Now().AddDate(0, 0, -retainDays))
	res, err := s.db.ExecContext(ctx, "DELETE FROM posted_repos WHERE posted_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune old posts: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (Record, error) {
	var (
		rec                                      Record
		langVal, contentVal, mediaVal, postIDVal sql.NullString
		postedAt                                 string
	)

	if err := scanner.Scan(
		&rec.ID,
		&rec.RepoURL,
		&rec.FullName,
		&langVal,
		&rec.Stars,
		&contentVal,
		&mediaVal,
		&postIDVal,
		&postedAt,
	); err != nil {
		return Record{}, fmt.Errorf("scan record: %w", err)
	}

	rec.Language = langVal.String
	rec.Content = contentVal.String
	rec.MediaPath = mediaVal.String
	rec.PostID = postIDVal.String

	var err error
	rec.PostedAt, err = parseTime(postedAt)
	if err != nil {
		return Record{}, fmt.Errorf("parse posted_at: %w", err)
	}

	return rec, nil
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return time.Time{}.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

func fullNameFromURL(u string) string {
	trimmed := strings.TrimSuffix(u, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	return trimmed
}
