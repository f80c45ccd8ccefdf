package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile    = "config.yaml"
	DefaultStoragePath   = ".starcrier/starcrier.db"
	DefaultScreenshotDir = "screenshots"
	DefaultRetainDays    = 90
	DefaultModel         = "deepseek-coder"
	DefaultMaxTokens     = 280
	DefaultActiveStart   = 9
	DefaultActiveEnd     = 23
	DefaultOffHoursSkip  = 0.8
	DefaultActiveSkip    = 0.1
	DefaultMinSleep      = 45 * time.Minute
	DefaultMaxSleep      = 120 * time.Minute
	DefaultTimezone      = "Local"
	DefaultSnapTimeout   = 90 * time.Second
)

// Default env var names for resolved credentials, matching what the
// original deployment exported.
const (
	defaultAPIKeyEnv       = "TWITTER_API_KEY"
	defaultAPISecretEnv    = "TWITTER_API_SECRET"
	defaultAccessTokenEnv  = "TWITTER_ACCESS_TOKEN"
	defaultAccessSecretEnv = "TWITTER_ACCESS_TOKEN_SECRET"
	defaultGitHubTokenEnv  = "GITHUB_TOKEN"
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "45m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Compose   ComposeConfig   `yaml:"compose"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Publisher PublisherConfig `yaml:"publisher"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

type SourceConfig struct {
	Feeds     []string `yaml:"feeds"`
	Languages []string `yaml:"languages"`
	MinStars  int      `yaml:"min_stars"`
	TokenEnv  string   `yaml:"token_env"`

	// Resolved from env at load time.
	Token string `yaml:"-"`
}

type ComposeConfig struct {
	Host      string `yaml:"host"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type SnapshotConfig struct {
	Dir      string   `yaml:"dir"`
	Timeout  Duration `yaml:"timeout"`
	Disabled bool     `yaml:"disabled"`
}

type PublisherConfig struct {
	APIKeyEnv       string `yaml:"api_key_env"`
	APISecretEnv    string `yaml:"api_secret_env"`
	AccessTokenEnv  string `yaml:"access_token_env"`
	AccessSecretEnv string `yaml:"access_secret_env"`

	// Resolved from env at load time.
	APIKey       string `yaml:"-"`
	APISecret    string `yaml:"-"`
	AccessToken  string `yaml:"-"`
	AccessSecret string `yaml:"-"`
}

// HasCredentials reports whether all four OAuth1 credentials resolved.
func (p PublisherConfig) HasCredentials() bool {
	return p.APIKey != "" && p.APISecret != "" && p.AccessToken != "" && p.AccessSecret != ""
}

// ScheduleConfig uses pointers for the gate fields so explicit zero
// values (midnight start, zero skip probability) survive defaulting.
type ScheduleConfig struct {
	ActiveStart  *int     `yaml:"active_start"`
	ActiveEnd    *int     `yaml:"active_end"`
	OffHoursSkip *float64 `yaml:"off_hours_skip"`
	ActiveSkip   *float64 `yaml:"active_skip"`
	MinSleep     Duration `yaml:"min_sleep"`
	MaxSleep     Duration `yaml:"max_sleep"`
	Timezone     string   `yaml:"timezone"`

	// Resolved from POSTS_PER_HOUR at load time; 0 means no hint.
	PostsPerHour int `yaml:"-"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	RetainDays int    `yaml:"retain_days"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads config.yaml from path, applies defaults, resolves env vars,
// and validates. A missing file is not an error: env-only deployments get
// the defaults.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config path is required")
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
		// env-only run
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyDefaults(&cfg)
	if err := resolveEnv(&cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.RetainDays == 0 {
		cfg.Storage.RetainDays = DefaultRetainDays
	}
	if cfg.Compose.Model == "" {
		cfg.Compose.Model = DefaultModel
	}
	if cfg.Compose.MaxTokens == 0 {
		cfg.Compose.MaxTokens = DefaultMaxTokens
	}
	if cfg.Snapshot.Dir == "" {
		cfg.Snapshot.Dir = DefaultScreenshotDir
	}
	if cfg.Snapshot.Timeout.Duration == 0 {
		cfg.Snapshot.Timeout.Duration = DefaultSnapTimeout
	}
	if cfg.Schedule.ActiveStart == nil {
		cfg.Schedule.ActiveStart = intPtr(DefaultActiveStart)
	}
	if cfg.Schedule.ActiveEnd == nil {
		cfg.Schedule.ActiveEnd = intPtr(DefaultActiveEnd)
	}
	if cfg.Schedule.OffHoursSkip == nil {
		cfg.Schedule.OffHoursSkip = floatPtr(DefaultOffHoursSkip)
	}
	if cfg.Schedule.ActiveSkip == nil {
		cfg.Schedule.ActiveSkip = floatPtr(DefaultActiveSkip)
	}
	if cfg.Schedule.MinSleep.Duration == 0 {
		cfg.Schedule.MinSleep.Duration = DefaultMinSleep
	}
	if cfg.Schedule.MaxSleep.Duration == 0 {
		cfg.Schedule.MaxSleep.Duration = DefaultMaxSleep
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = DefaultTimezone
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Source.TokenEnv == "" {
		cfg.Source.TokenEnv = defaultGitHubTokenEnv
	}
	if cfg.Publisher.APIKeyEnv == "" {
		cfg.Publisher.APIKeyEnv = defaultAPIKeyEnv
	}
	if cfg.Publisher.APISecretEnv == "" {
		cfg.Publisher.APISecretEnv = defaultAPISecretEnv
	}
	if cfg.Publisher.AccessTokenEnv == "" {
		cfg.Publisher.AccessTokenEnv = defaultAccessTokenEnv
	}
	if cfg.Publisher.AccessSecretEnv == "" {
		cfg.Publisher.AccessSecretEnv = defaultAccessSecretEnv
	}
}

func resolveEnv(cfg *Config) error {
	cfg.Source.Token = os.Getenv(cfg.Source.TokenEnv)
	cfg.Publisher.APIKey = os.Getenv(cfg.Publisher.APIKeyEnv)
	cfg.Publisher.APISecret = os.Getenv(cfg.Publisher.APISecretEnv)
	cfg.Publisher.AccessToken = os.Getenv(cfg.Publisher.AccessTokenEnv)
	cfg.Publisher.AccessSecret = os.Getenv(cfg.Publisher.AccessSecretEnv)

	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		cfg.Compose.Model = model
	}

	if pph := os.Getenv("POSTS_PER_HOUR"); pph != "" {
		n, err := strconv.Atoi(pph)
		if err != nil || n < 1 {
			return fmt.Errorf("POSTS_PER_HOUR: invalid value %q", pph)
		}
		cfg.Schedule.PostsPerHour = n
	}

	return nil
}

func validate(cfg *Config) error {
	s := cfg.Schedule
	if *s.ActiveStart < 0 || *s.ActiveStart > 23 {
		return fmt.Errorf("schedule.active_start: hour %d out of range", *s.ActiveStart)
	}
	if *s.ActiveEnd < 1 || *s.ActiveEnd > 24 {
		return fmt.Errorf("schedule.active_end: hour %d out of range", *s.ActiveEnd)
	}
	if *s.ActiveStart >= *s.ActiveEnd {
		return fmt.Errorf("schedule: active_start %d must be before active_end %d", *s.ActiveStart, *s.ActiveEnd)
	}
	if *s.OffHoursSkip < 0 || *s.OffHoursSkip > 1 {
		return fmt.Errorf("schedule.off_hours_skip: %v is not a probability", *s.OffHoursSkip)
	}
	if *s.ActiveSkip < 0 || *s.ActiveSkip > 1 {
		return fmt.Errorf("schedule.active_skip: %v is not a probability", *s.ActiveSkip)
	}
	if s.MinSleep.Duration <= 0 || s.MaxSleep.Duration < s.MinSleep.Duration {
		return fmt.Errorf("schedule: sleep window [%s, %s] is invalid", s.MinSleep.Duration, s.MaxSleep.Duration)
	}

	if s.Timezone != "Local" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}

	if cfg.Compose.Host != "" && !strings.HasPrefix(cfg.Compose.Host, "http") {
		return fmt.Errorf("compose.host: %q must be an http(s) URL", cfg.Compose.Host)
	}

	return nil
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

// Location resolves the configured timezone.
func (c *Config) Location() *time.Location {
	if c.Schedule.Timezone == "Local" || c.Schedule.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
