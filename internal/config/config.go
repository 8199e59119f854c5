package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"blockplan/internal/fsutil"
	"blockplan/internal/grid"
)

// NOTE: This file provides the configuration model and load/save behavior,
// including first-run config creation and 0600 permissions. Paths ending in
// .toml are read and written as TOML, everything else as YAML.

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" toml:"username"`
	Password string `yaml:"password" json:"password" toml:"password"`
}

// GridConfig describes the visible day window and the interaction constants.
type GridConfig struct {
	StartHour int `yaml:"start_hour" json:"start_hour" toml:"start_hour"`
	EndHour   int `yaml:"end_hour" json:"end_hour" toml:"end_hour"`
	// HourHeight is the pixel height of one hour in the HTML week view.
	HourHeight float64 `yaml:"hour_height" json:"hour_height" toml:"hour_height"`
	// GutterWidth is the pixel width of the hour label column.
	GutterWidth         int `yaml:"gutter_width" json:"gutter_width" toml:"gutter_width"`
	SnapMinutes         int `yaml:"snap_minutes" json:"snap_minutes" toml:"snap_minutes"`
	MinDurationMinutes  int `yaml:"min_duration_minutes" json:"min_duration_minutes" toml:"min_duration_minutes"`
	DefaultBlockMinutes int `yaml:"default_block_minutes" json:"default_block_minutes" toml:"default_block_minutes"`
}

// Window converts the grid settings into a grid.Window.
func (g GridConfig) Window() grid.Window {
	return grid.Window{StartHour: g.StartHour, EndHour: g.EndHour, HourHeight: g.HourHeight}
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen" toml:"listen"`

	// WeekStart controls which weekday is treated as the first day of the week.
	// Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start" toml:"week_start"`

	Grid GridConfig `yaml:"grid" json:"grid" toml:"grid"`

	// DailyBudgetMinutes is the per-day threshold above which saving a block
	// asks for confirmation.
	DailyBudgetMinutes int `yaml:"daily_budget_minutes" json:"daily_budget_minutes" toml:"daily_budget_minutes"`

	// StorePath is the JSON event store used by the server.
	StorePath string `yaml:"store_path" json:"store_path" toml:"store_path"`
	// TasksPath is the YAML task list with recurrence rules.
	TasksPath string `yaml:"tasks_path" json:"tasks_path" toml:"tasks_path"`

	// RemoteURL is the base URL of a blockplan server for client commands.
	RemoteURL string `yaml:"remote_url" json:"remote_url" toml:"remote_url"`
	// RequestTimeout bounds each persistence call, e.g. "15s".
	RequestTimeout string `yaml:"request_timeout" json:"request_timeout" toml:"request_timeout"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to reload the tasks file.
	RefreshCron string `yaml:"refresh" json:"refresh" toml:"refresh"`

	// WeekCacheTTL is how long a rendered /api/week response is reused.
	WeekCacheTTL string `yaml:"week_cache_ttl" json:"week_cache_ttl" toml:"week_cache_ttl"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty" toml:"basic_auth,omitempty"`

	LogLevel string `yaml:"log_level" json:"log_level" toml:"log_level"`
}

const (
	defaultListen         = "127.0.0.1:8080"
	defaultRefresh        = "*/15 * * * *"
	defaultRequestTimeout = 15 * time.Second
	defaultWeekCacheTTL   = 30 * time.Second
	defaultDailyBudget    = 480
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    defaultListen,
		WeekStart: "monday",
		Grid: GridConfig{
			StartHour:           grid.DefaultStartHour,
			EndHour:             grid.DefaultEndHour,
			HourHeight:          grid.DefaultHourHeight,
			GutterWidth:         56,
			SnapMinutes:         grid.DefaultSnap,
			MinDurationMinutes:  30,
			DefaultBlockMinutes: 60,
		},
		DailyBudgetMinutes: defaultDailyBudget,
		StorePath:          "data/events.json",
		TasksPath:          "data/tasks.yaml",
		RemoteURL:          "http://" + defaultListen,
		RequestTimeout:     defaultRequestTimeout.String(),
		RefreshCron:        defaultRefresh,
		WeekCacheTTL:       defaultWeekCacheTTL.String(),
		LogLevel:           "info",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = "monday"
	}

	g := &c.Grid
	if g.StartHour < 0 || g.StartHour > 23 {
		g.StartHour = def.Grid.StartHour
	}
	if g.EndHour <= g.StartHour || g.EndHour > 24 {
		g.StartHour, g.EndHour = def.Grid.StartHour, def.Grid.EndHour
	}
	if g.HourHeight <= 0 {
		g.HourHeight = def.Grid.HourHeight
	}
	if g.GutterWidth <= 0 {
		g.GutterWidth = def.Grid.GutterWidth
	}
	if g.SnapMinutes <= 0 {
		g.SnapMinutes = def.Grid.SnapMinutes
	}
	if g.MinDurationMinutes <= 0 {
		g.MinDurationMinutes = def.Grid.MinDurationMinutes
	}
	if g.DefaultBlockMinutes < g.MinDurationMinutes {
		g.DefaultBlockMinutes = max(def.Grid.DefaultBlockMinutes, g.MinDurationMinutes)
	}

	if c.DailyBudgetMinutes <= 0 {
		c.DailyBudgetMinutes = def.DailyBudgetMinutes
	}
	if c.StorePath == "" {
		c.StorePath = def.StorePath
	}
	if c.TasksPath == "" {
		c.TasksPath = def.TasksPath
	}
	if c.RemoteURL == "" {
		c.RemoteURL = "http://" + c.Listen
	}
	if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if _, err := time.ParseDuration(c.WeekCacheTTL); err != nil {
		c.WeekCacheTTL = def.WeekCacheTTL
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Timeout is RequestTimeout as a duration.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return defaultRequestTimeout
	}
	return d
}

// CacheTTL is WeekCacheTTL as a duration. Zero disables the cache.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.WeekCacheTTL)
	if err != nil || d < 0 {
		return defaultWeekCacheTTL
	}
	return d
}

// FirstWeekday is WeekStart as a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	return grid.ParseWeekday(c.WeekStart)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load loads configuration from the given path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - decode YAML or TOML into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if isTOML(path) {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML or TOML by extension.
//   - Writes atomically via a temp file + rename with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}

	return fsutil.WriteFileAtomic(path, data, 0o600)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
