package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cyclical/internal/atomicfile"
	"cyclical/internal/calendar"
	"cyclical/internal/marker"
)

// FeedConfig describes a read-only ICS subscription overlaid on the grid
// (public holidays, a shared team calendar, ...).
type FeedConfig struct {
	URL  string `yaml:"url" json:"url"`
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// SourceID returns the feed's identifier for logs and cache keys,
// falling back to the name and then the URL.
func (f FeedConfig) SourceID() string {
	if f.ID != "" {
		return f.ID
	}
	if f.Name != "" {
		return f.Name
	}
	return f.URL
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// MarkerConfig controls what a confirmed tap records.
type MarkerConfig struct {
	// Tag is the marker value appended to each day.
	Tag string `yaml:"tag" json:"tag"`
	// Days is how many days after the selected one are marked as well.
	// Zero marks only the selected day. Values outside
	// [0, marker.MaxDayCount] fall back to the default.
	Days *int `yaml:"days" json:"days"`
}

// CaptureConfig is the viewport used for PNG previews.
type CaptureConfig struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
	// Output, if set, is re-captured after every feed refresh and served
	// at /preview.png.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone whose calendar defines day boundaries.
	// Empty means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the first column of the grid, any English weekday name.
	WeekStart string `yaml:"week_start" json:"week_start"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Marker MarkerConfig `yaml:"marker" json:"marker"`

	// MarkersFile, if set, enables the ICS file persister. Otherwise
	// markers only live for the session.
	MarkersFile string `yaml:"markers_file" json:"markers_file"`

	// RefreshCron is the cron schedule for re-fetching feeds.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen    = "127.0.0.1:8080"
	defaultWeekStart = "sunday"
	defaultLogLevel  = "info"
	defaultRefresh   = "0 */6 * * *"
	defaultCacheDir  = "./cache/ics-cache"
	defaultWidth     = 800
	defaultHeight    = 600
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	days := marker.DefaultDayCount
	return &Config{
		Listen:      defaultListen,
		WeekStart:   defaultWeekStart,
		LogLevel:    defaultLogLevel,
		Marker:      MarkerConfig{Tag: marker.DefaultTag, Days: &days},
		RefreshCron: defaultRefresh,
		CacheDir:    defaultCacheDir,
		Feeds:       []FeedConfig{},
		Capture:     CaptureConfig{Width: defaultWidth, Height: defaultHeight},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	// Unknown weekday names fall back to sunday rather than failing startup.
	if _, err := calendar.ParseWeekday(c.WeekStart); err != nil {
		c.WeekStart = defaultWeekStart
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Marker.Tag == "" {
		c.Marker.Tag = marker.DefaultTag
	}
	if c.Marker.Days == nil || *c.Marker.Days < 0 || *c.Marker.Days > marker.MaxDayCount {
		days := marker.DefaultDayCount
		c.Marker.Days = &days
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = defaultWidth
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = defaultHeight
	}
}

// FirstWeekday returns WeekStart as a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	wd, err := calendar.ParseWeekday(c.WeekStart)
	if err != nil {
		return time.Sunday
	}
	return wd
}

// MarkerDays returns the configured propagation window.
func (c *Config) MarkerDays() int {
	if c.Marker.Days == nil {
		return marker.DefaultDayCount
	}
	return *c.Marker.Days
}

// Location resolves Timezone, returning time.Local for an empty name.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is read, unmarshaled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
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
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicfile.Write(path, data, ".cyclical-config-*.tmp")
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
