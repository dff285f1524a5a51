package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Geometry source kinds.
const (
	SourceTopoJSONURL  = "topojson-url"
	SourceTopoJSONFile = "topojson-file"
	SourceGeoJSONFile  = "geojson-file"
	SourceShapefile    = "shapefile"
)

// Config holds the application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	DB         DBConfig         `yaml:"db"`
	Request    RequestConfig    `yaml:"request"`
	Geometry   GeometryConfig   `yaml:"geometry"`
	Projection ProjectionConfig `yaml:"projection"`
	Style      StyleConfig      `yaml:"style"`
	Visits     VisitsConfig     `yaml:"visits"`
	Export     ExportConfig     `yaml:"export"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string   `yaml:"address"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
	MaxSessions  int      `yaml:"max_sessions"`
	SessionTTL   Duration `yaml:"session_ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server      LogSettings `yaml:"server"`
	Requests    LogSettings `yaml:"requests"`
	EnableTrace bool        `yaml:"enable_trace"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path        string   `yaml:"path"`
	CacheMaxAge Duration `yaml:"cache_max_age"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// GeometryConfig selects where country outlines come from.
type GeometryConfig struct {
	Source  string   `yaml:"source"`
	URL     string   `yaml:"url"`
	Path    string   `yaml:"path"`
	Object  string   `yaml:"object"`
	Exclude []string `yaml:"exclude"`
}

// ProjectionConfig holds the Mercator parameters and the viewport.
type ProjectionConfig struct {
	CenterLon float64 `yaml:"center_lon"`
	CenterLat float64 `yaml:"center_lat"`
	Scale     float64 `yaml:"scale"`
	Rotation  float64 `yaml:"rotation"`
	Width     float64 `yaml:"width"`
	Height    float64 `yaml:"height"`
	Margin    float64 `yaml:"margin"`
}

// StyleConfig holds paint settings.
type StyleConfig struct {
	UnvisitedFill       string   `yaml:"unvisited_fill"`
	HoverFill           string   `yaml:"hover_fill"`
	Stroke              string   `yaml:"stroke"`
	StrokeWidth         float64  `yaml:"stroke_width"`
	SelectedStrokeWidth float64  `yaml:"selected_stroke_width"`
	HoverStrokeWidth    float64  `yaml:"hover_stroke_width"`
	ErrorColor          string   `yaml:"error_color"`
	TooltipOffset       float64  `yaml:"tooltip_offset"`
	PulseScale          float64  `yaml:"pulse_scale"`
	PulseDuration       Duration `yaml:"pulse_duration"`
}

// VisitsConfig holds defaults for marking countries.
type VisitsConfig struct {
	DefaultColor string `yaml:"default_color"`
	SearchLimit  int    `yaml:"search_limit"`
}

// ExportConfig holds image export settings.
type ExportConfig struct {
	Background string  `yaml:"background"`
	Scale      float64 `yaml:"scale"`
	MaxScale   float64 `yaml:"max_scale"`
	Filename   string  `yaml:"filename"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      "localhost:1921",
			ReadTimeout:  Duration(15 * time.Second),
			WriteTimeout: Duration(15 * time.Second),
			IdleTimeout:  Duration(60 * time.Second),
			MaxSessions:  64,
			SessionTTL:   Duration(12 * time.Hour),
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path:        "./data/wandermap.db",
			CacheMaxAge: Duration(30 * Day),
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(60 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Geometry: GeometryConfig{
			Source:  SourceTopoJSONURL,
			URL:     "https://unpkg.com/world-atlas@2/countries-110m.json",
			Object:  "countries",
			Exclude: []string{"010"}, // Antarctica
		},
		Projection: ProjectionConfig{
			CenterLon: 135,
			CenterLat: 35,
			Scale:     250,
			Rotation:  -160,
			Width:     1200,
			Height:    800,
			Margin:    0.9,
		},
		Style: StyleConfig{
			UnvisitedFill:       "#f5f5f5",
			HoverFill:           "#e5e5e5",
			Stroke:              "#000000",
			StrokeWidth:         0.5,
			SelectedStrokeWidth: 1.0,
			HoverStrokeWidth:    1.5,
			ErrorColor:          "#ef4444",
			TooltipOffset:       28,
			PulseScale:          0.95,
			PulseDuration:       Duration(100 * time.Millisecond),
		},
		Visits: VisitsConfig{
			DefaultColor: "#2196F3",
			SearchLimit:  5,
		},
		Export: ExportConfig{
			Background: "#ffffff",
			Scale:      2,
			MaxScale:   4,
			Filename:   "wander-map.png",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// An existing file is merged over the defaults and never written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets the environment (or .env) override a few deployment knobs.
func applyEnv(cfg *Config) {
	if addr := os.Getenv("WANDERMAP_ADDRESS"); addr != "" {
		cfg.Server.Address = addr
	}
	if u := os.Getenv("WANDERMAP_GEOMETRY_URL"); u != "" {
		cfg.Geometry.URL = u
	}
}

// Validate rejects settings the map cannot be drawn with.
func (c *Config) Validate() error {
	switch c.Geometry.Source {
	case SourceTopoJSONURL:
		if c.Geometry.URL == "" {
			return fmt.Errorf("geometry.url is required for source %q", c.Geometry.Source)
		}
	case SourceTopoJSONFile, SourceGeoJSONFile, SourceShapefile:
		if c.Geometry.Path == "" {
			return fmt.Errorf("geometry.path is required for source %q", c.Geometry.Source)
		}
	default:
		return fmt.Errorf("unknown geometry.source %q", c.Geometry.Source)
	}

	p := c.Projection
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid viewport %gx%g", p.Width, p.Height)
	}
	if p.Scale <= 0 {
		return fmt.Errorf("projection.scale must be positive, got %g", p.Scale)
	}
	if p.Margin <= 0 || p.Margin > 1 {
		return fmt.Errorf("projection.margin must be in (0, 1], got %g", p.Margin)
	}
	if c.Export.Scale <= 0 || c.Export.Scale > c.Export.MaxScale {
		return fmt.Errorf("export.scale must be in (0, %g], got %g", c.Export.MaxScale, c.Export.Scale)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Wandermap Configuration
# -----------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	// Option hints, injected next to the matching keys
	reSource := regexp.MustCompile(`(?m)^(\s+)source:`)
	data = reSource.ReplaceAll(data, []byte("${1}# Options: topojson-url, topojson-file, geojson-file, shapefile\n${1}source:"))

	reExclude := regexp.MustCompile(`(?m)^(\s+)exclude:`)
	data = reExclude.ReplaceAll(data, []byte("${1}# ISO 3166-1 numeric codes left off the map and the fit\n${1}exclude:"))

	reLevel := regexp.MustCompile(`(?m)^(\s+)level:`)
	data = reLevel.ReplaceAll(data, []byte("${1}# Options: DEBUG, INFO, WARN, ERROR\n${1}level:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
