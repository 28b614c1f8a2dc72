package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr    = ":8080"
	DefaultTopN          = 10
	DefaultFocusCountry  = "Sweden"
	DefaultCacheTTL      = 10 * time.Minute
	DefaultCacheCapacity = 1024
)

type Config struct {
	Data   DataConfig   `yaml:"data"`
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
}

type DataConfig struct {
	EventsPath string `yaml:"events_path" validate:"required"`
	GenderPath string `yaml:"gender_path"`
	// MaxRows caps the number of event rows accepted at load; 0 means no limit.
	MaxRows int     `yaml:"max_rows" validate:"gte=0"`
	Columns Columns `yaml:"columns"`
}

// Columns maps logical fields to header names in the event file.
type Columns struct {
	Participant string `yaml:"participant" validate:"required"`
	Year        string `yaml:"year" validate:"required"`
	Season      string `yaml:"season" validate:"required"`
	Country     string `yaml:"country" validate:"required"`
	Sport       string `yaml:"sport" validate:"required"`
	Medal       string `yaml:"medal" validate:"required"`
	Latitude    string `yaml:"latitude" validate:"required"`
	Longitude   string `yaml:"longitude" validate:"required"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" validate:"required"`
	CORS       *bool  `yaml:"cors"`
}

type EngineConfig struct {
	TopN          int           `yaml:"top_n" validate:"gte=1"`
	// FocusCountry names the country of the single-country views. An
	// explicit empty value disables them.
	FocusCountry  *string       `yaml:"focus_country"`
	CacheTTL      time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	CacheCapacity *int          `yaml:"cache_capacity"`
	Workers       int           `yaml:"workers" validate:"gte=0"`
}

type LogConfig struct {
	Verbose bool `yaml:"verbose"`
}

func DefaultColumns() Columns {
	return Columns{
		Participant: "ID",
		Year:        "Year",
		Season:      "Season",
		Country:     "Country",
		Sport:       "Sport",
		Medal:       "Medal",
		Latitude:    "Latitude",
		Longitude:   "Longitude",
	}
}

// Default returns a config with every optional field filled in.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a YAML config file. An empty path yields Default().
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	def := DefaultColumns()
	cols := &c.Data.Columns
	setDefault(&cols.Participant, def.Participant)
	setDefault(&cols.Year, def.Year)
	setDefault(&cols.Season, def.Season)
	setDefault(&cols.Country, def.Country)
	setDefault(&cols.Sport, def.Sport)
	setDefault(&cols.Medal, def.Medal)
	setDefault(&cols.Latitude, def.Latitude)
	setDefault(&cols.Longitude, def.Longitude)
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.CORS == nil {
		enabled := true
		c.Server.CORS = &enabled
	}
	if c.Engine.TopN == 0 {
		c.Engine.TopN = DefaultTopN
	}
	if c.Engine.FocusCountry == nil {
		focus := DefaultFocusCountry
		c.Engine.FocusCountry = &focus
	}
	if c.Engine.CacheTTL == 0 {
		c.Engine.CacheTTL = DefaultCacheTTL
	}
	if c.Engine.CacheCapacity == nil {
		capacity := DefaultCacheCapacity
		c.Engine.CacheCapacity = &capacity
	}
	if c.Engine.Workers == 0 {
		c.Engine.Workers = runtime.NumCPU()
	}
}

func setDefault(dst *string, val string) {
	if *dst == "" {
		*dst = val
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if *c.Engine.CacheCapacity < 0 {
		return errors.New("invalid config: engine.cache_capacity must not be negative")
	}
	return nil
}

func (c *Config) CORSEnabled() bool { return c.Server.CORS == nil || *c.Server.CORS }

// Focus returns the focus country, or "" when the focus views are disabled.
func (c *Config) Focus() string {
	if c.Engine.FocusCountry == nil {
		return ""
	}
	return *c.Engine.FocusCountry
}
