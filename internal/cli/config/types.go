// Package config provides configuration management for the pasture CLI.
//
// Configuration is layered with koanf: built-in defaults, then pasture.yaml,
// then PASTURE_ environment variables, then explicitly set flags.
package config

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/pasture/pkg/core"
)

// Config holds all CLI configuration options.
type Config struct {
	Dataset      DatasetConfig    `koanf:"dataset"`
	Simulation   SimulationConfig `koanf:"simulation"`
	Site         SiteConfig       `koanf:"site"`
	Server       ServerConfig     `koanf:"server"`
	Verbose      bool             `koanf:"verbose"`
	OutputFormat string           `koanf:"output"`

	// ConfigDir is the directory relative dataset paths resolve against.
	ConfigDir string `koanf:"-"`
}

// DatasetConfig describes where the GRASP data lives and how to read it.
type DatasetConfig struct {
	Path         string           `koanf:"path"`
	Adapter      string           `koanf:"adapter"`
	Table        string           `koanf:"table"`
	AboveMax     string           `koanf:"above_max"`
	QueryTimeout time.Duration    `koanf:"query_timeout"`
	CacheDir     string           `koanf:"cache_dir"`
	Connection   ConnectionConfig `koanf:"connection"`
	Params       map[string]any   `koanf:"params"`
	S3           S3Config         `koanf:"s3"`
}

// ConnectionConfig holds server settings for network adapters.
type ConnectionConfig struct {
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Schema   string            `koanf:"schema"`
	Options  map[string]string `koanf:"options"`
}

// S3Config configures access to s3:// dataset paths.
type S3Config struct {
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	PathStyle bool   `koanf:"path_style"`
}

// SimulationConfig is the simulated period. Dates are YYYY-MM-DD.
type SimulationConfig struct {
	Start          string `koanf:"start"`
	End            string `koanf:"end"`
	IntervalMonths int    `koanf:"interval_months"`
}

// SiteConfig is the default site and stocking rate for growth lookups.
type SiteConfig struct {
	Region  int     `koanf:"region"`
	Soil    int     `koanf:"soil"`
	GrassBA int     `koanf:"grass_ba"`
	LandCon int     `koanf:"land_con"`
	StkRate float64 `koanf:"stk_rate"`
}

// ServerConfig configures pasture serve.
type ServerConfig struct {
	Addr  string `koanf:"addr"`
	Watch bool   `koanf:"watch"`
}

// Default configuration values.
const (
	DefaultAdapter        = "sqlite"
	DefaultTable          = "Native_Inputs"
	DefaultAboveMax       = "error"
	DefaultQueryTimeout   = "30s"
	DefaultCacheDir       = ".pasture/cache"
	DefaultIntervalMonths = 12
	DefaultAddr           = ":8088"
	DefaultOutput         = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Key returns the site as a lookup key.
func (s SiteConfig) Key() core.SiteKey {
	return core.SiteKey{Region: s.Region, Soil: s.Soil, GrassBA: s.GrassBA, LandCon: s.LandCon}
}

// StartDate parses simulation.start.
func (s SimulationConfig) StartDate() (time.Time, error) {
	return parseDate("simulation.start", s.Start)
}

// EndDate parses simulation.end.
func (s SimulationConfig) EndDate() (time.Time, error) {
	return parseDate("simulation.end", s.End)
}

// ParseDate parses a YYYY-MM-DD date, accepting RFC 3339 timestamps too.
func ParseDate(s string) (time.Time, error) {
	return parseDate("date", s)
}

func parseDate(key, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%s is not set", key)
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %q is not a YYYY-MM-DD date", key, s)
	}
	return t, nil
}

// AdapterConfig builds the store connection settings. Path is left for the
// dataset to fill in.
func (d DatasetConfig) AdapterConfig() core.AdapterConfig {
	return core.AdapterConfig{
		Type:     d.Adapter,
		Host:     d.Connection.Host,
		Port:     d.Connection.Port,
		Database: d.Connection.Database,
		Username: d.Connection.User,
		Password: d.Connection.Password,
		Schema:   d.Connection.Schema,
		Options:  d.Connection.Options,
		Params:   d.Params,
	}
}
