package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/pasture/internal/fetch"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "PASTURE_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configNames = []string{"pasture.yaml", "pasture.yml"}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// flagKeys maps CLI flag names onto config keys. Flags not listed use their
// snake_case name at the top level.
var flagKeys = map[string]string{
	"dataset":       "dataset.path",
	"adapter":       "dataset.adapter",
	"table":         "dataset.table",
	"above-max":     "dataset.above_max",
	"query-timeout": "dataset.query_timeout",
	"cache-dir":     "dataset.cache_dir",
	"region":        "site.region",
	"soil":          "site.soil",
	"grass-ba":      "site.grass_ba",
	"land-con":      "site.land_con",
	"stk-rate":      "site.stk_rate",
	"start":         "simulation.start",
	"end":           "simulation.end",
	"interval":      "simulation.interval_months",
	"months":        "simulation.interval_months",
	"addr":          "server.addr",
	"watch":         "server.watch",
}

// envSections lists nested key prefixes, longest first, so that
// PASTURE_DATASET_S3_REGION maps to dataset.s3.region.
var envSections = []string{
	"dataset_connection_",
	"dataset_s3_",
	"dataset_",
	"simulation_",
	"site_",
	"server_",
}

// envKey transforms PASTURE_SITE_GRASS_BA into site.grass_ba.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range envSections {
		if rest, ok := strings.CutPrefix(key, section); ok {
			return strings.ReplaceAll(section, "_", ".") + rest
		}
	}
	return key
}

// configExistsIn returns the config file in dir, if any.
func configExistsIn(dir string) string {
	for _, name := range configNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a pasture config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Empty, absolute, in-memory and s3:// paths are returned unchanged.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) || fetch.IsRemote(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"dataset.adapter":            DefaultAdapter,
		"dataset.table":              DefaultTable,
		"dataset.above_max":          DefaultAboveMax,
		"dataset.query_timeout":      DefaultQueryTimeout,
		"dataset.cache_dir":          DefaultCacheDir,
		"simulation.interval_months": DefaultIntervalMonths,
		"server.addr":                DefaultAddr,
		"verbose":                    false,
		"output":                     DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		cwd = "."
	}
	if cfgFile == "" {
		cfgFile = findConfigUpward(cwd)
	}
	configFileUsed = cfgFile
	configDir := cwd
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			configDir = filepath.Dir(abs)
		}
	}

	// 3. Load environment variables (PASTURE_ prefix)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// Paths given on the command line are relative to the working directory,
	// not to the config file.
	var flagDataset, flagCacheDir string
	if flags != nil {
		if flags.Changed("dataset") {
			if v, _ := flags.GetString("dataset"); v != "" {
				flagDataset = resolvePathRelativeTo(v, cwd)
			}
		}
		if flags.Changed("cache-dir") {
			if v, _ := flags.GetString("cache-dir"); v != "" {
				flagCacheDir = resolvePathRelativeTo(v, cwd)
			}
		}
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			if key, ok := flagKeys[f.Name]; ok {
				return key, posflag.FlagVal(flags, f)
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve relative paths against the config file's directory
	cfg.ConfigDir = configDir
	if flagDataset != "" {
		cfg.Dataset.Path = flagDataset
	} else {
		cfg.Dataset.Path = resolvePathRelativeTo(expandEnvVars(cfg.Dataset.Path), configDir)
	}
	if flagCacheDir != "" {
		cfg.Dataset.CacheDir = flagCacheDir
	} else {
		cfg.Dataset.CacheDir = resolvePathRelativeTo(cfg.Dataset.CacheDir, configDir)
	}

	expandConnectionEnvVars(&cfg.Dataset.Connection)

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandConnectionEnvVars expands environment variables in sensitive connection fields.
func expandConnectionEnvVars(c *ConnectionConfig) {
	c.Password = expandEnvVars(c.Password)
	c.User = expandEnvVars(c.User)
	c.Host = expandEnvVars(c.Host)
	c.Database = expandEnvVars(c.Database)
}
