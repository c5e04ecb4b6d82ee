package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/pasture/pkg/adapters/sqlite"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "pasture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dataset", "", "")
	flags.String("adapter", "", "")
	flags.String("above-max", "", "")
	flags.Int("region", 0, "")
	flags.Float64("stk-rate", 0, "")
	flags.String("start", "", "")
	flags.Int("interval", 0, "")
	flags.Bool("verbose", false, "")
	flags.String("output", "", "")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "dataset:\n  path: grasp.db\n")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultAdapter, cfg.Dataset.Adapter)
	assert.Equal(t, DefaultTable, cfg.Dataset.Table)
	assert.Equal(t, DefaultAboveMax, cfg.Dataset.AboveMax)
	assert.Equal(t, 30*time.Second, cfg.Dataset.QueryTimeout)
	assert.Equal(t, DefaultIntervalMonths, cfg.Simulation.IntervalMonths)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.False(t, cfg.Verbose)

	assert.Equal(t, cfgPath, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_FileValues(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
dataset:
  path: data/grasp.db
  table: Inputs
  above_max: clamp
  query_timeout: 5s
simulation:
  start: "2010-01-01"
  end: "2012-01-01"
  interval_months: 6
site:
  region: 1
  soil: 2
  grass_ba: 3
  land_con: 4
  stk_rate: 12.5
server:
  addr: 127.0.0.1:9000
  watch: true
`)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data", "grasp.db"), cfg.Dataset.Path, "relative path resolves against the config file")
	assert.Equal(t, dir, cfg.ConfigDir)
	assert.Equal(t, "Inputs", cfg.Dataset.Table)
	assert.Equal(t, "clamp", cfg.Dataset.AboveMax)
	assert.Equal(t, 5*time.Second, cfg.Dataset.QueryTimeout)
	assert.Equal(t, 6, cfg.Simulation.IntervalMonths)
	assert.Equal(t, 12.5, cfg.Site.StkRate)
	assert.Equal(t, 3, cfg.Site.Key().GrassBA)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.True(t, cfg.Server.Watch)

	start, err := cfg.Simulation.StartDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestLoadConfig_PathsLeftAlone(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"s3", "s3://grasp/native.db"},
		{"memory", ":memory:"},
		{"absolute", "/srv/grasp/native.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			cfgPath := writeConfig(t, t.TempDir(), "dataset:\n  path: \""+tt.path+"\"\n")

			cfg, err := LoadConfig(cfgPath, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.path, cfg.Dataset.Path)
		})
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, t.TempDir(), "dataset:\n  table: FromFile\nsite:\n  grass_ba: 1\n")

	t.Setenv("PASTURE_DATASET_TABLE", "FromEnv")
	t.Setenv("PASTURE_SITE_GRASS_BA", "7")
	t.Setenv("PASTURE_DATASET_S3_REGION", "ap-southeast-2")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "FromEnv", cfg.Dataset.Table)
	assert.Equal(t, 7, cfg.Site.GrassBA)
	assert.Equal(t, "ap-southeast-2", cfg.Dataset.S3.Region)
}

func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, t.TempDir(), `
dataset:
  path: from_file.db
  above_max: error
site:
  region: 1
`)
	t.Setenv("PASTURE_DATASET_PATH", "/env/from_env.db")
	t.Setenv("PASTURE_SITE_REGION", "2")

	flags := testFlags()
	require.NoError(t, flags.Set("dataset", "/flag/from_flag.db"))
	require.NoError(t, flags.Set("region", "3"))
	require.NoError(t, flags.Set("above-max", "clamp"))
	require.NoError(t, flags.Set("interval", "3"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	assert.Equal(t, "/flag/from_flag.db", cfg.Dataset.Path, "flag should override env and file")
	assert.Equal(t, 3, cfg.Site.Region)
	assert.Equal(t, "clamp", cfg.Dataset.AboveMax)
	assert.Equal(t, 3, cfg.Simulation.IntervalMonths)
}

func TestLoadConfig_UnchangedFlagsIgnored(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, t.TempDir(), "site:\n  region: 5\noutput: json\n")

	cfg, err := LoadConfig(cfgPath, testFlags())
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Site.Region, "unset flag defaults must not clobber file values")
	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestLoadConfig_RelativeFlagPath(t *testing.T) {
	ResetConfig()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	cfgPath := writeConfig(t, t.TempDir(), "")

	flags := testFlags()
	require.NoError(t, flags.Set("dataset", "local.db"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "local.db"), cfg.Dataset.Path, "flag paths are relative to the working directory")
}

func TestLoadConfig_SearchesUpward(t *testing.T) {
	ResetConfig()
	root := t.TempDir()
	writeConfig(t, root, "dataset:\n  path: grasp.db\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "pasture.yaml"), GetConfigFileUsed())
	assert.Equal(t, filepath.Join(root, "grasp.db"), cfg.Dataset.Path)
}

func TestLoadConfig_BadFile(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, t.TempDir(), "dataset: [unterminated\n")

	_, err := LoadConfig(cfgPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadConfig_ConnectionEnvVars(t *testing.T) {
	ResetConfig()
	t.Setenv("TEST_GRASP_USER", "grazier")
	t.Setenv("TEST_GRASP_PASSWORD", "secret123")
	cfgPath := writeConfig(t, t.TempDir(), `
dataset:
  adapter: postgres
  connection:
    host: db.internal
    user: ${TEST_GRASP_USER}
    password: ${TEST_GRASP_PASSWORD}
`)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	ac := cfg.Dataset.AdapterConfig()
	assert.Equal(t, "postgres", ac.Type)
	assert.Equal(t, "db.internal", ac.Host)
	assert.Equal(t, "grazier", ac.Username)
	assert.Equal(t, "secret123", ac.Password)
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PASTURE_VERBOSE", "verbose"},
		{"PASTURE_OUTPUT", "output"},
		{"PASTURE_DATASET_PATH", "dataset.path"},
		{"PASTURE_DATASET_ABOVE_MAX", "dataset.above_max"},
		{"PASTURE_DATASET_CONNECTION_HOST", "dataset.connection.host"},
		{"PASTURE_DATASET_S3_PATH_STYLE", "dataset.s3.path_style"},
		{"PASTURE_SIMULATION_INTERVAL_MONTHS", "simulation.interval_months"},
		{"PASTURE_SITE_LAND_CON", "site.land_con"},
		{"PASTURE_SERVER_ADDR", "server.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, envKey(tt.in))
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single variable", "${TEST_VAR_ONE}", "value_one"},
		{"variable in path", "/data/${TEST_VAR_ONE}/grasp.db", "/data/value_one/grasp.db"},
		{"unset variable stays as-is", "${UNSET_VARIABLE}", "${UNSET_VARIABLE}"},
		{"no variables", "plain string", "plain string"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func validConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Adapter:      "sqlite",
			AboveMax:     "error",
			QueryTimeout: time.Second,
		},
		OutputFormat: "auto",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown adapter", func(c *Config) { c.Dataset.Adapter = "mysql" }, "unknown adapter type"},
		{"bad policy", func(c *Config) { c.Dataset.AboveMax = "wrap" }, "dataset.above_max"},
		{"bad output", func(c *Config) { c.OutputFormat = "xml" }, "unknown format"},
		{"zero timeout", func(c *Config) { c.Dataset.QueryTimeout = 0 }, "dataset.query_timeout"},
		{"negative rate", func(c *Config) { c.Site.StkRate = -1 }, "site.stk_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_Validate_ListsAvailableAdapters(t *testing.T) {
	cfg := validConfig()
	cfg.Dataset.Adapter = "oracle"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
	assert.Contains(t, err.Error(), "pasture.yaml")
}

func TestConfig_ValidateSimulation(t *testing.T) {
	tests := []struct {
		name      string
		sim       SimulationConfig
		errSubstr string
	}{
		{"valid", SimulationConfig{Start: "2010-01-01", End: "2011-01-01", IntervalMonths: 12}, ""},
		{"end before start", SimulationConfig{Start: "2011-01-01", End: "2010-01-01", IntervalMonths: 12}, "end date must be after the start date"},
		{"same day", SimulationConfig{Start: "2010-01-01", End: "2010-01-01", IntervalMonths: 1}, "simulation.end"},
		{"missing start", SimulationConfig{End: "2010-01-01", IntervalMonths: 1}, "simulation.start is not set"},
		{"zero interval", SimulationConfig{Start: "2010-01-01", End: "2011-01-01"}, "simulation.interval_months"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Simulation = tt.sim
			err := cfg.ValidateSimulation()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2010-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.March, d.Month())

	d, err = ParseDate("2010-03-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2010, d.Year())

	_, err = ParseDate("01/03/2010")
	assert.Error(t, err)

	_, err = SimulationConfig{}.EndDate()
	assert.ErrorContains(t, err, "simulation.end is not set")
}
