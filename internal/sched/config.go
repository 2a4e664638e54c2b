package sched

import (
	"fmt"
	"os"
	"strings"

	yaml "github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config mirrors pollsched.yml
type Config struct {
	LogLevel   string `yaml:"log_level"`   // info (by default)
	LogFormat  string `yaml:"log_format"`  // text (by default)
	FixHorizon bool   `yaml:"fix_horizon"` // rerun with the hyperperiod on a horizon mismatch
	Gantt      bool   `yaml:"gantt"`       // true (by default)
	Summary    bool   `yaml:"summary"`     // true (by default)
	CSVPath    string `yaml:"csv_path"`
	DBPath     string `yaml:"db_path"`
}

// If the config file is not found, we use default values
func defaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Gantt:     true,
		Summary:   true,
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only.
// POLLSCHED_* variables (from the environment or a .env file in the
// working directory) override the file. A missing file is not an error;
// a malformed one is reported and leaves the defaults in place.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	var fileErr error
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				cfg = defaultConfig()
				fileErr = fmt.Errorf("config %s: %w", path, err)
			}
		}
	}

	dotenv, _ := godotenv.Read()
	cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})

	// sanity clamps
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		cfg.LogLevel = "info"
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		cfg.LogFormat = "text"
	}

	return cfg, fileErr
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}

	str("POLLSCHED_LOG_LEVEL", &c.LogLevel)
	str("POLLSCHED_LOG_FORMAT", &c.LogFormat)
	str("POLLSCHED_CSV_PATH", &c.CSVPath)
	str("POLLSCHED_DB_PATH", &c.DBPath)
	boolean("POLLSCHED_FIX_HORIZON", &c.FixHorizon)
	boolean("POLLSCHED_GANTT", &c.Gantt)
	boolean("POLLSCHED_SUMMARY", &c.Summary)
}
