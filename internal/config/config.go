// Package config loads service configuration from the environment and
// optimization job parameters from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Simulator struct {
		// Binary is the external solver executable; empty selects the
		// built-in echo simulator (development only).
		Binary    string `env:"SIM_BINARY"`
		WorkDir   string `env:"SIM_WORK_DIR" envDefault:"data/sim"`
		Processes int    `env:"SIM_PROCESSES" envDefault:"1"`
		CheckTime int    `env:"SIM_CHECK_TIME" envDefault:"20"`
		CheckMax  int    `env:"SIM_CHECK_MAX" envDefault:"900"`
		CheckMin  int    `env:"SIM_CHECK_MIN" envDefault:"0"`
	}
	Optimization struct {
		ChannelWidth float64 `env:"OPT_CHANNEL_WIDTH" envDefault:"0.025"`
		NumWindows   int     `env:"OPT_NUM_WINDOWS" envDefault:"120"`
		ResultsDir   string  `env:"OPT_RESULTS_DIR" envDefault:"data/results"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Development runs default to debug logging.
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}

// JobParams are per-job optimization settings, loadable from a YAML file.
// Zero values fall back to the strategy defaults.
type JobParams struct {
	Type           string    `yaml:"type"`        // "recoil" (default) or "fluence"
	RecoilType     string    `yaml:"recoil_type"` // "box" or "two-peak"
	SolSize        int       `yaml:"sol_size"`
	UpperLimits    []float64 `yaml:"upper_limits"`
	LowerLimits    []float64 `yaml:"lower_limits"`
	ChannelWidth   float64   `yaml:"channel_width"`
	Processes      int       `yaml:"number_of_processes"`
	NumWindows     int       `yaml:"num_windows"`
	SkipSimulation bool      `yaml:"skip_simulation"`
	OptimizeByArea bool      `yaml:"optimize_by_area"`
	Verbose        bool      `yaml:"verbose"`
}

// LoadJobParams reads job parameters from a YAML file.
func LoadJobParams(path string) (*JobParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job parameters: %w", err)
	}
	params := &JobParams{}
	if err := yaml.Unmarshal(data, params); err != nil {
		return nil, fmt.Errorf("parsing job parameters: %w", err)
	}
	return params, nil
}
