// Package config provides unified configuration loading for vampireman.
// It supports loading from YAML and HCL files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/vampireman/internal/constants"
	"github.com/nvandessel/vampireman/internal/models"
	"github.com/nvandessel/vampireman/internal/noise"
)

// Config is the complete description of a dataset run.
type Config struct {
	// General holds the flat dataset-wide settings.
	General GeneralConfig `json:"general" yaml:"general"`

	// Hydrogeological parameters in declaration order. Defaults come first;
	// a declared parameter with a default's name replaces it in place.
	Hydrogeological []models.Parameter `json:"-" yaml:"-"`

	// HeatPumps holds heat pumps and heat-pump groups in declaration order.
	HeatPumps []models.Parameter `json:"-" yaml:"-"`

	// sources maps a parameter name to the file its value was read from.
	sources map[string]string
}

// GeneralConfig configures grid, dataset size, randomness and the
// downstream stages.
type GeneralConfig struct {
	NumberCells       [3]int      `json:"number_cells" yaml:"number_cells,flow"`
	CellResolution    models.Vec3 `json:"cell_resolution" yaml:"cell_resolution,flow"`
	NumberDatapoints  int         `json:"number_datapoints" yaml:"number_datapoints"`
	ShuffleDatapoints bool        `json:"shuffle_datapoints" yaml:"shuffle_datapoints"`

	// RandomSeed is nil for a nondeterministic run.
	RandomSeed *int64 `json:"random_seed,omitempty" yaml:"random_seed,omitempty"`

	OutputDirectory string `json:"output_directory" yaml:"output_directory"`

	// TimeToSimulate is in years.
	TimeToSimulate float64 `json:"time_to_simulate" yaml:"time_to_simulate"`

	// NoiseBasis is "perlin" (default) or "simplex".
	NoiseBasis   string `json:"noise_basis" yaml:"noise_basis"`
	NoiseOctaves int    `json:"noise_octaves" yaml:"noise_octaves"`

	// Mpirun runs the simulator through mpirun with MpirunProcs processes.
	Mpirun               bool `json:"mpirun" yaml:"mpirun"`
	MpirunProcs          int  `json:"mpirun_procs" yaml:"mpirun_procs"`
	MuteSimulationOutput bool `json:"mute_simulation_output" yaml:"mute_simulation_output"`

	// LogLevel is "info" (default), "debug" or "trace".
	// "debug" enables the variation trace at <output>/variation.jsonl.
	LogLevel string `json:"log_level" yaml:"log_level"`

	// LogFormat is "text" (default) or "json".
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			NumberCells: [3]int{constants.DefaultNumberCellsX, constants.DefaultNumberCellsY, constants.DefaultNumberCellsZ},
			CellResolution: models.Vec3{
				constants.DefaultCellResolution,
				constants.DefaultCellResolution,
				constants.DefaultCellResolution,
			},
			NumberDatapoints:  constants.DefaultNumberDatapoints,
			ShuffleDatapoints: true,
			OutputDirectory:   constants.DefaultOutputDirectory,
			TimeToSimulate:    constants.DefaultTimeToSimulate,
			NoiseBasis:        noise.BasisPerlin,
			NoiseOctaves:      constants.DefaultNoiseOctaves,
			MpirunProcs:       constants.DefaultMpirunProcs,
			LogLevel:          "info",
			LogFormat:         "text",
		},
		Hydrogeological: []models.Parameter{
			{Name: "permeability", Vary: models.VaryFixed, Distribution: models.DistributionLinear, Value: models.Scalar(constants.DefaultPermeability)},
			{Name: "pressure_gradient", Vary: models.VaryFixed, Distribution: models.DistributionLinear, Value: models.Scalar(constants.DefaultPressureGradient)},
			{Name: "temperature", Vary: models.VaryFixed, Distribution: models.DistributionLinear, Value: models.Scalar(constants.DefaultTemperature)},
		},
		sources: make(map[string]string),
	}
}

// Load loads configuration from path (if non-empty) and environment variables.
// Order: defaults -> config file -> environment variables
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a YAML (.yaml, .yml) or HCL (.hcl) file.
// Relative value-file paths are resolved against the file's directory.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var raw *rawConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = parseYAML(data)
	case ".hcl":
		raw, err = parseHCL(data, path)
	default:
		return nil, fmt.Errorf("unsupported config format %q (valid: .yaml, .yml, .hcl)", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config := Default()
	if err := config.apply(raw, filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("decoding config file: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	g := c.General
	for i, n := range g.NumberCells {
		if n <= 0 {
			return fmt.Errorf("number_cells[%d] must be positive, got %d", i, n)
		}
	}
	for i, r := range g.CellResolution {
		if r <= 0 {
			return fmt.Errorf("cell_resolution[%d] must be positive, got %g", i, r)
		}
	}
	if g.NumberDatapoints < 1 {
		return fmt.Errorf("number_datapoints must be >= 1, got %d", g.NumberDatapoints)
	}
	if g.TimeToSimulate <= 0 {
		return fmt.Errorf("time_to_simulate must be positive, got %g", g.TimeToSimulate)
	}
	if _, err := noise.NewBasis(g.NoiseBasis, g.NoiseOctaves); err != nil {
		return err
	}
	if g.MpirunProcs < 1 {
		return fmt.Errorf("mpirun_procs must be >= 1, got %d", g.MpirunProcs)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if g.LogLevel != "" && !validLevels[g.LogLevel] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", g.LogLevel)
	}
	validFormats := map[string]bool{"": true, "text": true, "json": true}
	if !validFormats[g.LogFormat] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", g.LogFormat)
	}

	return c.validateParameters()
}

// Dataset builds a fresh dataset from the configuration.
func (c *Config) Dataset() *models.Dataset {
	return models.NewDataset(c.General.toModel(), c.Hydrogeological, c.HeatPumps)
}

// Source returns the file a parameter's value was loaded from, if any.
func (c *Config) Source(name string) (string, bool) {
	s, ok := c.sources[name]
	return s, ok
}

func (g GeneralConfig) toModel() models.General {
	return models.General{
		NumberCells:       g.NumberCells,
		CellResolution:    g.CellResolution,
		NumberDatapoints:  g.NumberDatapoints,
		ShuffleDatapoints: g.ShuffleDatapoints,
		Seed:              g.RandomSeed,
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("VAMPIREMAN_LOG_LEVEL"); v != "" {
		config.General.LogLevel = v
	}

	if v := os.Getenv("VAMPIREMAN_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.General.RandomSeed = &n
		}
	}

	if v := os.Getenv("VAMPIREMAN_OUTPUT_DIR"); v != "" {
		config.General.OutputDirectory = v
	}

	if v := os.Getenv("VAMPIREMAN_DATAPOINTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.General.NumberDatapoints = n
		}
	}

	if v := os.Getenv("VAMPIREMAN_NOISE_BASIS"); v != "" {
		config.General.NoiseBasis = v
	}
}
