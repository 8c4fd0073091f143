package cmd

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the training setup. Flags override file values; zero values
// fall back to the defaults below.
type Config struct {
	Variant  string `yaml:"variant"`
	MaxDepth int    `yaml:"maxDepth"`
	Seed     int64  `yaml:"seed"`
	Sweeps   int    `yaml:"sweeps"`

	InitialDiscount      float64 `yaml:"initialDiscount"`
	InitialConcentration float64 `yaml:"initialConcentration"`
	GammaA               float64 `yaml:"gammaA"`
	GammaB               float64 `yaml:"gammaB"`
	BetaA                float64 `yaml:"betaA"`
	BetaB                float64 `yaml:"betaB"`

	ResampleHyperparameters bool `yaml:"resampleHyperparameters"`
}

// DefaultConfig mirrors the hyperparameter defaults of the training CLI.
func DefaultConfig() Config {
	return Config{
		Variant:                 "full",
		MaxDepth:                8,
		Seed:                    1,
		Sweeps:                  10,
		InitialDiscount:         0.5,
		InitialConcentration:    1.0,
		GammaA:                  1.0,
		GammaB:                  1.0,
		BetaA:                   1.0,
		BetaB:                   1.0,
		ResampleHyperparameters: true,
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
