// Package config loads blendopt's runtime configuration: optimizer
// parameters, logging, storage and the HTTP server.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cwbudde/blendopt/internal/opt"
)

// EnvPrefix prefixes environment overrides, e.g. BLENDOPT_OPTIMIZER_DE_SEED.
const EnvPrefix = "BLENDOPT"

// Config is the complete runtime configuration.
type Config struct {
	Optimizer OptimizerConfig `mapstructure:"optimizer" json:"optimizer" yaml:"optimizer"`
	Logging   LoggingConfig   `mapstructure:"logging" json:"logging" yaml:"logging"`
	Store     StoreConfig     `mapstructure:"store" json:"store" yaml:"store"`
	Server    ServerConfig    `mapstructure:"server" json:"server" yaml:"server"`
}

// OptimizerConfig holds the parameters of every optimizer.
type OptimizerConfig struct {
	DE     opt.DEConfig     `mapstructure:"de" json:"de" yaml:"de"`
	GA     opt.GAConfig     `mapstructure:"ga" json:"ga" yaml:"ga"`
	Mayfly opt.MayflyConfig `mapstructure:"mayfly" json:"mayfly" yaml:"mayfly"`
	// Parallel runs the optimizers of a multi-optimizer mode concurrently.
	Parallel bool `mapstructure:"parallel" json:"parallel" yaml:"parallel"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level      string `mapstructure:"level" json:"level" yaml:"level"`
	Format     string `mapstructure:"format" json:"format" yaml:"format"`
	OutputFile string `mapstructure:"output_file" json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// StoreConfig locates persisted runs.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir" json:"dataDir" yaml:"dataDir"`
}

// ServerConfig configures the HTTP job API.
type ServerConfig struct {
	Addr string `mapstructure:"addr" json:"addr" yaml:"addr"`
	// Persist saves finished jobs to the store.
	Persist bool `mapstructure:"persist" json:"persist" yaml:"persist"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Optimizer: DefaultOptimizer(),
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		Store:     StoreConfig{DataDir: "./data"},
		Server:    ServerConfig{Addr: ":8080", Persist: true},
	}
}

// DefaultOptimizer returns the default optimizer parameters.
func DefaultOptimizer() OptimizerConfig {
	return OptimizerConfig{
		DE:       opt.DefaultDEConfig(),
		GA:       opt.DefaultGAConfig(),
		Mayfly:   opt.DefaultMayflyConfig(),
		Parallel: true,
	}
}

// Load reads the configuration file at path on top of the defaults and
// applies BLENDOPT_* environment overrides. An empty path uses only defaults
// and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	de := d.Optimizer.DE
	v.SetDefault("optimizer.de.popsize", de.PopSize)
	v.SetDefault("optimizer.de.maxiter", de.MaxGenerations)
	v.SetDefault("optimizer.de.mutation", de.Mutation)
	v.SetDefault("optimizer.de.recombination", de.Recombination)
	v.SetDefault("optimizer.de.tol", de.Tol)
	v.SetDefault("optimizer.de.atol", de.Atol)
	v.SetDefault("optimizer.de.seed", de.Seed)
	v.SetDefault("optimizer.de.polish", de.Polish)
	v.SetDefault("optimizer.de.polish_evaluations", de.PolishEvaluations)
	v.SetDefault("optimizer.de.bounds", string(de.Bounds))
	v.SetDefault("optimizer.de.stagnation.enabled", de.Stagnation.Enabled)
	v.SetDefault("optimizer.de.stagnation.patience", de.Stagnation.Patience)
	v.SetDefault("optimizer.de.stagnation.threshold", de.Stagnation.Threshold)

	ga := d.Optimizer.GA
	v.SetDefault("optimizer.ga.population", ga.PopulationSize)
	v.SetDefault("optimizer.ga.generations", ga.Generations)
	v.SetDefault("optimizer.ga.cxpb", ga.CrossoverProb)
	v.SetDefault("optimizer.ga.mutpb", ga.MutationProb)
	v.SetDefault("optimizer.ga.indpb", ga.GeneMutationProb)
	v.SetDefault("optimizer.ga.tournament", ga.TournamentSize)
	v.SetDefault("optimizer.ga.seed", ga.Seed)
	v.SetDefault("optimizer.ga.mutation", string(ga.Mutation))
	v.SetDefault("optimizer.ga.mutation_scale", ga.MutationScale)

	mf := d.Optimizer.Mayfly
	v.SetDefault("optimizer.mayfly.iterations", mf.MaxIterations)
	v.SetDefault("optimizer.mayfly.population", mf.PopSize)
	v.SetDefault("optimizer.mayfly.seed", mf.Seed)

	v.SetDefault("optimizer.parallel", d.Optimizer.Parallel)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_file", d.Logging.OutputFile)

	v.SetDefault("store.data_dir", d.Store.DataDir)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.persist", d.Server.Persist)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := c.Optimizer.Validate(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	return nil
}

// Validate checks every optimizer's parameters.
func (o OptimizerConfig) Validate() error {
	if err := o.DE.Validate(); err != nil {
		return err
	}
	if err := o.GA.Validate(); err != nil {
		return err
	}
	return o.Mayfly.Validate()
}
