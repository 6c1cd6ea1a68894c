// Package config defines the immutable per-run parameters shared by every
// node of the tree, and loads them through viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Soamid/evogil-sub000/internal/geometry"
)

const EnvPrefix = "HMS"

// Config is the complete run configuration. After Derive it must be treated
// as read-only; nodes receive a value copy.
type Config struct {
	RunID          string        `mapstructure:"run_id"`
	Problem        string        `mapstructure:"problem"`
	Dimensions     int           `mapstructure:"dimensions"`
	Seed           int64         `mapstructure:"seed"`
	Metaepochs     int           `mapstructure:"metaepochs"`
	CostBudget     float64       `mapstructure:"cost_budget"`
	MaxLevel       int           `mapstructure:"max_level"`
	MaxSproutsNo   int           `mapstructure:"max_sprouts_no"`
	Sproutiveness  int           `mapstructure:"sproutiveness"`
	DelegatesNo    int           `mapstructure:"delegates_no"`
	Workers        int           `mapstructure:"workers"`
	ReferencePoint []float64     `mapstructure:"reference_point"`
	Bounds         []BoundConfig `mapstructure:"bounds"`
	Levels         []LevelConfig `mapstructure:"levels"`
	Store          StoreConfig   `mapstructure:"store"`

	// MinDists are the per-level redundancy thresholds, derived from the
	// decision-space diagonal and LevelConfig.MinDist.
	MinDists []float64 `mapstructure:"-"`
}

type BoundConfig struct {
	Lower float64 `mapstructure:"lower"`
	Upper float64 `mapstructure:"upper"`
}

// LevelConfig holds the parameters of one tree level. MinDist is a
// multiplier of the decision-space diagonal.
type LevelConfig struct {
	PopulationSize   int     `mapstructure:"population_size"`
	MetaepochLen     int     `mapstructure:"metaepoch_len"`
	CostModifier     float64 `mapstructure:"cost_modifier"`
	MinProgressRatio float64 `mapstructure:"min_progress_ratio"`
	MinDist          float64 `mapstructure:"min_dist"`
	MutationEta      float64 `mapstructure:"mutation_eta"`
	MutationRate     float64 `mapstructure:"mutation_rate"`
	CrossoverEta     float64 `mapstructure:"crossover_eta"`
	CrossoverRate    float64 `mapstructure:"crossover_rate"`
}

type StoreConfig struct {
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
}

func Default() Config {
	return Config{
		Problem:       "zdt1",
		Seed:          1,
		Metaepochs:    20,
		MaxLevel:      2,
		MaxSproutsNo:  8,
		Sproutiveness: 2,
		DelegatesNo:   4,
		Workers:       1,
		Levels: []LevelConfig{
			{PopulationSize: 48, MetaepochLen: 4, CostModifier: 1, MinProgressRatio: 0.02, MinDist: 0.0, MutationEta: 10, CrossoverEta: 15, CrossoverRate: 0.9},
			{PopulationSize: 16, MetaepochLen: 4, CostModifier: 1, MinProgressRatio: 0.05, MinDist: 0.1, MutationEta: 15, CrossoverEta: 20, CrossoverRate: 0.9},
			{PopulationSize: 8, MetaepochLen: 4, CostModifier: 1, MinProgressRatio: 0.05, MinDist: 0.05, MutationEta: 20, CrossoverEta: 25, CrossoverRate: 0.9},
		},
		Store: StoreConfig{Kind: "memory", Path: "hms.db"},
	}
}

// SetDefaults registers Default() on v so that partially specified files
// and environment variables fall back to it.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("problem", d.Problem)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("metaepochs", d.Metaepochs)
	v.SetDefault("max_level", d.MaxLevel)
	v.SetDefault("max_sprouts_no", d.MaxSproutsNo)
	v.SetDefault("sproutiveness", d.Sproutiveness)
	v.SetDefault("delegates_no", d.DelegatesNo)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("store.kind", d.Store.Kind)
	v.SetDefault("store.path", d.Store.Path)
}

// Load reads path (TOML, YAML or JSON, by extension) on top of the defaults.
// An empty path loads defaults and HMS_* environment overrides only.
func Load(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
	}

	cfg := Default()
	cfg.Levels = nil
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if len(cfg.Levels) == 0 {
		cfg.Levels = Default().Levels
	}
	return cfg, nil
}

// GeometryBounds converts the configured bounds for the geometry helpers.
func (c Config) GeometryBounds() []geometry.Bound {
	out := make([]geometry.Bound, len(c.Bounds))
	for i, b := range c.Bounds {
		out[i] = geometry.Bound{Lower: b.Lower, Upper: b.Upper}
	}
	return out
}

// LevelCount is the number of levels including the root.
func (c Config) LevelCount() int {
	return c.MaxLevel + 1
}

func (c Config) Level(level int) LevelConfig {
	return c.Levels[level]
}

// MutationRate falls back to one expected mutated coordinate per individual.
func (c Config) MutationRate(level int) float64 {
	rate := c.Levels[level].MutationRate
	if rate <= 0 && len(c.Bounds) > 0 {
		rate = 1.0 / float64(len(c.Bounds))
	}
	return rate
}

// Derive fills bounds and reference point from the problem when they are not
// configured, and computes MinDists.
func (c Config) Derive(bounds []geometry.Bound, reference []float64) Config {
	if len(c.Bounds) == 0 {
		c.Bounds = make([]BoundConfig, len(bounds))
		for i, b := range bounds {
			c.Bounds[i] = BoundConfig{Lower: b.Lower, Upper: b.Upper}
		}
	}
	if len(c.ReferencePoint) == 0 {
		c.ReferencePoint = append([]float64(nil), reference...)
	}
	c.Levels = append([]LevelConfig(nil), c.Levels...)
	diagonal := geometry.Diagonal(c.GeometryBounds())
	c.MinDists = make([]float64, len(c.Levels))
	for i, level := range c.Levels {
		c.MinDists[i] = diagonal * level.MinDist
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.DelegatesNo <= 0 {
		c.DelegatesNo = 1
	}
	return c
}

func (c Config) Validate() error {
	var errs []error
	if c.MaxLevel < 0 {
		errs = append(errs, fmt.Errorf("max_level must be >= 0, got %d", c.MaxLevel))
	}
	if len(c.Levels) != c.MaxLevel+1 {
		errs = append(errs, fmt.Errorf("levels: expected %d entries (max_level+1), got %d", c.MaxLevel+1, len(c.Levels)))
	}
	if c.MaxSproutsNo < 0 {
		errs = append(errs, fmt.Errorf("max_sprouts_no must be >= 0, got %d", c.MaxSproutsNo))
	}
	if c.Sproutiveness < 0 {
		errs = append(errs, fmt.Errorf("sproutiveness must be >= 0, got %d", c.Sproutiveness))
	}
	if len(c.Bounds) == 0 {
		errs = append(errs, errors.New("bounds are required"))
	}
	for i, b := range c.Bounds {
		if !(b.Lower < b.Upper) {
			errs = append(errs, fmt.Errorf("bounds[%d]: lower %.4g must be < upper %.4g", i, b.Lower, b.Upper))
		}
	}
	if len(c.ReferencePoint) == 0 {
		errs = append(errs, errors.New("reference_point is required"))
	}
	for i, level := range c.Levels {
		if level.PopulationSize < 2 {
			errs = append(errs, fmt.Errorf("levels[%d].population_size must be >= 2, got %d", i, level.PopulationSize))
		}
		if level.MetaepochLen < 1 {
			errs = append(errs, fmt.Errorf("levels[%d].metaepoch_len must be >= 1, got %d", i, level.MetaepochLen))
		}
		if level.CostModifier < 0 {
			errs = append(errs, fmt.Errorf("levels[%d].cost_modifier must be >= 0", i))
		}
		if level.MinProgressRatio < 0 {
			errs = append(errs, fmt.Errorf("levels[%d].min_progress_ratio must be >= 0", i))
		}
		if level.MinDist < 0 {
			errs = append(errs, fmt.Errorf("levels[%d].min_dist must be >= 0", i))
		}
		if level.MutationEta < 0 || level.CrossoverEta < 0 {
			errs = append(errs, fmt.Errorf("levels[%d]: distribution indices must be >= 0", i))
		}
		if level.MutationRate < 0 || level.MutationRate > 1 || level.CrossoverRate < 0 || level.CrossoverRate > 1 {
			errs = append(errs, fmt.Errorf("levels[%d]: rates must be in [0, 1]", i))
		}
	}
	return errors.Join(errs...)
}
