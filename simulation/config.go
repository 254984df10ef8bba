package simulation

import (
	"errors"
	"fmt"
	"math"
	"time"

	. "vacuum/grid_world"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConfigKind is the only 'kind' accepted in the config envelope.
const ConfigKind = "vacuum"

// ReplanPolicy selects when the agent drops its queued route.
type ReplanPolicy string

const (
	// ReplanEveryCell drops the route after every arrival, so the nearest dirt is
	// re-evaluated at every cell (nearest-dirt-greedy, re-evaluated every cell).
	ReplanEveryCell ReplanPolicy = "every_cell"
	// ReplanOnClean drops the route only when an arrival cleaned dirt.
	ReplanOnClean ReplanPolicy = "on_clean"
)

// OuterConfig is the envelope of the config file: a kind and its definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// Config holds the simulation parameters. Keys are snake_case because viper
// lower-cases everything it reads.
type Config struct {
	// Rows and Cols size the room when no Layout is given.
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`
	// CellSize is the width of a cell in world units.
	CellSize float64 `yaml:"cell_size"`
	// Speed is the agent's speed in world units per second.
	Speed float64 `yaml:"speed"`
	// TickRate is the target number of ticks per second.
	TickRate int `yaml:"tick_rate"`
	// DirtProbability is the per-cell chance used when seeding random dirt.
	DirtProbability float64      `yaml:"dirt_probability"`
	ReplanPolicy    ReplanPolicy `yaml:"replan_policy"`
	// Home is the agent's starting cell; nil means the center of the room.
	Home *Cell `yaml:"home"`
	// Layout optionally describes the initial room, one string per row.
	Layout []string `yaml:"layout"`
	// Seed for random dirt; zero seeds from the clock.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig returns the parameters of the classic 18x24 room: 30 unit cells
// crossed at 150 units per second, i.e. 5 cells per second, at 60 ticks per second.
func DefaultConfig() *Config {
	return &Config{
		Rows:            DefaultRows,
		Cols:            DefaultCols,
		CellSize:        30,
		Speed:           150,
		TickRate:        60,
		DirtProbability: 0.06,
		ReplanPolicy:    ReplanEveryCell,
	}
}

// MaxTickRate bounds tick_rate so the tick period stays a positive duration.
const MaxTickRate = 1000

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks the parameters that the engine cannot work around.
func (cfg *Config) Validate() error {
	switch {
	case len(cfg.Layout) == 0 && (cfg.Rows <= 0 || cfg.Cols <= 0):
		return fmt.Errorf("%w: rows and cols must be positive", ErrInvalidConfig)
	case cfg.CellSize < 1 || cfg.CellSize != math.Trunc(cfg.CellSize):
		return fmt.Errorf("%w: cell_size must be a positive whole number", ErrInvalidConfig)
	case cfg.Speed <= 0:
		return fmt.Errorf("%w: speed must be positive", ErrInvalidConfig)
	case cfg.TickRate <= 0 || cfg.TickRate > MaxTickRate:
		return fmt.Errorf("%w: tick_rate must be within [1, %d]", ErrInvalidConfig, MaxTickRate)
	case cfg.DirtProbability < 0 || cfg.DirtProbability > 1:
		return fmt.Errorf("%w: dirt_probability must be within [0, 1]", ErrInvalidConfig)
	}

	switch cfg.ReplanPolicy {
	case ReplanEveryCell, ReplanOnClean:
	default:
		return fmt.Errorf("%w: unknown replan_policy %q", ErrInvalidConfig, cfg.ReplanPolicy)
	}
	return nil
}

// TickPeriod is the wall-clock period between ticks.
func (cfg *Config) TickPeriod() time.Duration {
	return time.Second / time.Duration(cfg.TickRate)
}

// NewGrid builds the initial room: the layout if there is one, otherwise an empty
// Rows x Cols grid.
func (cfg *Config) NewGrid() (*Grid, error) {
	if len(cfg.Layout) > 0 {
		return FromLayout(cfg.Layout)
	}
	return NewGrid(cfg.Rows, cfg.Cols)
}

// HomeCell returns the configured home cell, or the center of the grid.
func (cfg *Config) HomeCell(grid *Grid) Cell {
	if cfg.Home != nil {
		return *cfg.Home
	}
	return Cell{Row: grid.Rows() / 2, Col: grid.Cols() / 2}
}

// FromYaml reads a config file whose 'def' is decoded over the defaults, so a file
// only needs the keys it changes.
func FromYaml(path string) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")

	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if outerConfig.Kind != ConfigKind {
		return nil, fmt.Errorf("%w: kind %q, expected %q", ErrInvalidConfig, outerConfig.Kind, ConfigKind)
	}

	var def []byte
	if def, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err = yaml.Unmarshal(def, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
