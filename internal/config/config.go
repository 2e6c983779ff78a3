package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	ViewTUI      = "tui"
	ViewConsole  = "console"
	ViewHeadless = "headless"
)

type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	Logging    LoggingConfig    `yaml:"logging"`
	Simulation SimulationConfig `yaml:"simulation"`
	Diver      DiverConfig      `yaml:"diver"`
	Water      WaterConfig      `yaml:"water"`
	Control    ControlConfig    `yaml:"control"`
	View       ViewConfig       `yaml:"view"`
	Audio      AudioConfig      `yaml:"audio"`
}

type ListenConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type SimulationConfig struct {
	RateHz         float64    `yaml:"rate_hz"`
	Gravity        [3]float64 `yaml:"gravity"`
	LinearDamping  float64    `yaml:"linear_damping"`
	AngularDamping float64    `yaml:"angular_damping"`
}

type DiverConfig struct {
	Mass   float64    `yaml:"mass"`
	Radius float64    `yaml:"radius"`
	Spawn  [3]float64 `yaml:"spawn"`
}

type WaterConfig struct {
	SurfaceHeight float64 `yaml:"surface_height"`
	Density       float64 `yaml:"density"`
	Size          float64 `yaml:"size"`
}

type ControlConfig struct {
	Thrust  float64 `yaml:"thrust"`
	PulseMS int     `yaml:"pulse_ms"`
}

type ViewConfig struct {
	Mode string `yaml:"mode"`
}

type AudioConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Simulation: SimulationConfig{
			RateHz:         60,
			Gravity:        [3]float64{0, -9.82, 0},
			LinearDamping:  0.01,
			AngularDamping: 0.01,
		},
		Diver: DiverConfig{
			Mass:   75,
			Radius: 1,
			Spawn:  [3]float64{0, 10, 0},
		},
		Water: WaterConfig{
			SurfaceHeight: 0,
			Density:       1000,
			Size:          100,
		},
		Control: ControlConfig{
			Thrust:  50,
			PulseMS: 180,
		},
		View: ViewConfig{
			Mode: ViewTUI,
		},
	}
}

// Load reads path over the defaults, so omitted fields keep their default
// values. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Simulation.RateHz <= 0:
		return fmt.Errorf("%w: simulation.rate_hz must be positive, got %v", ErrInvalidConfig, c.Simulation.RateHz)
	case c.Diver.Mass <= 0:
		return fmt.Errorf("%w: diver.mass must be positive, got %v", ErrInvalidConfig, c.Diver.Mass)
	case c.Diver.Radius <= 0:
		return fmt.Errorf("%w: diver.radius must be positive, got %v", ErrInvalidConfig, c.Diver.Radius)
	case c.Water.Density <= 0:
		return fmt.Errorf("%w: water.density must be positive, got %v", ErrInvalidConfig, c.Water.Density)
	case c.Control.Thrust < 0:
		return fmt.Errorf("%w: control.thrust must not be negative, got %v", ErrInvalidConfig, c.Control.Thrust)
	case c.Control.PulseMS <= 0:
		return fmt.Errorf("%w: control.pulse_ms must be positive, got %d", ErrInvalidConfig, c.Control.PulseMS)
	case c.Simulation.LinearDamping < 0 || c.Simulation.LinearDamping > 1:
		return fmt.Errorf("%w: simulation.linear_damping must be in [0,1], got %v", ErrInvalidConfig, c.Simulation.LinearDamping)
	case c.Simulation.AngularDamping < 0 || c.Simulation.AngularDamping > 1:
		return fmt.Errorf("%w: simulation.angular_damping must be in [0,1], got %v", ErrInvalidConfig, c.Simulation.AngularDamping)
	}
	if c.Listen.Enabled && (c.Listen.Port <= 0 || c.Listen.Port > 65535) {
		return fmt.Errorf("%w: listen.port out of range: %d", ErrInvalidConfig, c.Listen.Port)
	}
	switch c.View.Mode {
	case ViewTUI, ViewConsole, ViewHeadless:
	default:
		return fmt.Errorf("%w: unknown view.mode %q", ErrInvalidConfig, c.View.Mode)
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Listen.Host, c.Listen.Port)
}
