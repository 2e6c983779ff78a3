package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Versifine/diver/internal/config"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), "")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfig_ViewOverride(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), config.ViewHeadless)
	require.NoError(t, err)
	assert.Equal(t, config.ViewHeadless, cfg.View.Mode)

	_, err = loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), "gui")
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("diver:\n  mass: -1\n"), 0o644))

	_, err := loadConfig(path, "")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestBodyOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.RateHz = 120
	cfg.Control.Thrust = 80
	cfg.Water.SurfaceHeight = 2

	opts := bodyOptions(cfg)
	assert.InDelta(t, 1.0/120, opts.Timestep, 1e-12)
	assert.Equal(t, mgl64.Vec3{0, -9.82, 0}, opts.Gravity)
	assert.Equal(t, mgl64.Vec3{0, 10, 0}, opts.Spawn)
	assert.Equal(t, 80.0, opts.Constants.Thrust)
	assert.Equal(t, 2.0, opts.Constants.WaterSurfaceHeight)
	assert.Equal(t, cfg.Diver.Radius, opts.Constants.Radius)
}

func TestRun_HeadlessStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.View.Mode = config.ViewHeadless
	cfg.Listen.Enabled = false

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, run(ctx, cfg))
}
