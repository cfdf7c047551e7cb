// Package config reads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ironsheep/edge-matte-mcp/internal/imaging"
	"github.com/ironsheep/edge-matte-mcp/internal/pipeline"
	"github.com/rs/zerolog"
)

// Environment variable names.
const (
	EnvLogLevel     = "EDGE_MATTE_LOG_LEVEL"
	EnvDefaultSize  = "EDGE_MATTE_DEFAULT_SIZE"
	EnvMaxDownscale = "EDGE_MATTE_MAX_DOWNSCALE"
	EnvTolerance    = "EDGE_MATTE_TOLERANCE"
)

// Config holds the server settings.
type Config struct {
	// LogLevel is the minimum level written to stderr.
	LogLevel zerolog.Level

	// DefaultSize is the size preset used when a tool call names none.
	DefaultSize pipeline.ImageSize

	// MaxDownscale caps the pre-processing shrink factor.
	MaxDownscale int

	// Tolerance is the default background hue half-width.
	Tolerance int
}

// Default returns the settings used when no environment variable is set.
func Default() Config {
	return Config{
		LogLevel:     zerolog.InfoLevel,
		DefaultSize:  pipeline.SizeM,
		MaxDownscale: pipeline.DefaultMaxDownscale,
		Tolerance:    imaging.DefaultTolerance,
	}
}

// Load reads the settings from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the settings through getenv. Unset variables keep their
// defaults; malformed values are errors.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v, ok := lookup(getenv, EnvLogLevel); ok {
		level, err := zerolog.ParseLevel(strings.ToLower(v))
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		cfg.LogLevel = level
	}

	if v, ok := lookup(getenv, EnvDefaultSize); ok {
		size, err := pipeline.ParseImageSize(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvDefaultSize, err)
		}
		cfg.DefaultSize = size
	}

	if v, ok := lookup(getenv, EnvMaxDownscale); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("%s: must be an integer >= 1, got %q", EnvMaxDownscale, v)
		}
		cfg.MaxDownscale = n
	}

	if v, ok := lookup(getenv, EnvTolerance); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("%s: must be an integer >= 0, got %q", EnvTolerance, v)
		}
		cfg.Tolerance = n
	}

	return cfg, nil
}

func lookup(getenv func(string) string, key string) (string, bool) {
	v := strings.TrimSpace(getenv(key))
	return v, v != ""
}
