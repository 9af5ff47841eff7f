package rigid

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// Config holds world tuning parameters. All fields have working defaults;
// load order is defaults < file.
type Config struct {
	Gravity          [3]float64 `yaml:"gravity"`
	AABBPad          float64    `yaml:"aabb_pad"`
	SolverIterations int        `yaml:"solver_iterations"`
	BaumgarteFactor  float64    `yaml:"baumgarte_factor"`
	SlopPenetration  float64    `yaml:"slop_penetration"`
	SleepThreshold   float64    `yaml:"sleep_threshold"`
	SleepTime        float64    `yaml:"sleep_time"`
	QueuePow         uint       `yaml:"queue_pow"`
	Logging          LogConfig  `yaml:"logging"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	Debug   bool   `yaml:"debug"`
}

// DefaultConfig returns the engine defaults: earth-like gravity along -Y,
// a 10 cm broadphase pad, and 8 solver sweeps.
func DefaultConfig() Config {
	return Config{
		Gravity:          [3]float64{0, -9.81, 0},
		AABBPad:          0.1,
		SolverIterations: 8,
		BaumgarteFactor:  0.2,
		SlopPenetration:  0.005,
		SleepThreshold:   0.05,
		SleepTime:        1.0,
		QueuePow:         12,
		Logging:          LogConfig{Level: "info"},
	}
}

// LoadConfig reads a YAML file over the defaults. A missing file is not an
// error; the defaults are returned unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("loading config from %s: %w", path, err)
	}
	return cfg, nil
}

// GravityVec returns the configured gravity as a vector.
func (c Config) GravityVec() mgl64.Vec3 {
	return mgl64.Vec3{c.Gravity[0], c.Gravity[1], c.Gravity[2]}
}
