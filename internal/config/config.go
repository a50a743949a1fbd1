// Package config loads process configuration from environment variables and
// an optional YAML file. Nothing here is process-global: the loaded Config is
// passed into constructors.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DBConfig holds the ledger connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ServerConfig holds the dashboard API settings.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AuthConfig holds the JWT settings for mutating dashboard routes.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// CameraConfig holds the capture device settings for a gate station.
type CameraConfig struct {
	DeviceID    int    `mapstructure:"device_id"`
	Width       int    `mapstructure:"width"`
	Height      int    `mapstructure:"height"`
	CascadePath string `mapstructure:"cascade_path"`
}

// EngineConfig tunes the consensus engine for a gate station.
type EngineConfig struct {
	FrameBudget     int     `mapstructure:"frame_budget"`
	MaxReadRetries  int     `mapstructure:"max_read_retries"`
	CaptureBudgetMS int     `mapstructure:"capture_budget_ms"`
	FrameDelayMS    int     `mapstructure:"frame_delay_ms"`
	GreenThreshold  float64 `mapstructure:"green_threshold"`
}

// GateConfig identifies a station and selects its allocation policy preset.
type GateConfig struct {
	StationID string `mapstructure:"station_id"`
	// Mode is one of entry, entry-women, exit.
	Mode string `mapstructure:"mode"`
	// EVFallback lets a full EV pool spill into the regular pool.
	EVFallback bool `mapstructure:"ev_fallback"`
	// ExitMode is soft_close or hard_delete.
	ExitMode string `mapstructure:"exit_mode"`
}

// Config is the full process configuration.
type Config struct {
	DB     DBConfig     `mapstructure:"db"`
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Camera CameraConfig `mapstructure:"camera"`
	Engine EngineConfig `mapstructure:"engine"`
	Gate   GateConfig   `mapstructure:"gate"`
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// Gate station modes.
const (
	ModeEntry      = "entry"
	ModeEntryWomen = "entry-women"
	ModeExit       = "exit"
)

// Load reads configuration from the optional file at path (YAML) and from
// PARKING_* environment variables, over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PARKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "parking")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "smart_parking")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("server.addr", ":9854")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("camera.device_id", 0)
	v.SetDefault("camera.width", 1920)
	v.SetDefault("camera.height", 1080)
	v.SetDefault("camera.cascade_path", "haarcascade_russian_plate_number.xml")

	v.SetDefault("engine.frame_budget", 5)
	v.SetDefault("engine.max_read_retries", 30)
	v.SetDefault("engine.capture_budget_ms", 0)
	v.SetDefault("engine.frame_delay_ms", 250)
	v.SetDefault("engine.green_threshold", 0.3)

	v.SetDefault("gate.station_id", "gate-1")
	v.SetDefault("gate.mode", ModeEntry)
	v.SetDefault("gate.ev_fallback", false)
	v.SetDefault("gate.exit_mode", "soft_close")
}

func (c *Config) validate() error {
	switch c.Gate.Mode {
	case ModeEntry, ModeEntryWomen, ModeExit:
	default:
		return fmt.Errorf("invalid gate mode %q", c.Gate.Mode)
	}
	switch c.Gate.ExitMode {
	case "soft_close", "hard_delete":
	default:
		return fmt.Errorf("invalid exit mode %q", c.Gate.ExitMode)
	}
	if c.Engine.FrameBudget <= 0 {
		return fmt.Errorf("engine.frame_budget must be positive")
	}
	return nil
}
