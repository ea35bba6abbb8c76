// Package config loads covrpc's runtime configuration: viper for
// file/env/flag precedence, mapstructure decode hooks for human-friendly
// durations, and go-playground/validator for declarative struct
// validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is covrpc's top-level runtime configuration: the engine's slot,
// payload, and completion-queue sizing knobs, plus the ambient logging
// section every covrpc binary carries.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (COVRPC_*)
//  2. Configuration file
//  3. Default values
type Config struct {
	// MaxInflight bounds the ring size, cells per pool, and worker count.
	MaxInflight int `mapstructure:"max_inflight" validate:"required,min=1" yaml:"max_inflight"`

	// MaxReqPayload bounds request bytes; sizes send cells (client) / recv
	// cells (server).
	MaxReqPayload int `mapstructure:"max_req_payload" validate:"required,min=1" yaml:"max_req_payload"`

	// MaxRespPayload bounds response bytes; sizes recv cells (client) /
	// send cells (server).
	MaxRespPayload int `mapstructure:"max_resp_payload" validate:"required,min=1" yaml:"max_resp_payload"`

	// CQSize is the configured completion-queue depth. Only Validate reads
	// it; nothing in this repository passes it to the verb layer, whose
	// queue pairs are created by the caller. It
	// must be at least MaxInflight; cross-field validation happens in
	// Validate since go-playground/validator's struct tags can't see
	// sibling defaults applied after decode.
	CQSize int `mapstructure:"cq_size" validate:"required,min=1" yaml:"cq_size"`

	// ThreadCount sizes the server's compute pool, the handoff target for
	// dispatched handler calls.
	ThreadCount int `mapstructure:"thread_count" validate:"required,min=1" yaml:"thread_count"`

	// HandshakeTimeout is the configured bound for the out-of-band TCP
	// bootstrap. pkg/bootstrap.Handshake does not read it and sets no
	// deadline on the connection.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" validate:"required,gt=0" yaml:"handshake_timeout"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// Default returns covrpc's built-in configuration defaults.
func Default() *Config {
	return &Config{
		MaxInflight:      128,
		MaxReqPayload:    256,
		MaxRespPayload:   4096,
		CQSize:           128,
		ThreadCount:      4,
		HandshakeTimeout: 5 * time.Second,
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load loads configuration from file, environment, and defaults, then
// validates it. configPath == "" searches the default location.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}
	// AutomaticEnv only overrides keys viper already knows about, so bind
	// every key so COVRPC_* variables apply with or without a config file.
	for _, key := range []string{
		"max_inflight", "max_req_payload", "max_resp_payload", "cq_size",
		"thread_count", "handshake_timeout",
		"logging.level", "logging.format", "logging.output",
	} {
		_ = v.BindEnv(key)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load with friendlier errors for a missing explicit path.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config: file not found: %s", configPath)
		}
	}
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: load failed: %w", err)
	}
	return cfg, nil
}

// Validate runs struct-tag validation plus the cross-field checks tags
// alone cannot express: the completion queue must be at least as deep as
// the inflight bound, or posted work can outrun the queue's capacity to
// report completions.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	if cfg.CQSize < cfg.MaxInflight {
		return fmt.Errorf("cq_size (%d) must be >= max_inflight (%d)", cfg.CQSize, cfg.MaxInflight)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("COVRPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(configDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "covrpc")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "covrpc")
}
