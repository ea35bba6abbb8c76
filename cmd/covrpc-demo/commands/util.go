package commands

import (
	"fmt"

	"github.com/covrpc/covrpc/internal/logger"
	"github.com/covrpc/covrpc/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig resolves the config file from the --config flag, searching the
// default config location when unset; built-in defaults apply when no file
// is found.
func loadConfig() (*config.Config, error) {
	return config.Load(GetConfigFile())
}
