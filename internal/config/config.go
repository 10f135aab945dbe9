package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	WCLClientID     string
	WCLClientSecret string
	ServerPort      string
	LogLevel        string
}

// Load reads configuration from .env and the environment. Missing
// WarcraftLogs credentials are not fatal here: token acquisition reports
// them per stream so the client sees the failure instead of a dead process.
func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		WCLClientID:     getEnv("WCL_CLIENT_ID", ""),
		WCLClientSecret: getEnv("WCL_CLIENT_SECRET", ""),
		ServerPort:      getEnv("SERVER_PORT", "3000"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if cfg.WCLClientID == "" || cfg.WCLClientSecret == "" {
		logger.Warn().Msg("WCL_CLIENT_ID / WCL_CLIENT_SECRET not set, talent streams will fail on token acquisition")
	}

	logger.Info().
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Bool("wcl_credentials", cfg.WCLClientID != "").
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
