package config

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Port             string
	CompletionAPIKey string
	CompletionURL    string
	ModelName        string
	HistoryDBPath    string
	LogLevel         string
	GinMode          string
}

// Load reads configuration from the environment, honoring a local .env file
// when one exists.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment variables")
	}

	return Config{
		Port:             getEnv("PORT", "9090"),
		CompletionAPIKey: getEnv("COMPLETION_API_KEY", ""),
		CompletionURL:    getEnv("COMPLETION_URL", "https://openrouter.ai/api/v1/chat/completions"),
		ModelName:        getEnv("COMPLETION_MODEL", "mistralai/mistral-7b-instruct:free"),
		HistoryDBPath:    getEnv("HISTORY_DB_PATH", "./data/badger"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		GinMode:          getEnv("GIN_MODE", "debug"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
