package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr       string
	UseMock          bool
	APIURLMock       string
	APIURLProduction string
	StaticDataDir    string
	DBPath           string
	LogLevel         string
	LogFile          string
	ViewCacheSize    int
	AllowedOrigins   []string
}

// Load reads configuration from the environment. Values from an optional
// .env file (ENV_FILE, default ".env") are applied first without overriding
// variables that are already set.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		UseMock:          getEnv("USE_MOCK", "false") == "true",
		APIURLMock:       getEnv("API_URL_MOCK", "http://localhost:3001"),
		APIURLProduction: getEnv("API_URL_PRODUCTION", ""),
		StaticDataDir:    getEnv("STATIC_DATA_DIR", "public/data"),
		DBPath:           getEnv("DB_PATH", "/data/shelfinv.db"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFile:          getEnv("LOG_FILE", ""),
		ViewCacheSize:    getEnvInt("VIEW_CACHE_SIZE", 32),
		AllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
	}, nil
}

// APIURL returns the base URL selected by UseMock. An empty result means
// resources are served from StaticDataDir.
func (c *Config) APIURL() string {
	if c.UseMock {
		return c.APIURLMock
	}
	return c.APIURLProduction
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
