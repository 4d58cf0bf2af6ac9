package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	// HTTP server
	ServerAddr string

	// MySQL
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO (catalog snapshots)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// Spotify metadata source
	SpotifyAPIURL       string
	SpotifyAuthURL      string
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRateLimit    float64 // requests per second
	SpotifyMaxRetries   int
	SpotifyRetryDelay   time.Duration

	// LLM (OpenAI-compatible chat completions)
	LLMAPIBaseURL  string
	LLMAPIKey      string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeout     time.Duration

	// Planner defaults
	Planner PlannerConfig
}

// PlannerConfig holds the planner settings. It is passed to the planner
// at construction instead of being read from ambient global state.
type PlannerConfig struct {
	DurationTolerance int  // seconds, plan total vs prompt target
	UseLLM            bool // whether model-assisted stages are attempted
	MaxCandidates     int  // cap on the candidate pool size
}

// WithTolerance returns a copy of the config with a new duration
// tolerance. The receiver is not mutated.
func (p PlannerConfig) WithTolerance(seconds int) PlannerConfig {
	p.DurationTolerance = seconds
	return p
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvFloat gets an environment variable as float64 or returns a default value.
func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "cratefm"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "cratefm"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		SpotifyAPIURL:       getEnv("SPOTIFY_API_URL", "https://api.spotify.com/v1"),
		SpotifyAuthURL:      getEnv("SPOTIFY_AUTH_URL", "https://accounts.spotify.com/api/token"),
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		SpotifyRateLimit:    getEnvFloat("SPOTIFY_RATE_LIMIT", 5),
		SpotifyMaxRetries:   getEnvInt("SPOTIFY_MAX_RETRIES", 3),
		SpotifyRetryDelay:   time.Duration(getEnvInt("SPOTIFY_RETRY_DELAY_MS", 500)) * time.Millisecond,

		LLMAPIBaseURL:  getEnv("LLM_API_URL", "https://api.openai.com/v1"),
		LLMAPIKey:      os.Getenv("LLM_API_KEY"),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
		LLMTimeout:     time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,

		Planner: PlannerConfig{
			DurationTolerance: getEnvInt("PLAN_DURATION_TOLERANCE", 300),
			UseLLM:            getEnvBool("PLAN_USE_LLM", true),
			MaxCandidates:     getEnvInt("PLAN_MAX_CANDIDATES", 100),
		},
	}
}
