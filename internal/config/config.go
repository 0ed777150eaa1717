package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration, loaded once at startup from
// the environment (optionally seeded by a .env file). Empty
// DATABASE_URL or REDIS_URL selects the in-memory backend, which is
// what the tests and chirpctl's offline commands run on.
type Config struct {
	ServerPort string

	DatabaseURL string
	RedisURL    string

	CelebrityThreshold int
	MaxTimeline        int
	FanoutWorkers      int

	IdentitySecret     string
	IdentityTTLMinutes int

	LogLevel string
	LogFile  string

	EventStreamEnabled bool
	EventStreamMaxLen  int

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		CelebrityThreshold: getEnvInt("CELEBRITY_THRESHOLD", 1000),
		MaxTimeline:        getEnvInt("MAX_TIMELINE", 800),
		FanoutWorkers:      getEnvInt("FANOUT_WORKERS", 8),

		IdentitySecret:     os.Getenv("IDENTITY_SECRET"),
		IdentityTTLMinutes: getEnvInt("IDENTITY_TTL_MINUTES", 1440),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "logs/chirper.log"),

		EventStreamEnabled: getEnvBool("EVENT_STREAM_ENABLED", false),
		EventStreamMaxLen:  getEnvInt("EVENT_STREAM_MAXLEN", 10000),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}
