package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	DBSSLMode     string
	JWTSecret     string
	JWTTTL        time.Duration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	AIEndpoint string
	AIAPIKey   string
	AITimeout  time.Duration

	TypingStopAfter   time.Duration
	TypingExpireAfter time.Duration
	SweepInterval     time.Duration
	PresenceTTL       time.Duration
	HeartbeatInterval time.Duration
	ProfileCacheTTL   time.Duration
	MaxConnsPerMinute int

	OutboxInterval     time.Duration
	OutboxBatchSize    int
	OutboxMaxRetries   int
	// OutboxDrainTimeout bounds the final publish pass on shutdown.
	OutboxDrainTimeout time.Duration
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "chatcore"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		JWTTTL:        getEnvAsDuration("JWT_TTL", 24*time.Hour),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		AIEndpoint: getEnv("AI_ENDPOINT", ""),
		AIAPIKey:   getEnv("AI_API_KEY", ""),
		AITimeout:  getEnvAsDuration("AI_TIMEOUT", 20*time.Second),

		TypingStopAfter:   getEnvAsDuration("TYPING_STOP_AFTER", 3*time.Second),
		TypingExpireAfter: getEnvAsDuration("TYPING_EXPIRE_AFTER", 4*time.Second),
		SweepInterval:     getEnvAsDuration("SWEEP_INTERVAL", 2*time.Second),
		PresenceTTL:       getEnvAsDuration("PRESENCE_TTL", 30*time.Second),
		HeartbeatInterval: getEnvAsDuration("HEARTBEAT_INTERVAL", 10*time.Second),
		ProfileCacheTTL:   getEnvAsDuration("PROFILE_CACHE_TTL", 5*time.Minute),
		MaxConnsPerMinute: getEnvAsInt("MAX_CONNS_PER_MINUTE", 30),

		OutboxInterval:     getEnvAsDuration("OUTBOX_INTERVAL", 100*time.Millisecond),
		OutboxBatchSize:    getEnvAsInt("OUTBOX_BATCH", 100),
		OutboxMaxRetries:   getEnvAsInt("OUTBOX_MAX_RETRIES", 10),
		OutboxDrainTimeout: getEnvAsDuration("OUTBOX_DRAIN_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
