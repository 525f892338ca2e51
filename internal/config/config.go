package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DatabaseURL  string
	DBLogLevel   string
	MaxOpenConns int
	MaxIdleConns int

	RedisURL string
	CacheTTL time.Duration

	CORSAllowOrigins string

	// Ephemeral staff logins expire at this local hour in the fixed POS zone
	StaffCutoffHour     int
	UTCOffsetHours      int
	StaffExpiryInterval time.Duration
	SyncMaxBatch        int
}

// Load reads .env (if present) and then the process environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	return &Config{
		Port:             getEnv("PORT", "3000"),
		DatabaseURL:      databaseURL(),
		DBLogLevel:       getEnv("DB_LOG_LEVEL", "warn"),
		MaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 50),
		MaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 10),
		RedisURL:         getEnv("REDIS_URL", ""),
		CacheTTL:         getEnvDuration("CACHE_TTL", 30*time.Second),
		CORSAllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
		StaffCutoffHour:  getEnvInt("POS_STAFF_CUTOFF_HOUR", 16),
		UTCOffsetHours:   getEnvInt("POS_UTC_OFFSET_HOURS", -5),
		SyncMaxBatch:     getEnvInt("POS_SYNC_MAX_BATCH", 200),

		StaffExpiryInterval: getEnvDuration("POS_STAFF_EXPIRY_INTERVAL", 5*time.Minute),
	}
}

// Location is the fixed zone used for the daily staff cutoff
func (c *Config) Location() *time.Location {
	name := fmt.Sprintf("UTC%+d", c.UTCOffsetHours)
	return time.FixedZone(name, c.UTCOffsetHours*60*60)
}

func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "church_pos"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_SSLMODE", "disable"),
	)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid integer for %s, using %d", key, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration for %s, using %s", key, defaultValue)
	}
	return defaultValue
}
