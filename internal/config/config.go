// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"traderiser/pkg/db"
)

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SMTPConfig holds the outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	JWTSecret  string
	MediaDir   string
	DB         db.Config
	Redis      RedisConfig
	SMTP       SMTPConfig
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadConfig loads configuration from the environment, with a .env file as
// an optional local override.
func LoadConfig() (*AppConfig, error) {
	// A missing .env is fine; the environment wins in deployment.
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getenv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	redisDB, err := strconv.Atoi(getenv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	return &AppConfig{
		ServerPort: getenv("SERVER_PORT", "8080"),
		JWTSecret:  getenv("JWT_SECRET", "dev-secret-change-me"),
		MediaDir:   getenv("MEDIA_DIR", "media"),
		DB: db.Config{
			Host:     getenv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getenv("DB_USER", "user"),
			Password: getenv("DB_PASSWORD", "password"),
			DBName:   getenv("DB_NAME", "traderiserdb"),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		SMTP: SMTPConfig{
			Host:     getenv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getenv("SMTP_PORT", "465"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
	}, nil
}
