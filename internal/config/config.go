package config

import (
	"os"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	// RedisURL enables the cross-instance event bridge when set.
	RedisURL string
	// MeiliURL enables the external search index when set.
	MeiliURL  string
	MeiliKey  string
	JWTSecret string
}

func Load() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "skolar"),
		DBPassword: getEnv("DB_PASSWORD", "skolar_dev_password"),
		DBName:     getEnv("DB_NAME", "skolar"),
		RedisURL:   getEnv("REDIS_URL", ""),
		MeiliURL:   getEnv("MEILI_URL", ""),
		MeiliKey:   getEnv("MEILI_KEY", ""),
		JWTSecret:  getEnv("JWT_SECRET", "dev-secret-change-me"),
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}
