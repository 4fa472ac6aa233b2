package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Insecure default values that must never reach production.
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"internal-secret":                      true,
	"internal-service-secret":              true,
	"":                                     true,
}

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	Tanaza         TanazaConfig
	MVola          MVolaConfig
	Portal         PortalConfig
	InternalSecret string
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Schema   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	SecretKey string
}

type TanazaConfig struct {
	APIBaseURL string
	APIKey     string
}

type MVolaConfig struct {
	BaseURL        string
	MerchantNumber string
	APIKey         string
}

type PortalConfig struct {
	// PurchaseTTLMinutes bounds how long a pending purchase ref stays
	// pollable before the client is told to retry from scratch.
	PurchaseTTLMinutes int
	// APStaleMinutes is the age after which controller data is flagged stale.
	APStaleMinutes int
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8006"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "portal_user"),
			Password: getEnv("DB_PASSWORD", "portal_pass"),
			DBName:   getEnv("DB_NAME", "hotspot_db"),
			Schema:   getEnv("DB_SCHEMA", "portal"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
		},
		Tanaza: TanazaConfig{
			APIBaseURL: getEnv("TANAZA_API_URL", "https://cloud.tanaza.com/api"),
			APIKey:     getEnv("TANAZA_API_KEY", ""),
		},
		MVola: MVolaConfig{
			BaseURL:        getEnv("MVOLA_BASE_URL", "https://api.mvola.mg"),
			MerchantNumber: getEnv("MVOLA_MERCHANT_NUMBER", ""),
			APIKey:         getEnv("MVOLA_API_KEY", ""),
		},
		Portal: PortalConfig{
			PurchaseTTLMinutes: getEnvInt("PURCHASE_TTL_MINUTES", 10),
			APStaleMinutes:     getEnvInt("AP_STALE_MINUTES", 15),
		},
		InternalSecret: getEnv("INTERNAL_SECRET", ""),
	}

	// Secrets stay out of the logs.
	log.Printf("[config] Portal Service loaded: port=%s db=%s/%s.%s redis=%s",
		cfg.Server.Port, cfg.Database.Host, cfg.Database.DBName, cfg.Database.Schema, cfg.Redis.Addr)

	return cfg
}

// Validate rejects insecure secrets; production deployments must call this.
func (c *Config) Validate() error {
	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}

	if insecureDefaults[c.InternalSecret] {
		return fmt.Errorf("INTERNAL_SECRET must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.InternalSecret) < 32 {
		return fmt.Errorf("INTERNAL_SECRET must be at least 32 characters long")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
