package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DatabaseURL string
	DBDriver    string

	JWTSecret   []byte
	LoginURL    string
	CartPageURL string
	CSRFEnabled bool

	// CSRFTrustedOrigins lists storefront origins allowed to post besides the service's own host.
	CSRFTrustedOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CartCacheTTL  time.Duration

	KafkaBrokers       []string
	CartEventsTopic    string
	ProductEventsTopic string
	KafkaGroupID       string

	CatalogSource  string
	ESURL          string
	ESUser         string
	ESPassword     string
	ESProductIndex string
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v. Using system environment variables", err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "cart"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBDriver:    EnvDefault("DB_DRIVER", "pgx"),

		JWTSecret:   []byte(os.Getenv("JWT_SECRET")),
		LoginURL:    EnvDefault("LOGIN_URL", "/auth/login"),
		CartPageURL: EnvDefault("CART_PAGE_URL", "/"),
		CSRFEnabled: EnvBoolDefault("CSRF_ENABLED", false),

		CSRFTrustedOrigins: CSV(os.Getenv("CSRF_TRUSTED_ORIGINS")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       EnvIntDefault("REDIS_DB", 0),
		CartCacheTTL:  EnvDurationDefault("CART_CACHE_TTL", 5*time.Minute),

		KafkaBrokers:       CSV(os.Getenv("KAFKA_BROKERS")),
		CartEventsTopic:    EnvDefault("CART_EVENTS_TOPIC", "cart_events"),
		ProductEventsTopic: EnvDefault("PRODUCT_EVENTS_TOPIC", "product_events"),
		KafkaGroupID:       EnvDefault("KAFKA_GROUP_ID", "cart-service"),

		CatalogSource:  EnvDefault("CATALOG_SOURCE", "db"),
		ESURL:          os.Getenv("ES_URL"),
		ESUser:         os.Getenv("ES_USER"),
		ESPassword:     os.Getenv("ES_PASSWORD"),
		ESProductIndex: EnvDefault("ES_PRODUCT_INDEX", "product"),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
