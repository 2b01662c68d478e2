package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	StoreDriver string
	DSN         string
	MongoURI    string
	MongoDB     string
	DataFile    string
	RedisAddr   string

	KafkaBrokers       []string
	KafkaTopic         string
	KafkaGroupID       string
	OutboxPollInterval time.Duration

	Username              string
	Password              string
	DashboardPasswordHash string
	JWTSecret             string
	JWTTTL                time.Duration

	SMSEndpoint       string
	VonageAPIKey      string
	VonageAPISecret   string
	VonagePhoneNumber string
	VonageBaseURL     string

	PublicURL      string
	TimeZone       string
	LogLevel       string
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string

	AuditBatchSize int
	AuditTimeout   time.Duration
}

// LoadConfig reads .env when present and then the process environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:    getEnv("APP_PORT", "9000"),
		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		DSN:         getEnv("APP_DSN", "host=localhost user=postgres password=postgres dbname=coffeehouse sslmode=disable"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "coffeehouse"),
		DataFile:    getEnv("DATA_FILE", "orders.json"),
		RedisAddr:   getEnv("REDIS_ADDR", ""),

		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "coffeehouse-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "coffeehouse-eventlog"),
		OutboxPollInterval: getDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),

		Username:              getEnv("APP_USER", "admin"),
		Password:              getEnv("APP_PASS", "secret"),
		DashboardPasswordHash: getEnv("DASHBOARD_PASSWORD_HASH", ""),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		JWTTTL:                getDuration("JWT_TTL", 12*time.Hour),

		SMSEndpoint:       getEnv("SMS_ENDPOINT", ""),
		VonageAPIKey:      getEnv("VONAGE_API_KEY", ""),
		VonageAPISecret:   getEnv("VONAGE_API_SECRET", ""),
		VonagePhoneNumber: getEnv("VONAGE_PHONE_NUMBER", ""),
		VonageBaseURL:     getEnv("VONAGE_BASE_URL", "https://rest.nexmo.com"),

		PublicURL:      getEnv("PUBLIC_URL", "http://localhost:9000"),
		TimeZone:       getEnv("APP_TZ", "Local"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 5),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),

		AuditBatchSize: getInt("AUDIT_BATCH_SIZE", 5),
		AuditTimeout:   getDuration("AUDIT_TIMEOUT", 500*time.Millisecond),
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}

func getFloat(key string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.HTTPPort)
}

// Location resolves APP_TZ; "completed today" is measured from its midnight.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// SMSConfigured reports whether the Vonage credentials needed by the SMS
// gateway are all present.
func (c *Config) SMSConfigured() bool {
	return c.VonageAPIKey != "" && c.VonageAPISecret != "" && c.VonagePhoneNumber != ""
}
