package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	DatabaseURL       string
	JWTSecret         string
	JWTIssuer         string
	AccessTTLSeconds  int64
	RefreshTTLSeconds int64
	VerifyTTLSeconds  int64
	CorsOrigins       []string
	AppBaseURL        string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string

	OSSEndpoint      string
	OSSAccessKey     string
	OSSSecretKey     string
	OSSBucket        string
	OSSPublicBaseURL string
	MediaStoragePath string
	MaxUploadMB      int

	ReminderSchedule    string
	ReminderWindowHours int
	HealthDiskPath      string
	HealthSampleSeconds int
	HealthKeepHours     int

	LogDir           string
	LogRetentionDays int
}

func Load() Config {
	return Config{
		DatabaseURL:       mustEnv("DATABASE_URL"),
		JWTSecret:         mustEnv("JWT_SECRET"),
		JWTIssuer:         envOr("JWT_ISSUER", "canopy"),
		AccessTTLSeconds:  int64(envOrInt("ACCESS_TTL_SECONDS", 14400)),
		RefreshTTLSeconds: int64(envOrInt("REFRESH_TTL_SECONDS", 1209600)),
		VerifyTTLSeconds:  int64(envOrInt("VERIFY_TTL_SECONDS", 172800)),
		CorsOrigins:       parseCSV(envOr("CORS_ORIGINS", "")),
		AppBaseURL:        strings.TrimRight(envOr("APP_BASE_URL", "http://localhost:3000"), "/"),

		SMTPHost:     envOr("SMTP_HOST", ""),
		SMTPPort:     envOrInt("SMTP_PORT", 587),
		SMTPUsername: envOr("SMTP_USERNAME", ""),
		SMTPPassword: envOr("SMTP_PASSWORD", ""),
		SMTPFrom:     envOr("SMTP_FROM", "Canopy <no-reply@canopy.local>"),

		RedisAddr:     envOr("REDIS_ADDR", ""),
		RedisPassword: envOr("REDIS_PASSWORD", ""),
		RedisDB:       envOrInt("REDIS_DB", 0),

		KafkaBrokers: parseCSV(envOr("KAFKA_BROKERS", "")),
		KafkaTopic:   envOr("KAFKA_TOPIC", "canopy.activity"),

		OSSEndpoint:      envOr("OSS_ENDPOINT", ""),
		OSSAccessKey:     envOr("OSS_ACCESS_KEY", ""),
		OSSSecretKey:     envOr("OSS_SECRET_KEY", ""),
		OSSBucket:        envOr("OSS_BUCKET", ""),
		OSSPublicBaseURL: strings.TrimRight(envOr("OSS_PUBLIC_BASE_URL", ""), "/"),
		MediaStoragePath: envOr("MEDIA_STORAGE_PATH", "storage/media"),
		MaxUploadMB:      envOrInt("MAX_UPLOAD_MB", 15),

		ReminderSchedule:    envOr("REMINDER_SCHEDULE", "@every 15m"),
		ReminderWindowHours: envOrInt("REMINDER_WINDOW_HOURS", 24),
		HealthDiskPath:      envOr("HEALTH_DISK_PATH", "/"),
		HealthSampleSeconds: envOrInt("HEALTH_SAMPLE_SECONDS", 60),
		HealthKeepHours:     envOrInt("HEALTH_KEEP_HOURS", 72),

		LogDir:           envOr("LOG_DIR", "storage/logs"),
		LogRetentionDays: clamp(envOrInt("LOG_RETENTION_DAYS", 7), 1, 7),
	}
}

// OSSEnabled reports whether every Aliyun OSS setting is present.
func (c Config) OSSEnabled() bool {
	return c.OSSEndpoint != "" && c.OSSAccessKey != "" && c.OSSSecretKey != "" && c.OSSBucket != ""
}

func mustEnv(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		panic("missing env var: " + key)
	}
	return value
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
