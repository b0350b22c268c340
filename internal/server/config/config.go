package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devSecret = "dev-secret-change"

type Config struct {
	HTTPAddr        string
	DatabaseDSN     string
	SessionSecret   string
	SessionTTL      time.Duration
	LoginTokenTTL   time.Duration
	AllowedDomain   string
	MaxRequestBytes int64
	CORSOrigins     []string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	GeneratorProvider string
	GeneratorModel    string
	GeneratorAPIKey   string
	GeneratorBaseURL  string
	GeneratorTimeout  time.Duration
	ContextWindow     int

	LogFile            string
	LogLevel           string
	TelemetryEnabled   bool
	TelemetryDir       string
	TokenPurgeInterval time.Duration
	ExposeDebugToken   bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:        getEnv("WEBASSIST_HTTP_ADDR", ":8000"),
		DatabaseDSN:     getEnv("WEBASSIST_DB_DSN", ""),
		SessionSecret:   getEnv("WEBASSIST_SESSION_SECRET", getEnv("SECRET_KEY", devSecret)),
		SessionTTL:      getEnvDuration("WEBASSIST_SESSION_TTL", 24*time.Hour),
		LoginTokenTTL:   getEnvDuration("WEBASSIST_LOGIN_TOKEN_TTL", 24*time.Hour),
		AllowedDomain:   getEnv("WEBASSIST_ALLOWED_DOMAIN", "teddydigital.io"),
		MaxRequestBytes: int64(getEnvInt("WEBASSIST_MAX_REQUEST_BYTES", 1<<20)),
		CORSOrigins:     splitList(getEnv("WEBASSIST_CORS_ORIGINS", "*")),

		SMTPHost:     getEnv("WEBASSIST_SMTP_SERVER", getEnv("SMTP_SERVER", "smtp.gmail.com")),
		SMTPPort:     getEnvInt("WEBASSIST_SMTP_PORT", getEnvInt("SMTP_PORT", 587)),
		SMTPUsername: getEnv("WEBASSIST_SMTP_USERNAME", getEnv("SMTP_USERNAME", "")),
		SMTPPassword: getEnv("WEBASSIST_SMTP_PASSWORD", getEnv("SMTP_PASSWORD", "")),
		SMTPFrom:     getEnv("WEBASSIST_SMTP_FROM", ""),

		GeneratorProvider: getEnv("WEBASSIST_GENERATOR", "openai"),
		GeneratorModel:    getEnv("WEBASSIST_MODEL", ""),
		GeneratorAPIKey:   getEnv("WEBASSIST_API_KEY", getEnv("OPENAI_API_KEY", "")),
		GeneratorBaseURL:  getEnv("WEBASSIST_API_BASE_URL", ""),
		GeneratorTimeout:  getEnvDuration("WEBASSIST_GENERATION_TIMEOUT", 60*time.Second),
		ContextWindow:     getEnvInt("WEBASSIST_CONTEXT_WINDOW", 10),

		LogFile:            getEnv("WEBASSIST_LOG_FILE", ""),
		LogLevel:           getEnv("WEBASSIST_LOG_LEVEL", "info"),
		TelemetryEnabled:   getEnvBool("WEBASSIST_TELEMETRY", false),
		TelemetryDir:       getEnv("WEBASSIST_TELEMETRY_DIR", "telemetry"),
		TokenPurgeInterval: getEnvDuration("WEBASSIST_TOKEN_PURGE_INTERVAL", time.Hour),
		ExposeDebugToken:   getEnvBool("WEBASSIST_EXPOSE_DEBUG_TOKEN", false),
	}
	if cfg.SessionSecret == devSecret {
		slog.Warn("using development session secret; set WEBASSIST_SESSION_SECRET")
	}
	return cfg
}

// SMTPEnabled reports whether credentials for real mail delivery are present.
func (c Config) SMTPEnabled() bool {
	return c.SMTPUsername != "" && c.SMTPPassword != ""
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
