package config

import (
	"os"
	"strings"
	"time"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	LogMode  string // dev|prod

	DBDriver string
	DBDSN    string

	AuthHMACSecret string
	SessionTTL     time.Duration // lifetime of an access token
	SessionIdleTTL time.Duration // evict idle session stores after this

	// Empty RedisAddr keeps the auth bus and quiz state in-process.
	RedisAddr    string
	RedisChannel string
	QuizStateTTL time.Duration

	CORSOrigins []string

	EnableRegistration bool
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	defOrigins := "http://localhost:3000,http://localhost:5173"
	if mode == ModeOnline {
		defOrigins = "https://lms.mindengage.ai"
	}
	logMode := "dev"
	if mode == ModeOnline {
		logMode = "prod"
	}
	return Config{
		Mode:           mode,
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		LogMode:        envOr("LOG_MODE", logMode),
		DBDriver:       envOr("DB_DRIVER", "sqlite"),
		DBDSN:          envOr("DB_DSN", ""),
		AuthHMACSecret: envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		SessionTTL:     envDuration("SESSION_TTL", 8*time.Hour),
		SessionIdleTTL: envDuration("SESSION_IDLE_TTL", 30*time.Minute),
		RedisAddr:      strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisChannel:   envOr("REDIS_CHANNEL", "lms:auth"),
		QuizStateTTL:   envDuration("QUIZ_STATE_TTL", 2*time.Hour),
		CORSOrigins:    csvOr("CORS_ORIGINS", defOrigins),

		EnableRegistration: envBool("ENABLE_REGISTRATION", true),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
