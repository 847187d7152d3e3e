package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents job service configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	StoragePath        string
	PublicBaseURL      string
	FileRetention      time.Duration
	CleanupInterval    time.Duration
	AuthEnabled        bool
	AuthUser           string
	AuthPass           string
	CORSAllowedOrigins []string
	FFmpegPath         string
	FFprobePath        string
	MaxConcurrentJobs  int
	MaxUploadBytes     int64
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8000"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		PublicBaseURL:      strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/"),
		FileRetention:      time.Hour * time.Duration(getEnvInt("FILE_RETENTION_HOURS", 1)),
		CleanupInterval:    time.Minute * time.Duration(getEnvInt("CLEANUP_INTERVAL_MINUTES", 15)),
		AuthEnabled:        getEnvBool("AUTH_ENABLED", true),
		AuthUser:           getEnv("AUTH_USER", "admin"),
		AuthPass:           os.Getenv("AUTH_PASS"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:        getEnv("FFPROBE_PATH", "ffprobe"),
		MaxConcurrentJobs:  getEnvInt("MAX_CONCURRENT_JOBS", 1),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 2048)) << 20,
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 0)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.AuthEnabled && cfg.AuthPass == "" {
		return nil, fmt.Errorf("AUTH_PASS is required when AUTH_ENABLED is true")
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 1
	}
	if cfg.FileRetention <= 0 {
		return nil, fmt.Errorf("FILE_RETENTION_HOURS must be positive")
	}

	return cfg, nil
}

// ClientConfig configures the command line client.
type ClientConfig struct {
	AppEnv     string
	BackendURL string
	SameOrigin string
	AuthUser   string
	AuthPass   string
}

// LoadClientConfig reads the client settings. BACKEND_URL may be empty, in
// which case requests go to SAME_ORIGIN.
func LoadClientConfig() ClientConfig {
	return ClientConfig{
		AppEnv:     getEnv("APP_ENV", "production"),
		BackendURL: os.Getenv("BACKEND_URL"),
		SameOrigin: getEnv("SAME_ORIGIN", "http://localhost:8000"),
		AuthUser:   os.Getenv("AUTH_USER"),
		AuthPass:   os.Getenv("AUTH_PASS"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
