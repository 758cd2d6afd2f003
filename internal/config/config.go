package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultListenAddr      = ":3000"
	defaultDatabaseURL     = "llm-chat.db"
	defaultAccessTTL       = "30m"
	defaultRefreshTTL      = "168h"
	defaultRotateWindow    = "24h"
	defaultUpstreamBaseURL = "https://api.siliconflow.cn/v1"
	defaultUploadsDir      = "uploads"
	defaultAccessSecret    = "change-me-access-secret"
	defaultRefreshSecret   = "change-me-refresh-secret"
)

type Config struct {
	AppEnv             string
	ListenAddr         string
	DatabaseURL        string
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	// RefreshRotateWindow is the remaining-lifetime threshold below which
	// the refresh endpoint mints and stores a replacement refresh token.
	RefreshRotateWindow time.Duration
	UpstreamBaseURL     string
	UpstreamAPIKey      string
	UploadsDir          string
	// PublicBaseURL overrides the scheme://host used when rewriting
	// generated image URLs; empty means derive it from the request.
	PublicBaseURL      string
	CORSAllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.ListenAddr = getEnv("LISTEN_ADDR", defaultListenAddr)
	cfg.DatabaseURL = getEnv("DATABASE_URL", defaultDatabaseURL)
	cfg.AccessTokenSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultAccessSecret))
	cfg.RefreshTokenSecret = strings.TrimSpace(getEnv("REFRESH_TOKEN_SECRET", defaultRefreshSecret))
	cfg.UpstreamBaseURL = strings.TrimRight(getEnv("UPSTREAM_BASE_URL", defaultUpstreamBaseURL), "/")
	cfg.UpstreamAPIKey = strings.TrimSpace(os.Getenv("UPSTREAM_API_KEY"))
	cfg.UploadsDir = getEnv("UPLOADS_DIR", defaultUploadsDir)
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	var err error
	cfg.AccessTokenTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultAccessTTL)
	if err != nil {
		return nil, err
	}
	cfg.RefreshTokenTTL, err = parseDurationEnv("REFRESH_TTL", defaultRefreshTTL)
	if err != nil {
		return nil, err
	}
	cfg.RefreshRotateWindow, err = parseDurationEnv("REFRESH_ROTATE_WINDOW", defaultRotateWindow)
	if err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.AccessTokenTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.RefreshTokenTTL <= 0 {
		return fmt.Errorf("REFRESH_TTL must be > 0")
	}
	if cfg.RefreshRotateWindow <= 0 || cfg.RefreshRotateWindow >= cfg.RefreshTokenTTL {
		return fmt.Errorf("REFRESH_ROTATE_WINDOW must be > 0 and shorter than REFRESH_TTL")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return fmt.Errorf("JWT_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.AccessTokenSecret, defaultAccessSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.RefreshTokenSecret, defaultRefreshSecret) {
			return fmt.Errorf("in prod/release REFRESH_TOKEN_SECRET must be set and not default")
		}
		if cfg.UpstreamAPIKey == "" {
			return fmt.Errorf("in prod/release UPSTREAM_API_KEY must be set")
		}
	}
	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
