// Package config loads the application settings from the environment.
//
// Values are read once at start-up and treated as immutable. An optional .env
// file in the working directory is loaded first; real environment variables
// win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/todolist/internal/timeutil"
)

// Config holds every setting the server needs.
type Config struct {
	// Server
	Port int

	// Database
	DBPath string

	// Auth. An empty JWTSecret disables sign-in and every route needing it.
	JWTSecret          string
	SessionTTL         time.Duration
	CookieSecure       bool
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	// callbackFromEnv records that GOOGLE_CALLBACK_URL was set, so a port
	// override leaves it alone.
	callbackFromEnv bool

	// Tasks
	DefaultTimeZone string
	SampleTasks     bool // give new accounts example tasks

	// Rate limit, per signed-in user
	RateLimitPerMinute int

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string
}

// AuthEnabled reports whether sign-in can be offered.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// OverridePort replaces the listen port, as the serve --port flag does. A
// callback URL derived from the old port follows the new one.
func (c *Config) OverridePort(port int) {
	c.Port = port
	if !c.callbackFromEnv {
		c.GoogleCallbackURL = defaultCallbackURL(port)
	}
}

func defaultCallbackURL(port int) string {
	return fmt.Sprintf("http://localhost:%d/auth/google/callback", port)
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
//
// Malformed optional numbers and durations fall back to their defaults. PORT
// and DEFAULT_TIME_ZONE are checked because nothing sensible can run without
// them.
func FromEnv() (*Config, error) {
	cfg := &Config{}

	port, err := strconv.Atoi(getEnvString("PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("config: invalid PORT %q", os.Getenv("PORT"))
	}
	cfg.Port = port

	cfg.DBPath = getEnvString("DB_PATH", "data/todo.db")

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 24*time.Hour)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleCallbackURL = os.Getenv("GOOGLE_CALLBACK_URL")
	cfg.callbackFromEnv = cfg.GoogleCallbackURL != ""
	if !cfg.callbackFromEnv {
		cfg.GoogleCallbackURL = defaultCallbackURL(cfg.Port)
	}

	cfg.DefaultTimeZone = getEnvString("DEFAULT_TIME_ZONE", timeutil.DefaultZone)
	if _, err := timeutil.LoadZone(cfg.DefaultTimeZone); err != nil {
		return nil, fmt.Errorf("config: DEFAULT_TIME_ZONE: %w", err)
	}

	cfg.SampleTasks = getEnvBool("GENERATE_CONTENT", false)

	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 120)

	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(getEnvString("LOG_FORMAT", "text"))
	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
