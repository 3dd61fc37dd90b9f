package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the session API and the dev backend.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	ContentAPIURL        string
	FeedbackAPIURL       string
	BackendTimeout       time.Duration
	FeedbackDismissDelay time.Duration
	RedisURL             string
	CourseCacheTTL       time.Duration
	NATSURL              string
	NATSSubject          string
	SubmissionMaxMB      int
	SessionRateLimit     int
	SessionIdleTTL       time.Duration
	DevPort              string
	DevDatabaseURL       string
	OpenAIAPIKey         string
	OpenAIModel          string
}

// HTTPAddress returns the address the session API should listen on.
func (c Config) HTTPAddress() string {
	return listenAddress(c.AppPort)
}

// DevAddress returns the address the dev backend should listen on.
func (c Config) DevAddress() string {
	return listenAddress(c.DevPort)
}

func listenAddress(port string) string {
	if strings.HasPrefix(port, ":") {
		return port
	}

	return fmt.Sprintf(":%s", port)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SITUATED")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Situated Learning")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("content_api.url", "http://localhost:8090")
	v.SetDefault("feedback_api.url", "http://localhost:8001")
	v.SetDefault("backend.timeout", "0s")
	v.SetDefault("feedback.dismiss_delay", "2s")
	v.SetDefault("course_cache.ttl", "10m")
	v.SetDefault("nats.subject", "situated.activity")
	v.SetDefault("submission.max_mb", 10)
	v.SetDefault("session.rate_limit", 30)
	v.SetDefault("session.idle_ttl", "30m")
	v.SetDefault("dev.port", "8090")
	v.SetDefault("dev.database_url", "file:situated-dev.db?cache=shared")
	v.SetDefault("openai.model", "gpt-4o-mini")

	backendTimeout, err := parseDuration(v, "backend.timeout")
	if err != nil {
		return Config{}, err
	}

	dismissDelay, err := parseDuration(v, "feedback.dismiss_delay")
	if err != nil {
		return Config{}, err
	}

	cacheTTL, err := parseDuration(v, "course_cache.ttl")
	if err != nil {
		return Config{}, err
	}

	idleTTL, err := parseDuration(v, "session.idle_ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		ContentAPIURL:        strings.TrimRight(v.GetString("content_api.url"), "/"),
		FeedbackAPIURL:       strings.TrimRight(v.GetString("feedback_api.url"), "/"),
		BackendTimeout:       backendTimeout,
		FeedbackDismissDelay: dismissDelay,
		RedisURL:             v.GetString("redis.url"),
		CourseCacheTTL:       cacheTTL,
		NATSURL:              v.GetString("nats.url"),
		NATSSubject:          v.GetString("nats.subject"),
		SubmissionMaxMB:      v.GetInt("submission.max_mb"),
		SessionRateLimit:     v.GetInt("session.rate_limit"),
		SessionIdleTTL:       idleTTL,
		DevPort:              v.GetString("dev.port"),
		DevDatabaseURL:       v.GetString("dev.database_url"),
		OpenAIAPIKey:         v.GetString("openai_api_key"),
		OpenAIModel:          v.GetString("openai.model"),
	}

	if cfg.ContentAPIURL == "" || cfg.FeedbackAPIURL == "" {
		return Config{}, fmt.Errorf("content and feedback api urls must be provided")
	}

	if cfg.SubmissionMaxMB <= 0 {
		cfg.SubmissionMaxMB = 10
	}

	if cfg.SessionRateLimit <= 0 {
		cfg.SessionRateLimit = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}

	return d, nil
}
