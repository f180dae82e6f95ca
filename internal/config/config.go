package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	DBPath     string
	ServerPort string
	LogLevel   string
	Env        string

	SessionLifetime time.Duration
	JWTSecret       string
	TokenTTL        time.Duration
	AdminEmails     []string
	AllowedOrigins  []string

	SweepSchedule     string
	SweepConcurrency  int
	AutoRecordWinners bool
	DefaultStageHours int

	VoteRatePerSecond float64
	VoteBurst         int

	SentryDSN string

	DiscordKey         string
	DiscordSecret      string
	DiscordCallbackURL string
	GoogleKey          string
	GoogleSecret       string
	GoogleCallbackURL  string
}

const devJWTSecret = "dev-only-insecure-secret"

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	p := parser{}
	cfg := &Config{
		DBPath:     getEnv("DB_PATH", "brickbracket.db"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Env:        getEnv("APP_ENV", "production"),

		SessionLifetime: p.duration("SESSION_LIFETIME", 24*time.Hour),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		TokenTTL:        p.duration("TOKEN_TTL", 12*time.Hour),
		AdminEmails:     splitList(getEnv("ADMIN_EMAILS", "")),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "*")),

		SweepSchedule:     getEnv("SWEEP_SCHEDULE", "@every 10m"),
		SweepConcurrency:  p.integer("SWEEP_CONCURRENCY", 4),
		AutoRecordWinners: p.boolean("AUTO_RECORD_WINNERS", true),
		DefaultStageHours: p.integer("DEFAULT_STAGE_HOURS", 24),

		VoteRatePerSecond: p.float("VOTE_RATE_PER_SECOND", 2),
		VoteBurst:         p.integer("VOTE_BURST", 5),

		SentryDSN: getEnv("SENTRY_DSN", ""),

		DiscordKey:         getEnv("DISCORD_KEY", ""),
		DiscordSecret:      getEnv("DISCORD_SECRET", ""),
		DiscordCallbackURL: getEnv("DISCORD_CALLBACK_URL", "http://localhost:8080/auth/discord/callback"),
		GoogleKey:          getEnv("GOOGLE_KEY", ""),
		GoogleSecret:       getEnv("GOOGLE_SECRET", ""),
		GoogleCallbackURL:  getEnv("GOOGLE_CALLBACK_URL", "http://localhost:8080/auth/google/callback"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("env", cfg.Env).
		Str("sweep_schedule", cfg.SweepSchedule).
		Int("admin_count", len(cfg.AdminEmails)).
		Bool("sentry", cfg.SentryDSN != "").
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET is required outside development")
		}
		c.JWTSecret = devJWTSecret
	}
	if c.SweepConcurrency < 1 {
		return fmt.Errorf("SWEEP_CONCURRENCY must be at least 1, got %d", c.SweepConcurrency)
	}
	if !bracket.ValidStageHours(c.DefaultStageHours) {
		return fmt.Errorf("DEFAULT_STAGE_HOURS must be between 1 and %d, got %d", bracket.MaxStageHours, c.DefaultStageHours)
	}
	if c.VoteRatePerSecond <= 0 || c.VoteBurst < 1 {
		return fmt.Errorf("vote rate limit must be positive")
	}
	return nil
}

// IsAdminEmail reports whether email belongs to a configured administrator.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	for _, admin := range c.AdminEmails {
		if strings.EqualFold(admin, email) {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (p *parser) integer(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return f
}

func (p *parser) boolean(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}
