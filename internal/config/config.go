// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the reward quotas,
// refresh and claim timings, game settings, server timeouts, logging,
// database selection, the chat gateway client, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Refresh modes for the winner selection cycle.
const (
	RefreshModeRanked     = "ranked"
	RefreshModeContinuous = "continuous"
)

// requiredKeys must be present at startup. Every missing key is reported at
// once so operators can fix the environment in a single pass.
var requiredKeys = []string{
	"GUILD_SCOPE_ID",
	"MAX_DAILY_POINTS",
	"MAX_USER_POINTS",
	"TOTAL_DISTRIBUTION_LIMIT",
	"POINTS_PER_MESSAGE",
	"CONNECT4_MAX_USER_POINTS",
	"CONNECT4_TOTAL_DISTRIBUTION_LIMIT",
	"CONNECT4_POINTS_PER_WIN",
	"TTT_MAX_USER_POINTS",
	"TTT_TOTAL_DISTRIBUTION_LIMIT",
	"TTT_POINTS_PER_WIN",
}

// MissingKeysError lists required environment variables that were not set.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Keys, ", ")
}

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// GameConfig holds the award caps of a single mini-game.
type GameConfig struct {
	MaxUserPoints int64 // <GAME>_MAX_USER_POINTS
	DailyLimit    int64 // <GAME>_TOTAL_DISTRIBUTION_LIMIT
	PointsPerWin  int64 // <GAME>_POINTS_PER_WIN
}

// GatewayConfig points at the chat gateway that relays DMs, reactions and
// private rooms to the community platform.
type GatewayConfig struct {
	URL     string        // GATEWAY_URL
	Token   string        // GATEWAY_TOKEN
	Timeout time.Duration // GATEWAY_TIMEOUT
}

// Config holds all configuration values for the application.
type Config struct {
	// Community
	GuildScopeID string

	// Chat quotas
	MaxDailyPoints         int64 // per user per day
	MaxUserPoints          int64 // lifetime balance cap
	TotalDistributionLimit int64 // global per day
	PointsPerMessage       int64
	AwardOneInN            int // 1 disables the probabilistic gate
	AwardReaction          string

	// Refresh / claims
	RefreshPeriod         time.Duration
	RefreshMode           string
	RankedTopN            int
	ClaimWindow           time.Duration
	PromotionReaction     string
	ClaimAddressOverwrite bool
	AdminUserID           string
	AdminToken            string
	ServiceToken          string // required on every non-admin API call
	ReminderChannelID     string
	ReminderCron          string

	// Games
	Connect4     GameConfig
	TicTacToe    GameConfig
	GameTimeout  time.Duration
	GameCooldown time.Duration

	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// Storage
	DBPath      string // SQLite path
	DatabaseURL string // postgres DSN; takes precedence over DBPath

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	CORS CORSConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a processed event id is remembered

	Gateway GatewayConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result. Missing required keys are
// reported together as a *MissingKeysError.
func Load() (Config, error) {
	var missing []string
	for _, k := range requiredKeys {
		if strings.TrimSpace(os.Getenv(k)) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Config{}, &MissingKeysError{Keys: missing}
	}

	cfg := Config{
		GuildScopeID: strings.TrimSpace(os.Getenv("GUILD_SCOPE_ID")),

		MaxDailyPoints:         getint64("MAX_DAILY_POINTS", 0),
		MaxUserPoints:          getint64("MAX_USER_POINTS", 0),
		TotalDistributionLimit: getint64("TOTAL_DISTRIBUTION_LIMIT", 0),
		PointsPerMessage:       getint64("POINTS_PER_MESSAGE", 0),
		AwardOneInN:            getint("AWARD_ONE_IN_N", 1),
		AwardReaction:          getenv("AWARD_REACTION", "⛏️"),

		RefreshPeriod:         getseconds("REFRESH_PERIOD_SECONDS", 24*time.Hour),
		RefreshMode:           strings.ToLower(getenv("REFRESH_MODE", RefreshModeContinuous)),
		RankedTopN:            getint("RANKED_TOP_N", 10),
		ClaimWindow:           getseconds("CLAIM_WINDOW_SECONDS", 24*time.Hour),
		PromotionReaction:     getenv("PROMOTION_REACTION", "🚀"),
		ClaimAddressOverwrite: getbool("CLAIM_ADDRESS_OVERWRITE", true),
		AdminUserID:           getenv("ADMIN_USER_ID", ""),
		AdminToken:            getenv("ADMIN_TOKEN", ""),
		ServiceToken:          getenv("SERVICE_TOKEN", getenv("GATEWAY_TOKEN", "")),
		ReminderChannelID:     getenv("REMINDER_CHANNEL_ID", ""),
		ReminderCron:          getenv("REMINDER_CRON", "0 10,22 * * *"),

		Connect4: GameConfig{
			MaxUserPoints: getint64("CONNECT4_MAX_USER_POINTS", 0),
			DailyLimit:    getint64("CONNECT4_TOTAL_DISTRIBUTION_LIMIT", 0),
			PointsPerWin:  getint64("CONNECT4_POINTS_PER_WIN", 0),
		},
		TicTacToe: GameConfig{
			MaxUserPoints: getint64("TTT_MAX_USER_POINTS", 0),
			DailyLimit:    getint64("TTT_TOTAL_DISTRIBUTION_LIMIT", 0),
			PointsPerWin:  getint64("TTT_POINTS_PER_WIN", 0),
		},
		GameTimeout:  getseconds("GAME_TIMEOUT_SECONDS", 600*time.Second),
		GameCooldown: getdur("GAME_COOLDOWN", 5*time.Second),

		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DBPath:      getenv("DB_PATH", "memebot.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		RateRPS:   getfloat("RATE_RPS", 20.0),
		RateBurst: getint("RATE_BURST", 40),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		Gateway: GatewayConfig{
			URL:     strings.TrimRight(getenv("GATEWAY_URL", ""), "/"),
			Token:   getenv("GATEWAY_TOKEN", ""),
			Timeout: getdur("GATEWAY_TIMEOUT", 10*time.Second),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "memebot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.AwardOneInN < 1 {
		cfg.AwardOneInN = 1
	}

	// --- validation ---
	if err := validateQuotas(cfg); err != nil {
		return cfg, err
	}
	switch cfg.RefreshMode {
	case RefreshModeRanked, RefreshModeContinuous:
	default:
		return cfg, errors.New("REFRESH_MODE must be one of: ranked, continuous")
	}
	if cfg.RefreshMode == RefreshModeRanked && cfg.RankedTopN < 1 {
		return cfg, errors.New("RANKED_TOP_N must be >= 1")
	}
	if cfg.RefreshPeriod <= 0 || cfg.ClaimWindow <= 0 || cfg.GameTimeout <= 0 {
		return cfg, errors.New("REFRESH_PERIOD_SECONDS, CLAIM_WINDOW_SECONDS and GAME_TIMEOUT_SECONDS must be > 0")
	}
	if cfg.GameCooldown < 0 {
		return cfg, errors.New("GAME_COOLDOWN must be >= 0")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.DatabaseURL == "" && strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty when DATABASE_URL is unset")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.Gateway.Timeout <= 0 {
		return cfg, errors.New("GATEWAY_TIMEOUT must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// validateQuotas rejects required numeric keys that are unparsable or not
// positive. Parsing fell back to 0 for garbage input, so 0 covers both.
func validateQuotas(cfg Config) error {
	checks := []struct {
		key string
		v   int64
	}{
		{"MAX_DAILY_POINTS", cfg.MaxDailyPoints},
		{"MAX_USER_POINTS", cfg.MaxUserPoints},
		{"TOTAL_DISTRIBUTION_LIMIT", cfg.TotalDistributionLimit},
		{"POINTS_PER_MESSAGE", cfg.PointsPerMessage},
		{"CONNECT4_MAX_USER_POINTS", cfg.Connect4.MaxUserPoints},
		{"CONNECT4_TOTAL_DISTRIBUTION_LIMIT", cfg.Connect4.DailyLimit},
		{"CONNECT4_POINTS_PER_WIN", cfg.Connect4.PointsPerWin},
		{"TTT_MAX_USER_POINTS", cfg.TicTacToe.MaxUserPoints},
		{"TTT_TOTAL_DISTRIBUTION_LIMIT", cfg.TicTacToe.DailyLimit},
		{"TTT_POINTS_PER_WIN", cfg.TicTacToe.PointsPerWin},
	}
	for _, c := range checks {
		if c.v <= 0 {
			return fmt.Errorf("%s must be a positive integer", c.key)
		}
	}
	return nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// getseconds reads an integer number of seconds.
func getseconds(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
