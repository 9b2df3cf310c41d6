package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	LedgerBackend  string
	MigrateOnStart bool

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Game Settings
	GameEntryFee         int
	GameWinReward        int
	GameWaitSeconds      int
	GameChoiceSeconds    int
	JoinRateLimitSeconds int
	RecoveryIntervalSecs int

	// VIP / referrals
	VIPReferralMultiplier float64
	ReferralReward        int
	ReferralInviteeReward int

	// Telegram
	TelegramBotToken string
	TelegramDebug    bool

	// Security
	JWTSecret     string
	TokenTTLHours int

	// Admin seeded into the memory backend
	AdminUsername string
	AdminToken    string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/rpsarena?sslmode=disable"),
		LedgerBackend:  getEnv("LEDGER_BACKEND", "memory"),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Game Settings
		GameEntryFee:         getEnvInt("GAME_ENTRY_FEE", 1),
		GameWinReward:        getEnvInt("GAME_WIN_REWARD", 2),
		GameWaitSeconds:      getEnvInt("GAME_WAIT_SECONDS", 30),
		GameChoiceSeconds:    getEnvInt("GAME_CHOICE_SECONDS", 7),
		JoinRateLimitSeconds: getEnvInt("JOIN_RATE_LIMIT_SECONDS", 2),
		RecoveryIntervalSecs: getEnvInt("RECOVERY_INTERVAL_SECONDS", 30),

		// VIP / referrals
		VIPReferralMultiplier: getEnvFloat("VIP_REFERRAL_MULTIPLIER", 1.5),
		ReferralReward:        getEnvInt("REFERRAL_REWARD", 1),
		ReferralInviteeReward: getEnvInt("REFERRAL_INVITEE_REWARD", 1),

		// Telegram
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramDebug:    getEnvBool("TELEGRAM_DEBUG", false),

		// Security
		JWTSecret:     getEnv("JWT_SECRET", "change-me-in-production"),
		TokenTTLHours: getEnvInt("TOKEN_TTL_HOURS", 24),

		// Admin
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminToken:    getEnv("ADMIN_TOKEN", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
