package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Upload limits
	MaxUploadSizeBytes int64

	// Price service settings
	PriceCacheTTL     time.Duration
	PriceFetchTimeout time.Duration

	// Analysis settings
	DefaultTaxYear        int
	CapLossLimitEnabled   bool
	AnalysisCacheTTL      time.Duration
	AnalysisCacheCleanup  time.Duration
	ReplacementTableReset bool // re-seed replacement_securities from defaults at startup

	// AI advisor (Gemini) settings
	GeminiAPIKey  string
	GeminiModel   string
	GeminiTimeout time.Duration

	// Frontend URL for reference (CORS)
	FrontendBaseURL string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory (common when running from /backend)
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760") // 10MB default
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	defaultTaxYear := getEnvAsInt("DEFAULT_TAX_YEAR", 2025)

	geminiAPIKey := getEnv("GEMINI_API_KEY", "")
	if geminiAPIKey == "" {
		log.Println("Info: GEMINI_API_KEY not set. AI explanations disabled; suggestions will use the static replacement table.")
	}

	Cfg = &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./optionstaxhub.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		MaxUploadSizeBytes: maxUploadSizeBytes,

		PriceCacheTTL:     getEnvAsDuration("PRICE_CACHE_TTL", 5*time.Minute),
		PriceFetchTimeout: getEnvAsDuration("PRICE_FETCH_TIMEOUT", 20*time.Second),

		DefaultTaxYear:        defaultTaxYear,
		CapLossLimitEnabled:   getEnvAsBool("CAP_LOSS_LIMIT_ENABLED", false),
		AnalysisCacheTTL:      getEnvAsDuration("ANALYSIS_CACHE_TTL", 15*time.Minute),
		AnalysisCacheCleanup:  getEnvAsDuration("ANALYSIS_CACHE_CLEANUP", 30*time.Minute),
		ReplacementTableReset: getEnvAsBool("REPLACEMENT_TABLE_RESET", false),

		GeminiAPIKey:  geminiAPIKey,
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiTimeout: getEnvAsDuration("GEMINI_TIMEOUT", 15*time.Second),

		FrontendBaseURL: getEnv("APP_BASE_URL", "http://localhost:3000"),
	}

	log.Printf("Configuration loaded. Port: %s, LogLevel: %s, DefaultTaxYear: %d", Cfg.Port, Cfg.LogLevel, Cfg.DefaultTaxYear)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("WARNING: Invalid integer for %s: '%s'. Using default %d.", key, valueStr, fallback)
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	switch strings.ToLower(valueStr) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		log.Printf("WARNING: Invalid boolean for %s: '%s'. Using default %t.", key, valueStr, fallback)
		return fallback
	}
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("WARNING: Invalid duration for %s: '%s'. Using default %s.", key, valueStr, fallback)
		return fallback
	}
	return value
}
