package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	AuthIssuer    string `mapstructure:"AUTH_ISSUER"`
	AuthAudience  string `mapstructure:"AUTH_AUDIENCE"`
	JWTSigningKey string `mapstructure:"JWT_SIGNING_KEY"`

	// Terminology source files loaded at startup.
	NamasteCSVPath string `mapstructure:"NAMASTE_CSV_PATH"`
	TM2CSVPath     string `mapstructure:"TM2_CSV_PATH"`
	MappingCSVPath string `mapstructure:"MAPPING_CSV_PATH"`

	// WHO ICD-11 API is an optional enrichment source; the server runs
	// without it.
	WHOAPIBaseURL    string `mapstructure:"WHO_API_BASE_URL"`
	WHOTokenURL      string `mapstructure:"WHO_TOKEN_URL"`
	WHOClientID      string `mapstructure:"WHO_CLIENT_ID"`
	WHOClientSecret  string `mapstructure:"WHO_CLIENT_SECRET"`
	WHOTimeoutSecs   int    `mapstructure:"WHO_TIMEOUT_SECS"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("NAMASTE_CSV_PATH", "data/namaste_codes.csv")
	v.SetDefault("TM2_CSV_PATH", "data/tm2_codes.csv")
	v.SetDefault("MAPPING_CSV_PATH", "data/namaste_icd11_mappings.csv")
	v.SetDefault("WHO_API_BASE_URL", "https://id.who.int/icd")
	v.SetDefault("WHO_TOKEN_URL", "https://icdaccessmanagement.who.int/connect/token")
	v.SetDefault("WHO_TIMEOUT_SECS", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("JWT_SIGNING_KEY")
	v.BindEnv("NAMASTE_CSV_PATH")
	v.BindEnv("TM2_CSV_PATH")
	v.BindEnv("MAPPING_CSV_PATH")
	v.BindEnv("WHO_API_BASE_URL")
	v.BindEnv("WHO_TOKEN_URL")
	v.BindEnv("WHO_CLIENT_ID")
	v.BindEnv("WHO_CLIENT_SECRET")
	v.BindEnv("WHO_TIMEOUT_SECS")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: unauthenticated requests are granted admin access.")
		log.Println("WARNING: set ENV=production and JWT settings before deploying.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// WHOEnabled reports whether the optional WHO ICD-11 enrichment client
// should be constructed.
func (c *Config) WHOEnabled() bool {
	return c.WHOClientID != "" && c.WHOClientSecret != ""
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT verification source must be configured so the curator and doctor
// endpoints are actually authenticated.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.JWTSigningKey == "" {
		return fmt.Errorf(
			"AUTH_ISSUER or JWT_SIGNING_KEY must be set when ENV=%q; "+
				"refusing to start without authentication configuration", c.Env)
	}
	if c.NamasteCSVPath == "" || c.TM2CSVPath == "" || c.MappingCSVPath == "" {
		return fmt.Errorf("terminology CSV paths must not be empty")
	}
	return nil
}
