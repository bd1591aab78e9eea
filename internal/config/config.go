package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBSchema        string   `mapstructure:"DB_SCHEMA"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir   string   `mapstructure:"MIGRATIONS_DIR"`
	RedisURL        string   `mapstructure:"REDIS_URL"`
	CacheTTLSeconds int      `mapstructure:"CACHE_TTL_SECONDS"`
	AuthIssuer      string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL     string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience    string   `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey  string   `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int      `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit       string   `mapstructure:"BODY_LIMIT"`

	// CodeSystem resources used to fill in coding displays.
	CodeSystemFiles    []string `mapstructure:"CODESYSTEM_FILES"`
	CodeSystemURLs     []string `mapstructure:"CODESYSTEM_URLS"`
	CodeSystemRetryMax int      `mapstructure:"CODESYSTEM_RETRY_MAX"`

	// Concepts and attribute types the translators need to recognise.
	Locale                   string `mapstructure:"LOCALE"`
	ContactAttributeTypeUUID string `mapstructure:"CONTACT_ATTRIBUTE_TYPE_UUID"`
	AllergySeverityMild      string `mapstructure:"ALLERGY_SEVERITY_MILD"`
	AllergySeverityModerate  string `mapstructure:"ALLERGY_SEVERITY_MODERATE"`
	AllergySeveritySevere    string `mapstructure:"ALLERGY_SEVERITY_SEVERE"`
	AllergyOtherNonCoded     string `mapstructure:"ALLERGY_OTHER_NON_CODED"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_SCHEMA", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"MIGRATIONS_DIR", "REDIS_URL", "CACHE_TTL_SECONDS",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT",
	"CODESYSTEM_FILES", "CODESYSTEM_URLS", "CODESYSTEM_RETRY_MAX",
	"LOCALE", "CONTACT_ATTRIBUTE_TYPE_UUID",
	"ALLERGY_SEVERITY_MILD", "ALLERGY_SEVERITY_MODERATE", "ALLERGY_SEVERITY_SEVERE",
	"ALLERGY_OTHER_NON_CODED",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("CACHE_TTL_SECONDS", 300)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BODY_LIMIT", "2M")
	v.SetDefault("CODESYSTEM_RETRY_MAX", 3)
	v.SetDefault("LOCALE", "en")
	// CIEL concepts shipped with the reference dictionary.
	v.SetDefault("ALLERGY_SEVERITY_MILD", "1498AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	v.SetDefault("ALLERGY_SEVERITY_MODERATE", "1499AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	v.SetDefault("ALLERGY_SEVERITY_SEVERE", "1500AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	v.SetDefault("ALLERGY_OTHER_NON_CODED", "5622AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.CodeSystemFiles = splitList(v.GetString("CODESYSTEM_FILES"))
	cfg.CodeSystemURLs = splitList(v.GetString("CODESYSTEM_URLS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

// splitList reads a comma separated env value.
func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Validate checks that a non-development server has a way to verify tokens.
func (c *Config) Validate() error {
	if c.IsDev() {
		return nil
	}
	if c.AuthJWKSURL == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_JWKS_URL or AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	return nil
}
