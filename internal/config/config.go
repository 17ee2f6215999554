package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strings"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Token lifetimes are kept as the raw duration
// strings ("15m", "7d") and parsed by the token service.
type Config struct {
	Env              string   // application environment (e.g. "development", "production")
	Port             string   // HTTP port to listen on
	Version          string   // reported by GET /api/version
	DBUser           string   // database username
	DBPass           string   // database password (optional)
	DBHost           string   // database host address
	DBPort           string   // database port number
	DBName           string   // database name
	JWTSecret        string   // secret used to sign access tokens
	JWTRefreshSecret string   // separate secret used to sign refresh tokens
	AccessExpiresIn  string   // access token lifetime, e.g. "15m"
	RefreshExpiresIn string   // refresh token lifetime, e.g. "7d"
	BcryptCost       int      // bcrypt cost for password hashing
	FrontendURLs     []string // allowed CORS origins; the first one is the reset-link base
	AllowResetToken  bool     // echo the raw reset token in forgot-password responses
	BodyLimit        string   // max request body size, echo notation ("2M")
	MailQueueEnabled bool     // route reset emails through RabbitMQ instead of sending inline
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:              getenv("APP_ENV", "development"),
		Port:             getenv("APP_PORT", "3000"),
		Version:          getenv("APP_VERSION", "0.1.0"),
		DBUser:           must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"),
		DBHost:           must("DB_HOST"),
		DBPort:           getenv("DB_PORT", "3306"),
		DBName:           must("DB_NAME"),
		JWTSecret:        must("JWT_SECRET"),
		JWTRefreshSecret: must("JWT_REFRESH_SECRET"),
		AccessExpiresIn:  getenv("JWT_EXPIRES_IN", "15m"),
		RefreshExpiresIn: getenv("JWT_REFRESH_EXPIRES_IN", "7d"),
		BcryptCost:       envInt("BCRYPT_COST", 12),
		FrontendURLs:     splitList(os.Getenv("FRONTEND_URL")),
		AllowResetToken:  envBool("ALLOW_RESET_TOKEN_IN_RESPONSE", false),
		BodyLimit:        getenv("BODY_LIMIT", "2M"),
		MailQueueEnabled: envBool("MAIL_QUEUE_ENABLED", false),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

// ExposeResetToken reports whether forgot-password may return the raw token.
func (c Config) ExposeResetToken() bool {
	return c.AllowResetToken || !c.IsProduction()
}

// FrontendURL is the base used for password reset links.
func (c Config) FrontendURL() string {
	if len(c.FrontendURLs) == 0 {
		return ""
	}
	return c.FrontendURLs[0]
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
