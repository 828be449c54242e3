package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The types reflect how the values are used in
// the application: strings for identifiers and secrets, bools for feature
// switches.
type Config struct {
	Env             string // application environment (e.g. "dev", "prod")
	Port            string // HTTP port to listen on
	AppBaseURL      string // public origin used for provider return/cancel URLs
	DBUser          string // database username
	DBPass          string // database password (optional)
	DBHost          string // database host address
	DBPort          string // database port number
	DBName          string // database name
	JWTSecret       string // secret used to verify access tokens
	PayPalClientID  string // PayPal REST client id
	PayPalSecret    string // PayPal REST secret
	PayPalWebhookID string // id of the webhook subscription we verify against
	PayPalLive      bool   // true selects the production PayPal host
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		AppBaseURL:      must("APP_BASE_URL"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"), // empty allowed
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		JWTSecret:       must("JWT_SECRET"),
		PayPalClientID:  must("PAYPAL_CLIENT_ID"),
		PayPalSecret:    must("PAYPAL_SECRET"),
		PayPalWebhookID: os.Getenv("PAYPAL_WEBHOOK_ID"),
		PayPalLive:      boolEnv("PAYPAL_LIVE"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// boolEnv parses an optional boolean environment variable, defaulting to
// false when unset or unparsable.
func boolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
