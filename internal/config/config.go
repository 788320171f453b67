package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for
// anything time based.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to verify JWTs issued by the identity service

	InventoryURL     string        // base URL of the external asset system API
	InventoryToken   string        // bearer token for the asset system
	InventoryTimeout time.Duration // per-request timeout for asset system calls

	RabbitURL string // AMQP connection URL, empty disables event publishing

	RequireApproval  bool          // new reservations start in PENDING_APPROVAL
	MissedCutoff     time.Duration // grace after start before a PENDING reservation is MISSED
	ApprovalGrace    time.Duration // grace after start before unapproved reservations are cancelled
	SweepInterval    time.Duration // how often the sweeper runs, zero disables the ticker
	CapacityCacheTTL time.Duration // lifetime of cached model capacities, zero disables caching
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"), // empty password allowed
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),

		InventoryURL:     must("INVENTORY_API_URL"),
		InventoryToken:   must("INVENTORY_API_TOKEN"),
		InventoryTimeout: time.Duration(envInt("INVENTORY_TIMEOUT_SEC", 10)) * time.Second,

		RabbitURL: os.Getenv("RABBITMQ_URL"),

		RequireApproval:  envBool("REQUIRE_APPROVAL", false),
		MissedCutoff:     time.Duration(envInt("MISSED_CUTOFF_MIN", 60)) * time.Minute,
		ApprovalGrace:    time.Duration(envInt("APPROVAL_GRACE_HOURS", 24)) * time.Hour,
		SweepInterval:    time.Duration(envInt("SWEEP_INTERVAL_MIN", 0)) * time.Minute,
		CapacityCacheTTL: envDur("CAPACITY_CACHE_TTL", 0),
	}
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

// envInt returns the integer value of an optional environment variable,
// or the default when unset.  A malformed value is fatal rather than
// silently replaced.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

// envBool reads an optional boolean environment variable.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("invalid bool for %s: %q", key, v)
	}
	return b
}

// envDur reads an optional duration environment variable in Go duration
// syntax (e.g. "90s", "5m").
func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}
