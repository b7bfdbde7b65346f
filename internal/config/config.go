package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL       string
	City              string
	NATSURL           string
	NATSStreamName    string
	NATSSubjectPrefix string
	LogNATSSubjects   bool
	TickInterval      time.Duration
	StepSize          float64
	ETASeed           uint64
	HTTPAddr          string
	MetricsAddr       string
	ShutdownTimeout   time.Duration
	AutoStart         bool
	PickupStop        string
	DestinationStop   string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Route source: DATABASE_URL / PG_DSN, else PG* vars when PGDATABASE is set,
	// else the built-in network.
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" && os.Getenv("PGDATABASE") != "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	}
	cfg.DatabaseURL = dsn

	// City name selects the newest route set in the database
	cfg.City = firstNonEmpty(os.Getenv("CITY"), os.Getenv("CITY_NAME"))
	if cfg.City != "" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("CITY %q requires DATABASE_URL or PGDATABASE", cfg.City)
	}

	// NATS is optional; empty disables publishing
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSStreamName = os.Getenv("NATS_STREAM_NAME")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "buses")
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"))

	// Tick interval
	if v := os.Getenv("TICK_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid TICK_INTERVAL_MS: %q", v)
		}
		cfg.TickInterval = time.Duration(ms) * time.Millisecond
	} else {
		cfg.TickInterval = time.Second
	}

	// Fraction of a segment per tick
	if v := os.Getenv("STEP_SIZE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f >= 1 {
			return nil, fmt.Errorf("invalid STEP_SIZE: %q", v)
		}
		cfg.StepSize = f
	} else {
		cfg.StepSize = 0.015
	}

	// ETA jitter seed; 0 picks a random seed
	if v := os.Getenv("ETA_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ETA_SEED: %q", v)
		}
		cfg.ETASeed = seed
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	if v := os.Getenv("SHUTDOWN_TIMEOUT_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT_SEC: %q", v)
		}
		cfg.ShutdownTimeout = time.Duration(sec) * time.Second
	} else {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	cfg.AutoStart = parseBool(os.Getenv("AUTO_START"))

	cfg.PickupStop = getenvDefault("PICKUP_STOP", "Park Street")
	cfg.DestinationStop = getenvDefault("DESTINATION_STOP", "Central Kolkata")

	return cfg, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
