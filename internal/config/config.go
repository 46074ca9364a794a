package config

import (
	"fmt"
	"os"
	"time"

	"github.com/alfredjeanlab/gatewatch/internal/timer"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Store       string // GATES_STORE ("postgres" or "memory", default "postgres")
	DatabaseURL string // GATES_DATABASE_URL (required with the postgres store)
	GRPCAddr    string // GATES_GRPC_ADDR (default ":9090")
	HTTPAddr    string // GATES_HTTP_ADDR (default ":8080")
	NATSURL     string // GATES_NATS_URL (optional, empty = no events)

	// Monitoring windows
	ArrivalWindow   time.Duration // GATES_ARRIVAL_WINDOW (default 25m)
	DepartureWindow time.Duration // GATES_DEPARTURE_WINDOW (default 30m)

	// Presence
	GuardIdleTimeout time.Duration // GATES_GUARD_IDLE_TIMEOUT (default 30m)

	// Archive settings
	ArchiveInterval   time.Duration // GATES_ARCHIVE_INTERVAL (default 1h; 0 = disabled)
	ArchiveS3Bucket   string        // GATES_ARCHIVE_S3_BUCKET (enables archiving when set)
	ArchiveS3Endpoint string        // GATES_ARCHIVE_S3_ENDPOINT (custom endpoint for MinIO)
	ArchiveS3Region   string        // GATES_ARCHIVE_S3_REGION (default "us-east-1")
	ArchiveS3Prefix   string        // GATES_ARCHIVE_S3_PREFIX (default "gatewatch/snapshots")
}

func Load() (*Config, error) {
	c := &Config{
		Store:             envOrDefault("GATES_STORE", StorePostgres),
		DatabaseURL:       os.Getenv("GATES_DATABASE_URL"),
		GRPCAddr:          envOrDefault("GATES_GRPC_ADDR", ":9090"),
		HTTPAddr:          envOrDefault("GATES_HTTP_ADDR", ":8080"),
		NATSURL:           os.Getenv("GATES_NATS_URL"),
		ArchiveS3Bucket:   os.Getenv("GATES_ARCHIVE_S3_BUCKET"),
		ArchiveS3Endpoint: os.Getenv("GATES_ARCHIVE_S3_ENDPOINT"),
		ArchiveS3Region:   envOrDefault("GATES_ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Prefix:   envOrDefault("GATES_ARCHIVE_S3_PREFIX", "gatewatch/snapshots"),
	}

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("GATES_DATABASE_URL is required with the postgres store")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("GATES_STORE: unknown store %q (want postgres or memory)", c.Store)
	}

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"GATES_ARRIVAL_WINDOW", timer.DefaultArrivalWindow.String(), &c.ArrivalWindow},
		{"GATES_DEPARTURE_WINDOW", timer.DefaultDepartureWindow.String(), &c.DepartureWindow},
		{"GATES_GUARD_IDLE_TIMEOUT", "30m", &c.GuardIdleTimeout},
		{"GATES_ARCHIVE_INTERVAL", "1h", &c.ArchiveInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(envOrDefault(d.key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("%s: must not be negative", d.key)
		}
		*d.dst = v
	}
	if c.ArrivalWindow == 0 || c.DepartureWindow == 0 {
		return nil, fmt.Errorf("monitoring windows must be positive")
	}

	return c, nil
}

// Policy returns the timer policy for the configured monitoring windows.
func (c *Config) Policy() timer.Policy {
	return timer.Policy{ArrivalWindow: c.ArrivalWindow, DepartureWindow: c.DepartureWindow}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
