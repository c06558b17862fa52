package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultRecalcLockTTL = 10 * time.Minute

// Config holds every runtime setting of the service.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// How long a running recalculation lock may go untouched before it is
	// treated as crashed and recoverable.
	RecalcLockTTL time.Duration

	// Optional S3-compatible store for pre-deletion session archives.
	// Leaving these unset disables archiving.
	ArchiveAccountID       string
	ArchiveAccessKeyID     string
	ArchiveSecretAccessKey string
	ArchiveBucket          string
	ArchivePublicBaseURL   string
}

// ArchiveEnabled reports whether the archive store settings are complete
// enough to build a client.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveAccountID != "" &&
		c.ArchiveAccessKeyID != "" &&
		c.ArchiveSecretAccessKey != "" &&
		c.ArchiveBucket != ""
}

// Load reads configuration from the environment. A .env file is loaded when
// present, which keeps local development simple; its absence is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	lockTTL := defaultRecalcLockTTL
	if ttlStr := os.Getenv("RECALC_LOCK_TTL"); ttlStr != "" {
		lockTTL, err = time.ParseDuration(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid RECALC_LOCK_TTL environment variable: %w", err)
		}
		if lockTTL <= 0 {
			return nil, fmt.Errorf("RECALC_LOCK_TTL must be positive, got %s", lockTTL)
		}
	}

	cfg := &Config{
		DatabaseURL:   dbURL,
		JWTSecretKey:  jwtKey,
		ServerPort:    port,
		RecalcLockTTL: lockTTL,

		ArchiveAccountID:       os.Getenv("ARCHIVE_ACCOUNT_ID"),
		ArchiveAccessKeyID:     os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
		ArchiveSecretAccessKey: os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"),
		ArchiveBucket:          os.Getenv("ARCHIVE_BUCKET"),
		ArchivePublicBaseURL:   os.Getenv("ARCHIVE_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}
