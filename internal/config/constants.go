package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// RefreshTokenTTL bounds how long a refresh token may mint new access
// tokens; it matches the owning session's remaining lifetime at most.
const RefreshTokenTTL = 30 * 24 * time.Hour

// Rate limiter window
const RateLimitWindow = time.Second
