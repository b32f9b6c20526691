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
	ServerWriteTimeout    = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Connection code lifecycle. The TTL is fixed: a code is redeemable for
// 5 minutes after issue. Consumed and expired rows are kept around for
// CodeRetention before the cleanup job deletes them.
const (
	ConnectionCodeLength = 8
	ConnectionCodeTTL    = 5 * time.Minute
	CodeRetention        = 24 * time.Hour
)

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Rate limits
const (
	CodeGenerationLimit  = 3
	CodeGenerationWindow = 5 * time.Minute
	LoginAttemptLimit    = 5
	LoginAttemptWindow   = time.Minute
)
