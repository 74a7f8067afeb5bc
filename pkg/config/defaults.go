package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "regdesk"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Seat lock lifetime for a pending registration. A seat held this
	// long without confirmation is reclaimed by the reaper.
	DefaultSeatLockDuration = 10 * time.Minute
	DefaultReaperInterval   = 5 * time.Minute

	// Advisory per-session mutex held across the check-then-insert
	// sequence of a single create attempt.
	DefaultSessionLockTTL = 10 * time.Second

	DefaultCurrency = "MAD"

	DefaultNotificationsTopic = "regdesk.notifications"
	DefaultReceiptsTopic      = "regdesk.receipts"

	DefaultPaginationLimit = 100
)
