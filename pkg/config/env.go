package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvAdminToken = "ADMIN_TOKEN"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvSeatLockDuration = "SEAT_LOCK_DURATION"
	EnvReaperInterval   = "REAPER_INTERVAL"
	EnvSessionLockTTL   = "SESSION_LOCK_TTL"

	EnvDefaultCurrency = "DEFAULT_CURRENCY"

	EnvNotificationsTopic = "NOTIFICATIONS_TOPIC"
	EnvReceiptsTopic      = "RECEIPTS_TOPIC"
)
