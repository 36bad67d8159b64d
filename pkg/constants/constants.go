package constants

type contextKey string

const (
	LoggerKey   contextKey = "logger"
	PoolKey     contextKey = "pool"
	TxKey       contextKey = "tx"
	UserKey     contextKey = "user"
	TenantIDKey contextKey = "tenant_id"
)
