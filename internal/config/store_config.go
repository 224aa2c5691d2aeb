package config

import "strings"

const (
	stateStoreVar   = "IDP_OWOX_STATE_STORE"
	redisAddrVar    = "IDP_OWOX_REDIS_ADDR"
	redisPassVar    = "IDP_OWOX_REDIS_PASSWORD"
	dbTypeVar       = "IDP_OWOX_DB_TYPE"
	sqlitePathVar   = "IDP_OWOX_SQLITE_DB_PATH"
	postgresDSNVar  = "IDP_OWOX_POSTGRES_DSN"
	StateStoreSQL   = "sql"
	StateStoreRedis = "redis"
	StateStoreMem   = "memory"
)

type StoreConfig interface {
	GetStateStore() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetDBType() string
	GetSQLitePath() string
	GetPostgresDSN() string
}

type Store struct{}

var _ StoreConfig = Store{}

// GetStateStore selects where authorization state lives: sql (default), redis or memory.
func (Store) GetStateStore() string {
	return strings.ToLower(GetEnv(stateStoreVar, StateStoreSQL))
}

func (Store) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "localhost:6379")
}

func (Store) GetRedisPassword() string {
	return GetEnv(redisPassVar, "")
}

// GetDBType is sqlite or postgres.
func (Store) GetDBType() string {
	return strings.ToLower(GetEnv(dbTypeVar, "sqlite"))
}

func (Store) GetSQLitePath() string {
	return GetEnv(sqlitePathVar, "./data/idp-owox.db")
}

func (Store) GetPostgresDSN() string {
	return GetEnv(postgresDSNVar, "")
}
