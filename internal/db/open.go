package db

import (
	"github.com/artverse/nova/internal/config"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// OpenSQL opens the primary store described by c.
func OpenSQL(c config.DatabaseConfig) (*sqlx.DB, error) {
	return NewSQLConnection(c.Driver, c.DSN, SQLOpts{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	})
}

// OpenClickHouse returns (nil, nil) when no DSN is configured.
func OpenClickHouse(c config.DatabaseConfig) (*sqlx.DB, error) {
	return NewClickHouseConnection(ClickHouseOpts{
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	})
}

// OpenRedis returns (nil, nil) when no address is configured.
func OpenRedis(c config.RedisConfig) (*redis.Client, error) {
	return NewRedisClient(RedisOpts{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.DialTimeout,
	})
}
