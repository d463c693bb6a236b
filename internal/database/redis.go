package database

import (
	"context"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"

	"github.com/gogetcash/backend/internal/store"
)

// InitRedis initializes the Redis client with config. Returns nil when Redis
// is unreachable; callers treat that as cache-less degraded mode.
func InitRedis() *redis.Client {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	addr := viper.GetString("redis.host") + ":" + viper.GetString("redis.port")
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Redis connection failed, continuing without Redis: %v", err)
		return nil
	}

	log.Println("Redis connection established")
	return rdb
}

// InitDocumentStore builds the document store the ledger runs on. With Redis
// available it is the durable Redis-backed store; without it the server falls
// back to an in-memory store so development setups still work.
func InitDocumentStore(rdb *redis.Client) store.DocumentStore {
	if rdb == nil {
		log.Println("Using in-memory document store; data will not survive restarts")
		return store.NewMemoryStore()
	}
	return store.NewRedisStore(rdb)
}
