package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dshills/flowchart-go/graph/store"
)

// OpenStore opens the backend selected by cfg.Store. The returned close
// function releases its connections and is never nil.
func OpenStore[S any](ctx context.Context, cfg Runtime) (store.Store[S], func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store {
	case "", "memory":
		return store.NewMemStore[S](), noop, nil

	case "sqlite":
		s, err := store.NewSQLiteStore[S](cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	case "mysql":
		if cfg.MySQLDSN == "" {
			return nil, noop, fmt.Errorf("FLOWCHART_MYSQL_DSN is required for the mysql store")
		}
		s, err := store.NewMySQLStore[S](cfg.MySQLDSN)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, noop, fmt.Errorf("FLOWCHART_POSTGRES_DSN is required for the postgres store")
		}
		s, err := store.NewPostgresStore[S](cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return store.NewRedisStore[S](client, ""), client.Close, nil

	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		disconnect := func() error { return client.Disconnect(context.Background()) }
		s, err := store.NewMongoStore[S](ctx, client, "")
		if err != nil {
			_ = disconnect()
			return nil, noop, err
		}
		return s, disconnect, nil

	default:
		return nil, noop, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
