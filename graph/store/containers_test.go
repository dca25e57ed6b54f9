package store

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dshills/flowchart-go/internal/testutil"
)

func TestPostgresStore(t *testing.T) {
	dsn := testutil.StartPostgres(t)

	st, err := NewPostgresStore[testState](dsn)
	require.NoError(t, err)
	defer st.Close()

	runStoreSuite(t, st)
}

func TestRedisStore(t *testing.T) {
	addr := testutil.StartRedis(t)

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())

	runStoreSuite(t, NewRedisStore[testState](client, "test:"))
}

func TestMongoStore(t *testing.T) {
	uri := testutil.StartMongo(t)
	ctx := context.Background()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer func() { _ = client.Disconnect(ctx) }()

	st, err := NewMongoStore[testState](ctx, client, "flowchart_test")
	require.NoError(t, err)

	runStoreSuite(t, st)
}
