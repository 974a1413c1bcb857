package redis_test

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/jrsteele09/repo-dashboard/cache/redis"
	"github.com/jrsteele09/repo-dashboard/internal/errors"
	"github.com/stretchr/testify/require"
)

const testPrefix = "dash:"

// TestStoreGet covers a hit, a miss and a transport failure
func TestStoreGet(t *testing.T) {
	ctx := context.Background()
	rdb, mock := redismock.NewClientMock()
	store := redis.New(rdb, testPrefix)

	mock.ExpectGet("dash:repos:octocat").SetVal(`[{"id":1}]`)
	v, err := store.Get(ctx, "repos:octocat")
	require.NoError(t, err)
	require.Equal(t, `[{"id":1}]`, string(v))

	mock.ExpectGet("dash:repos:ghost").RedisNil()
	_, err = store.Get(ctx, "repos:ghost")
	require.True(t, errors.Is(err, errors.ErrNotFound))

	mock.ExpectGet("dash:repos:broken").SetErr(context.DeadlineExceeded)
	_, err = store.Get(ctx, "repos:broken")
	require.Error(t, err)
	require.False(t, errors.Is(err, errors.ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestStorePut verifies values are written without expiry
func TestStorePut(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := redis.New(rdb, testPrefix)

	value := []byte(`<html></html>`)
	mock.ExpectSet("dash:dashboard:octocat", value, 0).SetVal("OK")
	require.NoError(t, store.Put(context.Background(), "dashboard:octocat", value))
	require.NoError(t, mock.ExpectationsWereMet())
}
