package redisrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisx "github.com/kirinyoku/fairtix/internal/redis"
)

type summary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestGetOrSetJSON_MissLoadsAndStores(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)
	key := redisx.KeyEventSummary(1)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, `{"id":1,"name":"Gala"}`, time.Minute).SetVal("OK")

	calls := 0
	got, err := GetOrSetJSON(context.Background(), c, key, time.Minute, func(context.Context) (summary, error) {
		calls++
		return summary{ID: 1, Name: "Gala"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, summary{ID: 1, Name: "Gala"}, got)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_HitSkipsLoader(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)
	key := redisx.KeyEventSummary(2)

	mock.ExpectGet(key).SetVal(`{"id":2,"name":"Recital"}`)

	got, err := GetOrSetJSON(context.Background(), c, key, time.Minute, func(context.Context) (summary, error) {
		t.Fatal("loader must not run on a hit")
		return summary{}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Recital", got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_LoaderErrorIsNotCached(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)
	key := redisx.KeyEventSummary(3)
	notFound := errors.New("not found")

	mock.ExpectGet(key).RedisNil()
	mock.ExpectGet(key).RedisNil()

	_, err := GetOrSetJSON(context.Background(), c, key, time.Minute, func(context.Context) (summary, error) {
		return summary{}, notFound
	})

	require.ErrorIs(t, err, notFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_RedisDownStillLoads(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)
	key := redisx.KeyEventSummary(5)

	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, `{"id":5,"name":"Opera"}`, time.Minute).SetErr(errors.New("connection refused"))

	got, err := GetOrSetJSON(context.Background(), c, key, time.Minute, func(context.Context) (summary, error) {
		return summary{ID: 5, Name: "Opera"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Opera", got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_CorruptEntryReloads(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)
	key := redisx.KeyEventSummary(6)

	mock.ExpectGet(key).SetVal(`{"id":`)
	mock.ExpectGet(key).SetVal(`{"id":`)
	mock.ExpectSet(key, `{"id":6,"name":"Ballet"}`, time.Minute).SetVal("OK")

	got, err := GetOrSetJSON(context.Background(), c, key, time.Minute, func(context.Context) (summary, error) {
		return summary{ID: 6, Name: "Ballet"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, int64(6), got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_NilFallsThrough(t *testing.T) {
	var c *Cache

	got, err := GetOrSetJSON(context.Background(), c, "k", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.NoError(t, c.InvalidateEvent(context.Background(), 1))
}

func TestCache_InvalidateReportsFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	mock.ExpectDel(redisx.KeyEventSummary(1)).SetErr(errors.New("timeout"))

	assert.Error(t, c.InvalidateEvent(context.Background(), 1))
}

func TestCache_InvalidateEvent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	mock.ExpectDel(redisx.KeyEventSummary(9)).SetVal(1)
	mock.ExpectDel(redisx.KeyLotterySummary(4)).SetVal(0)

	require.NoError(t, c.InvalidateEvent(context.Background(), 9))
	require.NoError(t, c.InvalidateLottery(context.Background(), 4))
	assert.NoError(t, mock.ExpectationsWereMet())
}
