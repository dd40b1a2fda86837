package redisrepo

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const idemKey = "fairtix:v1:idem:purchase:k1"

func TestIdempotencyStore_Lifecycle(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewIdempotencyStore(db, time.Hour)
	ctx := context.Background()

	mock.ExpectGet(idemKey).RedisNil()
	mock.ExpectSetNX(idemKey, "LOCK", time.Minute).SetVal(true)
	mock.ExpectSet(idemKey, `RES:201:{"ticket_id":"x"}`, time.Hour).SetVal("OK")
	mock.ExpectGet(idemKey).SetVal(`RES:201:{"ticket_id":"x"}`)

	c, err := s.Claim(ctx, idemKey, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, c.State)

	require.NoError(t, s.Complete(ctx, idemKey, 201, []byte(`{"ticket_id":"x"}`)))

	c, err = s.Claim(ctx, idemKey, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ClaimReplay, c.State)
	assert.Equal(t, 201, c.Status)
	assert.JSONEq(t, `{"ticket_id":"x"}`, string(c.Body))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_Busy(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewIdempotencyStore(db, time.Hour)
	ctx := context.Background()

	mock.ExpectGet(idemKey).SetVal("LOCK")
	mock.ExpectSetNX(idemKey, "LOCK", time.Minute).SetVal(false)
	mock.ExpectGet(idemKey).SetVal("LOCK")
	mock.ExpectDel(idemKey).SetVal(1)

	c, err := s.Claim(ctx, idemKey, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ClaimBusy, c.State)

	require.NoError(t, s.Abandon(ctx, idemKey))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_LostRaceReplays(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewIdempotencyStore(db, time.Hour)

	mock.ExpectGet(idemKey).RedisNil()
	mock.ExpectSetNX(idemKey, "LOCK", time.Minute).SetVal(false)
	mock.ExpectGet(idemKey).SetVal(`RES:409:{"error":"sold out"}`)

	c, err := s.Claim(context.Background(), idemKey, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ClaimReplay, c.State)
	assert.Equal(t, 409, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_Malformed(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewIdempotencyStore(db, time.Hour)

	mock.ExpectGet(idemKey).SetVal("RES:no-status")

	_, err := s.Claim(context.Background(), idemKey, time.Minute)
	assert.Error(t, err)
}

func TestIdempotencyStore_NilGrantsEverything(t *testing.T) {
	var s *IdempotencyStore
	ctx := context.Background()

	c, err := s.Claim(ctx, idemKey, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, c.State)
	assert.NoError(t, s.Complete(ctx, idemKey, 201, nil))
	assert.NoError(t, s.Abandon(ctx, idemKey))
}
