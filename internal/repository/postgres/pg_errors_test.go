package postgresrepo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/kirinyoku/fairtix/internal/repository"
)

func pgErr(code string) error {
	return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code})
}

func TestTranslateDBErr(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, repository.ErrNotFound},
		{"unique", pgErr(codeUniqueViolation), repository.ErrConflict},
		{"check", pgErr(codeCheckViolation), repository.ErrConflict},
		{"foreign key", pgErr(codeForeignKeyViolation), repository.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, translateDBErr(tc.in), tc.want)
		})
	}

	other := errors.New("boom")
	assert.Same(t, other, translateDBErr(other))
	assert.NoError(t, translateDBErr(nil))
}

func TestRetryClassification(t *testing.T) {
	assert.True(t, IsRetryable(pgErr(codeSerializationFailure)))
	assert.True(t, IsRetryable(pgErr(codeDeadlockDetected)))
	assert.False(t, IsRetryable(pgErr(codeUniqueViolation)))
	assert.False(t, IsRetryable(errors.New("plain")))

	assert.True(t, isLockTimeout(pgErr(codeLockNotAvailable)))
	assert.False(t, isLockTimeout(pgErr(codeSerializationFailure)))
}

func TestWrapDBErr_KeepsRetryableCause(t *testing.T) {
	err := wrapDBErr("op", pgErr(codeSerializationFailure))
	assert.True(t, IsRetryable(err))

	err = wrapDBErr("op", pgx.ErrNoRows)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Contains(t, err.Error(), "op:")
}
