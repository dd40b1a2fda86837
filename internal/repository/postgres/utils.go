package postgresrepo

import (
	"fmt"
	"time"
)

// epoch stands in for "never" in NOT NULL timestamp columns.
var epoch = time.Unix(0, 0).UTC()

// wrapDBErr maps common DB errors to repository-level errors and wraps them with
// the provided operation name. Retryable errors keep their pgconn cause so
// RunTx can detect them.
func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}

	if IsRetryable(err) || isLockTimeout(err) {
		return fmt.Errorf("%s:%w", op, err)
	}

	return fmt.Errorf("%s:%w", op, translateDBErr(err))
}

func toUint32(v int64) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}

func toEpoch(t time.Time) time.Time {
	if t.IsZero() {
		return epoch
	}
	return t
}

func fromEpoch(t time.Time) time.Time {
	if t.Equal(epoch) {
		return time.Time{}
	}
	return utc(t)
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
