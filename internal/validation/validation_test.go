package validation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kirinyoku/fairtix/internal/domain"
)

func TestRequireIdentity(t *testing.T) {
	assert.ErrorIs(t, RequireIdentity(""), domain.ErrZeroIdentity)
	assert.ErrorIs(t, RequireIdentity(domain.ZeroIdentity), domain.ErrZeroIdentity)
	assert.ErrorIs(t, RequireIdentity("0x1234"), domain.ErrZeroIdentity)
	assert.NoError(t, RequireIdentity("0x00000000000000000000000000000000000000aa"))
}

func TestRequireSchedule(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name              string
		start, end, event time.Time
		wantErr           bool
	}{
		{"valid", now, now.Add(time.Hour), now.Add(2 * time.Hour), false},
		{"end equals event", now, now.Add(time.Hour), now.Add(time.Hour), false},
		{"start equals end", now, now, now.Add(time.Hour), true},
		{"end after event", now, now.Add(3 * time.Hour), now.Add(2 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireSchedule(tt.start, tt.end, tt.event)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequirePriceBound(t *testing.T) {
	p := decimal.NewFromInt(100)

	assert.NoError(t, RequirePriceBound(p, decimal.NewFromInt(100)))
	assert.NoError(t, RequirePriceBound(p, decimal.NewFromInt(110)))
	assert.ErrorIs(t, RequirePriceBound(p, decimal.NewFromInt(99)), domain.ErrInvalidPriceBound)
	assert.ErrorIs(t, RequirePriceBound(p, decimal.RequireFromString("110.01")), domain.ErrInvalidPriceBound)
	assert.ErrorIs(t, RequirePriceBound(decimal.Zero, decimal.Zero), domain.ErrInvalidPrice)
}

func TestBps(t *testing.T) {
	fee := Bps(decimal.NewFromInt(105), 250)
	assert.True(t, fee.Equal(decimal.RequireFromString("2.625")), fee.String())
}

func TestSaturatingArithmetic(t *testing.T) {
	assert.Equal(t, uint32(0), SubSat(1, 5))
	assert.Equal(t, uint32(3), SubSat(5, 2))
	assert.Equal(t, uint32(10), AddSat(8, 5, 10))
	assert.Equal(t, uint32(7), AddSat(2, 5, 10))
	assert.Equal(t, uint32(10), AddSat(10, 0, 10))
}

func TestRequireRegions(t *testing.T) {
	assert.NoError(t, RequireRegions(nil))
	assert.NoError(t, RequireRegions([]string{"US", "DE"}))
	assert.ErrorIs(t, RequireRegions([]string{"usa"}), domain.ErrInvalidRegion)
	assert.ErrorIs(t, RequireRegions([]string{""}), domain.ErrInvalidRegion)
}
