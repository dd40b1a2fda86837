// Package validation holds stateless input predicates shared by the services.
// Each Require* helper returns a classified domain error or nil.
package validation

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirinyoku/fairtix/internal/domain"
)

const (
	MaxTicketsPerEvent = 1_000_000
	MaxWinners         = 100_000
	MaxPurchaseLimit   = 10
	MaxRefundFeeBps    = 1000
	MaxResaleMarkupBps = 1000
	MaxNameLength      = 200
)

var regionRe = regexp.MustCompile(`^[A-Z]{2}$`)

func RequireIdentity(id domain.Identity) error {
	if id.IsZero() {
		return domain.ErrZeroIdentity
	}
	if _, err := domain.ParseIdentity(string(id)); err != nil {
		return domain.ErrZeroIdentity
	}
	return nil
}

func RequirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.ErrInvalidPrice
	}
	return nil
}

func RequireName(name string) error {
	if name == "" || len(name) > MaxNameLength {
		return domain.ErrInvalidName
	}
	return nil
}

// RequireCount checks lo <= n <= hi.
func RequireCount(n, lo, hi uint64) error {
	if n < lo || n > hi {
		return domain.ErrInvalidCount
	}
	return nil
}

// RequireSchedule checks saleStart < saleEnd <= eventDate.
func RequireSchedule(saleStart, saleEnd, eventDate time.Time) error {
	if !saleStart.Before(saleEnd) || saleEnd.After(eventDate) {
		return domain.ErrInvalidSchedule
	}
	return nil
}

// RequireWindow checks start < end <= last.
func RequireWindow(start, end, last time.Time) error {
	if !start.Before(end) || end.After(last) {
		return domain.ErrInvalidWindow
	}
	return nil
}

// MaxResaleFor returns original * (1 + MaxResaleMarkupBps/10000).
func MaxResaleFor(original decimal.Decimal) decimal.Decimal {
	return original.Add(Bps(original, MaxResaleMarkupBps))
}

// RequirePriceBound checks original <= maxResale <= original*1.10.
func RequirePriceBound(original, maxResale decimal.Decimal) error {
	if err := RequirePositive(original); err != nil {
		return err
	}
	if maxResale.LessThan(original) || maxResale.GreaterThan(MaxResaleFor(original)) {
		return domain.ErrInvalidPriceBound
	}
	return nil
}

func RequireRegion(region string) error {
	if region != "" && !regionRe.MatchString(region) {
		return domain.ErrInvalidRegion
	}
	return nil
}

func RequireRegions(regions []string) error {
	for _, r := range regions {
		if r == "" {
			return domain.ErrInvalidRegion
		}
		if err := RequireRegion(r); err != nil {
			return err
		}
	}
	return nil
}

// Bps returns amount * bps / 10000.
func Bps(amount decimal.Decimal, bps uint32) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(bps))).Div(decimal.NewFromInt(10_000))
}

// SubSat subtracts b from a, saturating at zero.
func SubSat(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}

// AddSat adds b to a, saturating at limit.
func AddSat(a, b, limit uint32) uint32 {
	if a >= limit || b >= limit-a {
		return limit
	}
	return a + b
}
