package domain

import "errors"

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindPolicy
	KindAuthorization
	KindReplay
	KindPaused
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindPolicy:
		return "policy_violation"
	case KindAuthorization:
		return "authorization_error"
	case KindReplay:
		return "replay_error"
	case KindPaused:
		return "system_paused"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a classified failure of a single operation. A kind sentinel
// (Code == "") matches every Error of the same kind under errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Code == "" {
			return e.Kind.String()
		}
		return e.Code
	}
	return ""
}

// Kind sentinels.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrPolicyViolation = &Error{Kind: KindPolicy}
	ErrAuthorization   = &Error{Kind: KindAuthorization}
	ErrReplay          = &Error{Kind: KindReplay}
	ErrSystemPaused    = &Error{Kind: KindPaused, Code: "system_paused", Message: "system is paused, retry later"}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
)

// Validation errors.
var (
	ErrZeroIdentity       = newErr(KindValidation, "zero_identity", "identity must be a non-zero address")
	ErrInvalidSchedule    = newErr(KindValidation, "invalid_schedule", "sale window must satisfy saleStart < saleEnd <= eventDate")
	ErrInvalidPriceBound  = newErr(KindValidation, "invalid_price_bound", "max resale price must be within [originalPrice, originalPrice*1.10]")
	ErrInvalidPrice       = newErr(KindValidation, "invalid_price", "price must be positive")
	ErrInvalidCount       = newErr(KindValidation, "invalid_count", "count is out of bounds")
	ErrInvalidName        = newErr(KindValidation, "invalid_name", "name must not be empty")
	ErrInvalidSeat        = newErr(KindValidation, "invalid_seat", "seat label must be at most 64 bytes")
	ErrInvalidDuration    = newErr(KindValidation, "invalid_duration", "duration is out of bounds")
	ErrInvalidWindow      = newErr(KindValidation, "invalid_window", "application window must satisfy start < end <= draw time")
	ErrEmptySecret        = newErr(KindValidation, "empty_secret", "redemption secret must not be empty")
	ErrSelfTransfer       = newErr(KindValidation, "self_transfer", "cannot transfer a ticket to its holder")
	ErrInvalidFeeRate     = newErr(KindValidation, "invalid_fee_rate", "refund fee rate must not exceed 10%")
	ErrInvalidRegion      = newErr(KindValidation, "invalid_region", "region code is malformed")
	ErrIncorrectPayment   = newErr(KindValidation, "incorrect_payment", "paid amount does not match the price")
	ErrLotteryAfterSale   = newErr(KindValidation, "lottery_after_sale", "application window must close before the sale opens")
	ErrWindowPastEvent    = newErr(KindValidation, "window_past_event", "resale window must end before the event")
	ErrInvalidPenaltySize = newErr(KindValidation, "invalid_penalty", "penalty must be positive")
)

// Policy violations.
var (
	ErrEventInactive           = newErr(KindPolicy, "event_inactive", "event is not active")
	ErrSaleClosed              = newErr(KindPolicy, "sale_closed", "outside the sale window")
	ErrSoldOut                 = newErr(KindPolicy, "sold_out", "event is sold out")
	ErrPurchaseLimit           = newErr(KindPolicy, "purchase_limit", "per-user purchase limit reached")
	ErrRegionNotAllowed        = newErr(KindPolicy, "region_not_allowed", "region is not allowed for this event")
	ErrLowReputation           = newErr(KindPolicy, "low_reputation", "reputation is below the participation threshold")
	ErrNotTransferable         = newErr(KindPolicy, "not_transferable", "event tickets are not transferable")
	ErrEventPassed             = newErr(KindPolicy, "event_passed", "event has already taken place")
	ErrCooldownNotMet          = newErr(KindPolicy, "cooldown_not_met", "transfer cooldown has not elapsed")
	ErrPriceCapExceeded        = newErr(KindPolicy, "price_cap_exceeded", "price exceeds the maximum resale price")
	ErrTransferLimit           = newErr(KindPolicy, "transfer_limit", "ticket reached the maximum transfer count")
	ErrOutsideResaleWindow     = newErr(KindPolicy, "outside_resale_window", "time-limited resale window has closed")
	ErrResaleMarkup            = newErr(KindPolicy, "resale_markup", "secondary sellers cannot exceed the last purchase price")
	ErrOutsideRedemptionWindow = newErr(KindPolicy, "outside_redemption_window", "outside the redemption window")
	ErrNotRefundable           = newErr(KindPolicy, "not_refundable", "event tickets are not refundable")
	ErrRefundDeadlinePassed    = newErr(KindPolicy, "refund_deadline_passed", "refund deadline has passed")
	ErrApplicationsClosed      = newErr(KindPolicy, "applications_closed", "outside the application window")
	ErrLotteryExists           = newErr(KindPolicy, "lottery_exists", "event already has an active lottery")
	ErrDrawTooEarly            = newErr(KindPolicy, "draw_too_early", "draw time has not been reached")
	ErrNoApplicants            = newErr(KindPolicy, "no_applicants", "lottery has no applicants")
	ErrNotDrawn                = newErr(KindPolicy, "not_drawn", "lottery has not been drawn")
	ErrAlreadyDrawn            = newErr(KindPolicy, "already_drawn", "lottery has already been drawn")
	ErrRateLimited             = newErr(KindPolicy, "rate_limited", "too many requests, retry later")
	ErrNotPaused               = newErr(KindPolicy, "not_paused", "emergency withdrawal requires the system to be paused")
	ErrInsufficientFunds       = newErr(KindPolicy, "insufficient_funds", "insufficient funds")
	ErrAlreadyUsed             = newErr(KindPolicy, "already_used", "ticket has already been used")
)

// Authorization errors.
var (
	ErrNotVerified      = newErr(KindAuthorization, "not_verified", "identity is not verified")
	ErrBanned           = newErr(KindAuthorization, "banned", "identity is banned")
	ErrNotOrganizer     = newErr(KindAuthorization, "not_organizer", "caller is not an organizer")
	ErrNotAdmin         = newErr(KindAuthorization, "not_admin", "caller is not the administrator")
	ErrNotCurrentHolder = newErr(KindAuthorization, "not_current_holder", "caller does not hold the ticket")
	ErrInvalidSignature = newErr(KindAuthorization, "invalid_signature", "signature is invalid")
	ErrSignerNotHolder  = newErr(KindAuthorization, "signer_not_holder", "signature was not produced by the current holder")
	ErrNotWinner        = newErr(KindAuthorization, "not_winner", "identity did not win the lottery")
)

// Replay errors.
var (
	ErrSecretReplay   = newErr(KindReplay, "secret_replay", "redemption secret was already used")
	ErrAlreadyApplied = newErr(KindReplay, "already_applied", "identity already applied to this lottery")
	ErrAlreadyClaimed = newErr(KindReplay, "already_claimed", "winner slot already claimed")
)

// Not found.
var (
	ErrEventNotFound   = newErr(KindNotFound, "event_not_found", "event not found")
	ErrTicketNotFound  = newErr(KindNotFound, "ticket_not_found", "ticket not found")
	ErrLotteryNotFound = newErr(KindNotFound, "lottery_not_found", "lottery not found")
	ErrUserNotFound    = newErr(KindNotFound, "user_not_found", "user not found")
)

// Conflict.
var (
	ErrBusy          = newErr(KindConflict, "busy", "resource is busy, retry later")
	ErrReentrantCall = newErr(KindConflict, "reentrant_call", "operation re-entered an open transaction")
)
