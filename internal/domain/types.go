package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Event struct {
	ID             int64           `json:"id"`
	Organizer      Identity        `json:"organizer"`
	Name           string          `json:"name"`
	OriginalPrice  decimal.Decimal `json:"original_price"`
	MaxResalePrice decimal.Decimal `json:"max_resale_price"`
	MaxTickets     uint32          `json:"max_tickets"`
	TicketsSold    uint32          `json:"tickets_sold"`
	SaleStart      time.Time       `json:"sale_start"`
	SaleEnd        time.Time       `json:"sale_end"`
	EventDate      time.Time       `json:"event_date"`
	Transferable   bool            `json:"transferable"`
	Refundable     bool            `json:"refundable"`
	IsActive       bool            `json:"is_active"`
	AllowedRegions []string        `json:"allowed_regions,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SaleOpen reports whether now falls inside the inclusive sale window.
func (e *Event) SaleOpen(now time.Time) bool {
	return !now.Before(e.SaleStart) && !now.After(e.SaleEnd)
}

type ResaleWindow struct {
	Enabled bool      `json:"enabled"`
	EndTime time.Time `json:"end_time"`
}

// Ticket is a minted seat. RedemptionSecretHash is a salted mint
// fingerprint kept for audit; redemption does not check it.
type Ticket struct {
	ID                   uuid.UUID       `json:"id"`
	EventID              int64           `json:"event_id"`
	OriginalBuyer        Identity        `json:"original_buyer"`
	PurchasePrice        decimal.Decimal `json:"purchase_price"`
	PurchaseTime         time.Time       `json:"purchase_time"`
	IsUsed               bool            `json:"is_used"`
	SeatInfo             string          `json:"seat_info"`
	TransferCount        uint8           `json:"transfer_count"`
	RedemptionSecretHash string          `json:"redemption_secret_hash"`
	ResaleWindow         ResaleWindow    `json:"resale_window"`
	Burned               bool            `json:"burned"`
}

type TransferRecord struct {
	From      Identity        `json:"from"`
	To        Identity        `json:"to"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

type UserProfile struct {
	Identity         Identity  `json:"identity"`
	IsVerified       bool      `json:"is_verified"`
	VerifiedAt       time.Time `json:"verified_at"`
	IsBanned         bool      `json:"is_banned"`
	BanReason        string    `json:"ban_reason,omitempty"`
	Reputation       uint32    `json:"reputation"`
	PurchaseCount    uint32    `json:"purchase_count"`
	TransferCount    uint32    `json:"transfer_count"`
	LastPurchaseTime time.Time `json:"last_purchase_time"`
	PurchaseLimit    uint32    `json:"purchase_limit"`
	Region           string    `json:"region,omitempty"`
	IsOrganizer      bool      `json:"is_organizer"`
}

type LotteryPhase string

const (
	LotteryCreated          LotteryPhase = "created"
	LotteryApplicationsOpen LotteryPhase = "applications_open"
	LotteryClosed           LotteryPhase = "closed"
	LotteryDrawn            LotteryPhase = "drawn"
)

type Lottery struct {
	ID               int64     `json:"id"`
	EventID          int64     `json:"event_id"`
	ApplicationStart time.Time `json:"application_start"`
	ApplicationEnd   time.Time `json:"application_end"`
	DrawTime         time.Time `json:"draw_time"`
	MaxWinners       uint32    `json:"max_winners"`
	IsDrawn          bool      `json:"is_drawn"`
	ApplicantCount   uint32    `json:"applicant_count"`
	WinnerCount      uint32    `json:"winner_count"`
}

// Phase derives the lottery state machine position at now.
func (l *Lottery) Phase(now time.Time) LotteryPhase {
	switch {
	case l.IsDrawn:
		return LotteryDrawn
	case now.Before(l.ApplicationStart):
		return LotteryCreated
	case !now.After(l.ApplicationEnd):
		return LotteryApplicationsOpen
	default:
		return LotteryClosed
	}
}

type Winner struct {
	Identity Identity  `json:"identity"`
	Claimed  bool      `json:"claimed"`
	TicketID uuid.UUID `json:"ticket_id,omitempty"`
}

type SystemState struct {
	Owner        Identity `json:"owner"`
	FeeRecipient Identity `json:"fee_recipient"`
	RefundFeeBps uint32   `json:"refund_fee_bps"`
	Paused       bool     `json:"paused"`
	DrawNonce    uint64   `json:"draw_nonce"`
}

type LedgerEntry struct {
	Account   Identity        `json:"account"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      string          `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
}
