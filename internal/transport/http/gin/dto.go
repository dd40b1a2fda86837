package httpgin

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirinyoku/fairtix/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type CreateEventRequest struct {
	Name           string          `json:"name" binding:"required"`
	OriginalPrice  decimal.Decimal `json:"original_price"`
	MaxResalePrice decimal.Decimal `json:"max_resale_price"`
	MaxTickets     uint32          `json:"max_tickets" binding:"required,gt=0"`
	SaleStart      string          `json:"sale_start" binding:"required"`
	SaleEnd        string          `json:"sale_end" binding:"required"`
	EventDate      string          `json:"event_date" binding:"required"`
	Transferable   bool            `json:"transferable"`
	Refundable     bool            `json:"refundable"`
	AllowedRegions []string        `json:"allowed_regions"`
}

type CreateEventResponse struct {
	EventID int64 `json:"event_id"`
}

type SetRegionsRequest struct {
	Regions []string `json:"regions"`
}

type PurchaseRequest struct {
	SeatInfo string          `json:"seat_info"`
	Paid     decimal.Decimal `json:"paid"`
}

type TicketResponse struct {
	TicketID string `json:"ticket_id"`
}

type ResellRequest struct {
	To    string          `json:"to" binding:"required"`
	Price decimal.Decimal `json:"price"`
	Paid  decimal.Decimal `json:"paid"`
}

type ResaleWindowRequest struct {
	DurationSec int64 `json:"duration_sec" binding:"required,gt=0"`
}

type ResaleWindowResponse struct {
	EndTime time.Time `json:"end_time"`
}

// RedeemRequest carries the redemption secret and the holder's signature
// envelope (public key followed by signature), both hex encoded.
type RedeemRequest struct {
	Secret    string `json:"secret" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type CreateLotteryRequest struct {
	EventID          int64  `json:"event_id" binding:"required"`
	ApplicationStart string `json:"application_start" binding:"required"`
	ApplicationEnd   string `json:"application_end" binding:"required"`
	DrawTime         string `json:"draw_time" binding:"required"`
	MaxWinners       uint32 `json:"max_winners" binding:"required,gt=0"`
}

type CreateLotteryResponse struct {
	LotteryID int64 `json:"lottery_id"`
}

type DrawResponse struct {
	Winners []domain.Identity `json:"winners"`
}

type ClaimRequest struct {
	SeatInfo string          `json:"seat_info"`
	Paid     decimal.Decimal `json:"paid"`
}

type BalanceResponse struct {
	Account domain.Identity `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

type TicketsResponse struct {
	Holder  domain.Identity `json:"holder"`
	Tickets []string        `json:"tickets"`
}

type BanRequest struct {
	Reason string `json:"reason"`
}

type PurchaseLimitRequest struct {
	Limit uint32 `json:"limit" binding:"required,gt=0"`
}

type RegionRequest struct {
	Region string `json:"region" binding:"required"`
}

type PenaltyRequest struct {
	Points uint32 `json:"points" binding:"required,gt=0"`
	Reason string `json:"reason"`
}

type FeeRecipientRequest struct {
	Recipient string `json:"recipient" binding:"required"`
}

type RefundFeeRequest struct {
	Bps uint32 `json:"bps"`
}

type WithdrawRequest struct {
	To     string          `json:"to" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type EmergencyWithdrawRequest struct {
	To string `json:"to" binding:"required"`
}

type EmergencyWithdrawResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
