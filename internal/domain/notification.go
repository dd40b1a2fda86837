package domain

import "time"

type NotificationType string

const (
	NotifyEventCreated             NotificationType = "EventCreated"
	NotifyEventDeactivated         NotificationType = "EventDeactivated"
	NotifyTicketMinted             NotificationType = "TicketMinted"
	NotifyTicketTransferred        NotificationType = "TicketTransferred"
	NotifyTicketUsed               NotificationType = "TicketUsed"
	NotifyTicketRefunded           NotificationType = "TicketRefunded"
	NotifyLotteryCreated           NotificationType = "LotteryCreated"
	NotifyLotteryEntered           NotificationType = "LotteryEntered"
	NotifyLotteryCompleted         NotificationType = "LotteryCompleted"
	NotifyUserBlacklisted          NotificationType = "UserBlacklisted"
	NotifyUserWhitelisted          NotificationType = "UserWhitelisted"
	NotifyRegionUpdated            NotificationType = "RegionUpdated"
	NotifyTimeLimitedResaleEnabled NotificationType = "TimeLimitedResaleEnabled"
	NotifyEmergencyWithdraw        NotificationType = "EmergencyWithdraw"
	NotifySystemPaused             NotificationType = "SystemPaused"
	NotifySystemUnpaused           NotificationType = "SystemUnpaused"
)

// Notification is the observable record of a committed operation. Attrs
// carries the post-state values of the operation.
type Notification struct {
	Type      NotificationType  `json:"type"`
	EventID   int64             `json:"event_id,omitempty"`
	TicketID  string            `json:"ticket_id,omitempty"`
	LotteryID int64             `json:"lottery_id,omitempty"`
	Subject   Identity          `json:"subject,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	At        time.Time         `json:"at"`
}
