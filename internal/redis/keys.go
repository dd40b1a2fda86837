package redisx

import "fmt"

const ns = "fairtix:v1"

func KeyEventSummary(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:summary", ns, eventID)
}

func KeyLotterySummary(lotteryID int64) string {
	return fmt.Sprintf("%s:lottery:%d:summary", ns, lotteryID)
}

func KeyRateLimit(scope string) string {
	return fmt.Sprintf("%s:rl:%s", ns, scope)
}

func KeyIdempotency(scope, idemKey string) string {
	return fmt.Sprintf("%s:idem:%s:%s", ns, scope, idemKey)
}

func ChannelNotifications() string {
	return ns + ":notifications"
}
