package redis

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "tixengine:v1"

func KeyEvent(eventID uuid.UUID) string {
	return fmt.Sprintf("%s:event:%s", ns, eventID)
}

func KeyEventTiers(eventID uuid.UUID) string {
	return fmt.Sprintf("%s:event:%s:tiers", ns, eventID)
}

func KeyTierAvailability(tierID uuid.UUID) string {
	return fmt.Sprintf("%s:tier:%s:availability", ns, tierID)
}

func KeyIdemOrder(buyerID, idemKey string) string {
	return fmt.Sprintf("%s:idem:orders:%s:%s", ns, buyerID, idemKey)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyLeader(name string) string {
	return fmt.Sprintf("%s:leader:%s", ns, name)
}

func ChannelTierAvailability(tierID uuid.UUID) string {
	return fmt.Sprintf("%s:tier:%s:changed", ns, tierID)
}
