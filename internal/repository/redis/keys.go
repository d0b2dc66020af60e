package redis

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "salonq:v1"

func KeySalon(salonID uuid.UUID) string {
	return fmt.Sprintf("%s:salon:%s", ns, salonID)
}

func KeySalonListing(onlyOnline bool, limit, offset int) string {
	return fmt.Sprintf("%s:salons:list:%t:%d:%d", ns, onlyOnline, limit, offset)
}

// patternSalonListing matches every cached page of the salon listing.
func patternSalonListing() string {
	return ns + ":salons:list:*"
}

// PrefixRateLimit namespaces the counters of one rate-limited scope.
func PrefixRateLimit(scope string) string {
	return fmt.Sprintf("%s:rl:%s", ns, scope)
}

func KeyIdemJoin(userID uuid.UUID, idemKey string) string {
	return fmt.Sprintf("%s:idem:join:%s:%s", ns, userID, idemKey)
}

func ChannelRooms() string {
	return ns + ":rooms"
}
