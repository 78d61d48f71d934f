package gateway

import (
	"sort"
	"strings"
)

// RoomKey derives the canonical room name for a username pair. The pair is
// sorted before joining, so both users always land in the same room no
// matter who initiates.
func RoomKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "&")
}
