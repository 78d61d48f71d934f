package gateway

import "testing"

func TestRoomKey_Commutative(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"carol", "carol"},
		{"z", "a"},
	}

	for _, pair := range pairs {
		if got, want := RoomKey(pair[0], pair[1]), RoomKey(pair[1], pair[0]); got != want {
			t.Errorf("RoomKey(%q, %q) = %q, but reversed = %q", pair[0], pair[1], got, want)
		}
	}
}

func TestRoomKey_SortedAmpersandFormat(t *testing.T) {
	if got := RoomKey("zoe", "alice"); got != "alice&zoe" {
		t.Errorf("expected alice&zoe, got %q", got)
	}
	if got := RoomKey("user1", "user2"); got != "user1&user2" {
		t.Errorf("expected user1&user2, got %q", got)
	}
}
