package models

// TeamRole defines which seat a user holds on their team.
type TeamRole string

const (
	TeamRoleLeader       TeamRole = "leader"
	TeamRoleIntelligence TeamRole = "intelligence"
	TeamRoleMilitary     TeamRole = "military"
	TeamRoleDiplomat     TeamRole = "diplomat"
	TeamRoleMedia        TeamRole = "media"
)

// User represents a player. Owned by the external store; the core treats
// it as read-only reference data fetched per request.
type User struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	TeamRole TeamRole `json:"teamRole"`
	Team     string   `json:"team"`
}
