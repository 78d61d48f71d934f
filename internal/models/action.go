package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionType defines whether an action targets the enemy or your own side.
type ActionType string

const (
	ActionTypeOffense ActionType = "offense"
	ActionTypeDefense ActionType = "defense"
)

// ActionEndState defines how a resolved action ended.
type ActionEndState string

const (
	ActionEndStateSuccess ActionEndState = "success"
	ActionEndStateFail    ActionEndState = "fail"
	ActionEndStateStopped ActionEndState = "stopped"
)

// ActionDefinition is an immutable catalog entry describing an action a
// role may perform.
type ActionDefinition struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	DurationMinutes int        `json:"duration"`
	Description     string     `json:"description"`
	TeamRole        TeamRole   `json:"teamRole"`
	Type            ActionType `json:"type"`
}

// Duration returns the catalog duration as a time.Duration.
func (a ActionDefinition) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

// PendingAction is a submitted, in-flight action instance bound to one
// user. The catalog entry is embedded by value at submission time, not
// held as a live reference. At most one exists per user at any time.
type PendingAction struct {
	ID       uuid.UUID        `json:"id"`
	User     string           `json:"user"`
	Action   ActionDefinition `json:"action"`
	Deadline time.Time        `json:"date"`
}

// ResolvedAction is the historical record created once a pending action's
// outcome is reported.
type ResolvedAction struct {
	ID         uuid.UUID        `json:"id"`
	User       string           `json:"user"`
	Action     ActionDefinition `json:"action"`
	ResolvedAt time.Time        `json:"date"`
	EndState   ActionEndState   `json:"endState"`
}
