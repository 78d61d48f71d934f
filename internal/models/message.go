package models

import "time"

// Message is a team-scoped direct message between two users. Persisted
// for history; the core's responsibility is validated, room-scoped
// delivery.
type Message struct {
	Message  string    `json:"message"`
	Date     time.Time `json:"date"`
	Sender   string    `json:"sender"`
	Receiver string    `json:"receiver"`
}
