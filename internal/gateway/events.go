package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/mckays/warroom/internal/models"
)

// Client-visible error strings. These are part of the wire contract.
const (
	ErrMsgInvalidToken     = "Invalid token"
	ErrMsgInvalidReceiver  = "Invalid receiver"
	ErrMsgInvalidAction    = "Invalid action"
	ErrMsgActionInProgress = "User already performing action"
)

// Inbound event names (client -> core).
const (
	EventStartAction = "startAction"
	EventMessage     = "message"
	EventJoinRoom    = "join-room"
)

// Outbound event names (core -> client).
const (
	EventError          = "error"
	EventActionComplete = "actionComplete"
)

// ClientEnvelope is the top-level shape of every inbound client frame.
type ClientEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServerEvent is the top-level shape of every outbound frame.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// StartActionRequest asks the registry to begin an action.
type StartActionRequest struct {
	User   string `json:"user"`
	Action int64  `json:"action"`
}

// JoinRoomRequest subscribes the caller to the room of a username pair.
type JoinRoomRequest [2]string

// ClientRequest is the tagged union of validated inbound payloads.
// Exactly one field is non-nil.
type ClientRequest struct {
	StartAction *StartActionRequest
	Message     *models.Message
	JoinRoom    *JoinRoomRequest
}

// ParseClientRequest validates a raw frame into a ClientRequest. Malformed
// or unknown frames are rejected uniformly before any handler logic runs.
func ParseClientRequest(raw []byte) (ClientRequest, error) {
	var env ClientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClientRequest{}, fmt.Errorf("malformed client frame: %w", err)
	}

	switch env.Event {
	case EventStartAction:
		var req StartActionRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return ClientRequest{}, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		if req.User == "" || req.Action == 0 {
			return ClientRequest{}, fmt.Errorf("%s payload missing user or action", env.Event)
		}
		return ClientRequest{StartAction: &req}, nil

	case EventMessage:
		var msg models.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return ClientRequest{}, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		if msg.Sender == "" || msg.Receiver == "" {
			return ClientRequest{}, fmt.Errorf("%s payload missing sender or receiver", env.Event)
		}
		return ClientRequest{Message: &msg}, nil

	case EventJoinRoom:
		var users JoinRoomRequest
		if err := json.Unmarshal(env.Data, &users); err != nil {
			return ClientRequest{}, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		if users[0] == "" || users[1] == "" {
			return ClientRequest{}, fmt.Errorf("%s payload requires two usernames", env.Event)
		}
		return ClientRequest{JoinRoom: &users}, nil

	default:
		return ClientRequest{}, fmt.Errorf("unknown client event %q", env.Event)
	}
}

// ErrorEvent builds an outbound error frame.
func ErrorEvent(msg string) ServerEvent {
	return ServerEvent{Event: EventError, Data: msg}
}

// MessageEvent builds an outbound message frame.
func MessageEvent(msg *models.Message) ServerEvent {
	return ServerEvent{Event: EventMessage, Data: msg}
}

// ActionCompleteEvent builds the zero-payload completion frame. Clients
// re-poll their own state; the frame deliberately does not say which
// action completed.
func ActionCompleteEvent() ServerEvent {
	return ServerEvent{Event: EventActionComplete}
}
