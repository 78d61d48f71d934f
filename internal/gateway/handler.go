package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mckays/warroom/internal/catalog"
	"github.com/mckays/warroom/internal/models"
	"github.com/mckays/warroom/internal/registry"
	"github.com/rs/zerolog/log"
)

// TokenVerifier validates a connection-time credential.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// UserDirectory resolves identities and answers membership questions.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	IsTeammate(ctx context.Context, userID int64, candidate string) error
}

// ActionStarter runs the registry's start transition.
type ActionStarter interface {
	StartAction(ctx context.Context, username string, actionID int64) (*models.PendingAction, error)
}

// MessageStore persists message history.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg models.Message) error
}

// Handler authenticates client connections and routes their frames to the
// room router and the registry.
type Handler struct {
	manager  *ConnectionManager
	verifier TokenVerifier
	users    UserDirectory
	actions  ActionStarter
	messages MessageStore
}

func NewHandler(manager *ConnectionManager, verifier TokenVerifier, users UserDirectory, actions ActionStarter, messages MessageStore) *Handler {
	h := &Handler{
		manager:  manager,
		verifier: verifier,
		users:    users,
		actions:  actions,
		messages: messages,
	}
	manager.SetInboundHandler(h.handleFrame)
	return h
}

// HandleConnection upgrades the socket and authenticates it. Auth failures
// emit "Invalid token" on the socket and terminate it; no retry, no grace
// period.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ws, err := h.manager.Upgrade(w, r)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	userID, err := h.verifier.Verify(bearerToken(r))
	if err != nil {
		log.Error().Str("remote", r.RemoteAddr).Msg("user connected without valid token, disconnecting")
		rejectSocket(ws)
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		// Upstream store failure at the trust boundary reads as an auth
		// failure to the client.
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to resolve authenticated user")
		rejectSocket(ws)
		return
	}

	h.manager.Attach(ws, userID, user.Username)
}

// bearerToken extracts the credential from the query string or the
// Authorization header.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// rejectSocket emits the auth error event and closes the raw socket.
func rejectSocket(ws *websocket.Conn) {
	ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	ws.WriteJSON(ErrorEvent(ErrMsgInvalidToken))
	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ErrMsgInvalidToken))
	ws.Close()
}

func (h *Handler) handleFrame(conn *Connection, raw []byte) {
	req, err := ParseClientRequest(raw)
	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", conn.ID).
			Str("username", conn.Username).
			Msg("rejecting malformed client frame")
		h.manager.SendEvent(conn, ErrorEvent("Invalid request"))
		return
	}

	ctx := context.Background()
	switch {
	case req.StartAction != nil:
		h.handleStartAction(ctx, conn, req.StartAction)
	case req.Message != nil:
		h.handleMessage(ctx, conn, req.Message)
	case req.JoinRoom != nil:
		h.handleJoinRoom(ctx, conn, req.JoinRoom)
	}
}

// handleStartAction runs the registry transition. All rejections here are
// soft: the connection stays open and the client may retry.
func (h *Handler) handleStartAction(ctx context.Context, conn *Connection, req *StartActionRequest) {
	log.Info().
		Str("username", req.User).
		Int64("action_id", req.Action).
		Msg("action received")

	_, err := h.actions.StartAction(ctx, req.User, req.Action)
	switch {
	case err == nil:
	case errors.Is(err, catalog.ErrActionNotAllowed):
		h.manager.SendEvent(conn, ErrorEvent(ErrMsgInvalidAction))
	case errors.Is(err, registry.ErrActionInProgress):
		h.manager.SendEvent(conn, ErrorEvent(ErrMsgActionInProgress))
	default:
		log.Error().Err(err).Str("username", req.User).Msg("start action failed")
		h.manager.SendEvent(conn, ErrorEvent(ErrMsgInvalidAction))
	}
}

// handleMessage re-validates receiver membership on every message, then
// publishes to the pair room and records the message independent of
// delivery outcome. An invalid receiver is fatal for the connection.
func (h *Handler) handleMessage(ctx context.Context, conn *Connection, msg *models.Message) {
	if err := h.users.IsTeammate(ctx, conn.UserID, msg.Receiver); err != nil {
		log.Error().
			Int64("user_id", conn.UserID).
			Str("receiver", msg.Receiver).
			Msg("user attempted to send message to invalid receiver")
		h.manager.CloseWithError(conn, ErrMsgInvalidReceiver)
		return
	}

	h.manager.BroadcastToRoom(RoomKey(msg.Sender, msg.Receiver), MessageEvent(msg), conn)

	if err := h.messages.SaveMessage(ctx, *msg); err != nil {
		log.Error().Err(err).Str("sender", msg.Sender).Msg("failed to persist message")
	}
}

// handleJoinRoom subscribes the caller to the pair room after a membership
// check. An invalid receiver is fatal for the connection.
func (h *Handler) handleJoinRoom(ctx context.Context, conn *Connection, req *JoinRoomRequest) {
	if err := h.users.IsTeammate(ctx, conn.UserID, req[1]); err != nil {
		log.Error().
			Int64("user_id", conn.UserID).
			Str("receiver", req[1]).
			Msg("user attempted to join room with invalid receiver")
		h.manager.CloseWithError(conn, ErrMsgInvalidReceiver)
		return
	}

	h.manager.JoinRoom(conn, RoomKey(req[0], req[1]))
}
