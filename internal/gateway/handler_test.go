package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mckays/warroom/internal/catalog"
	"github.com/mckays/warroom/internal/models"
	"github.com/mckays/warroom/internal/registry"
	"github.com/mckays/warroom/internal/team"
)

type fakeDirectory struct {
	teammates map[string]bool
}

func (d *fakeDirectory) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return nil, fmt.Errorf("not used in this test")
}

func (d *fakeDirectory) IsTeammate(ctx context.Context, userID int64, candidate string) error {
	if !d.teammates[candidate] {
		return fmt.Errorf("user %s: %w", candidate, team.ErrInvalidReceiver)
	}
	return nil
}

type fakeStarter struct {
	err     error
	started []StartActionRequest
}

func (s *fakeStarter) StartAction(ctx context.Context, username string, actionID int64) (*models.PendingAction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.started = append(s.started, StartActionRequest{User: username, Action: actionID})
	return &models.PendingAction{User: username}, nil
}

type fakeStore struct {
	mu    sync.Mutex
	saved []models.Message
}

func (s *fakeStore) SaveMessage(ctx context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, msg)
	return nil
}

func newTestGateway(t *testing.T, dir UserDirectory, starter ActionStarter, store MessageStore) (*Handler, *ConnectionManager, context.CancelFunc) {
	t.Helper()
	cm := NewConnectionManager(DefaultConnectionConfig())
	h := NewHandler(cm, nil, dir, starter, store)

	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)
	return h, cm, cancel
}

// attachTestConn registers a connection without a real socket so frame
// handling can be exercised directly.
func attachTestConn(cm *ConnectionManager, userID int64, username string) *Connection {
	conn := &Connection{
		ID:       username + "-conn",
		UserID:   userID,
		Username: username,
		Send:     make(chan []byte, 16),
		Manager:  cm,
	}
	cm.mu.Lock()
	cm.connections[conn] = true
	cm.joinRoomLocked(conn, username)
	cm.mu.Unlock()
	return conn
}

func recvEvent(t *testing.T, conn *Connection) (ServerEvent, bool) {
	t.Helper()
	select {
	case data, ok := <-conn.Send:
		if !ok {
			return ServerEvent{}, false
		}
		var ev ServerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("malformed outbound frame: %v", err)
		}
		return ev, true
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound frame")
		return ServerEvent{}, false
	}
}

func TestHandleFrame_StartActionRejections(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"disallowed action", catalog.ErrActionNotAllowed, ErrMsgInvalidAction},
		{"duplicate pending action", registry.ErrActionInProgress, ErrMsgActionInProgress},
		{"upstream failure", fmt.Errorf("store down"), ErrMsgInvalidAction},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			starter := &fakeStarter{err: tc.err}
			h, cm, cancel := newTestGateway(t, &fakeDirectory{}, starter, &fakeStore{})
			defer cancel()

			conn := attachTestConn(cm, 1, "alice")
			h.handleFrame(conn, []byte(`{"event":"startAction","data":{"user":"alice","action":7}}`))

			ev, ok := recvEvent(t, conn)
			if !ok || ev.Event != EventError {
				t.Fatalf("expected error event, got %+v", ev)
			}
			if ev.Data != tc.wantMsg {
				t.Errorf("expected %q, got %v", tc.wantMsg, ev.Data)
			}

			// Soft rejection: the connection stays registered.
			cm.mu.RLock()
			registered := cm.connections[conn]
			cm.mu.RUnlock()
			if !registered {
				t.Error("soft rejection terminated the connection")
			}
		})
	}
}

func TestHandleFrame_JoinRoomInvalidReceiverIsFatal(t *testing.T) {
	dir := &fakeDirectory{teammates: map[string]bool{}}
	h, cm, cancel := newTestGateway(t, dir, &fakeStarter{}, &fakeStore{})
	defer cancel()

	conn := attachTestConn(cm, 2, "bob")
	h.handleFrame(conn, []byte(`{"event":"join-room","data":["bob","carol"]}`))

	ev, ok := recvEvent(t, conn)
	if !ok || ev.Data != ErrMsgInvalidReceiver {
		t.Fatalf("expected %q before disconnect, got %+v", ErrMsgInvalidReceiver, ev)
	}

	// Fatal rejection: unregistered and send channel closed.
	cm.mu.RLock()
	registered := cm.connections[conn]
	cm.mu.RUnlock()
	if registered {
		t.Error("connection still registered after invalid receiver")
	}
	if _, open := recvEvent(t, conn); open {
		t.Error("send channel left open after disconnect")
	}
}

func TestHandleFrame_MessageDeliveredToRoomExceptSender(t *testing.T) {
	dir := &fakeDirectory{teammates: map[string]bool{"carol": true}}
	store := &fakeStore{}
	h, cm, cancel := newTestGateway(t, dir, &fakeStarter{}, store)
	defer cancel()

	sender := attachTestConn(cm, 3, "bob")
	receiver := attachTestConn(cm, 4, "carol")
	cm.JoinRoom(sender, RoomKey("bob", "carol"))
	cm.JoinRoom(receiver, RoomKey("carol", "bob"))

	h.handleFrame(sender, []byte(`{"event":"message","data":{"message":"status?","date":"2026-03-14T12:00:00Z","sender":"bob","receiver":"carol"}}`))

	ev, ok := recvEvent(t, receiver)
	if !ok || ev.Event != EventMessage {
		t.Fatalf("receiver did not get the message event: %+v", ev)
	}

	select {
	case data := <-sender.Send:
		t.Errorf("sender received its own message: %s", data)
	case <-time.After(50 * time.Millisecond):
	}

	store.mu.Lock()
	saved := len(store.saved)
	store.mu.Unlock()
	if saved != 1 {
		t.Errorf("expected one persisted message, got %d", saved)
	}
}

func TestHandleFrame_MalformedFrameSoftRejected(t *testing.T) {
	h, cm, cancel := newTestGateway(t, &fakeDirectory{}, &fakeStarter{}, &fakeStore{})
	defer cancel()

	conn := attachTestConn(cm, 5, "dave")
	h.handleFrame(conn, []byte(`{"event":"startAction","data":"not an object"}`))

	ev, ok := recvEvent(t, conn)
	if !ok || ev.Event != EventError {
		t.Fatalf("expected error event, got %+v", ev)
	}

	cm.mu.RLock()
	registered := cm.connections[conn]
	cm.mu.RUnlock()
	if !registered {
		t.Error("malformed frame terminated the connection")
	}
}
