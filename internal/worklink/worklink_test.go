package worklink

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/mckays/warroom/internal/models"
)

type fakeResolver struct {
	resolved map[uuid.UUID]*models.ResolvedAction
	calls    []uuid.UUID
}

func (r *fakeResolver) Resolve(ctx context.Context, id uuid.UUID, endState models.ActionEndState) (*models.ResolvedAction, error) {
	r.calls = append(r.calls, id)
	return r.resolved[id], nil
}

type countingBroadcaster struct {
	completions int
}

func (b *countingBroadcaster) BroadcastActionComplete() {
	b.completions++
}

func TestParseActionID(t *testing.T) {
	id := uuid.New()

	if got, err := parseActionID([]byte(id.String())); err != nil || got != id {
		t.Errorf("bare id: got %v, %v", got, err)
	}
	if got, err := parseActionID([]byte(`"` + id.String() + `"`)); err != nil || got != id {
		t.Errorf("quoted id: got %v, %v", got, err)
	}
	if _, err := parseActionID([]byte("not-a-uuid")); err == nil {
		t.Error("expected error for malformed id")
	}
}

func TestHandleActionComplete_BroadcastsOnResolution(t *testing.T) {
	id := uuid.New()
	resolver := &fakeResolver{resolved: map[uuid.UUID]*models.ResolvedAction{
		id: {User: "alice", EndState: models.ActionEndStateSuccess},
	}}
	broadcaster := &countingBroadcaster{}

	link := &Link{config: DefaultConfig()}
	link.Bind(resolver, broadcaster)

	link.handleActionComplete(context.Background(), []byte(id.String()))

	if len(resolver.calls) != 1 || resolver.calls[0] != id {
		t.Fatalf("expected one resolve call for %s, got %v", id, resolver.calls)
	}
	if broadcaster.completions != 1 {
		t.Errorf("expected one completion broadcast, got %d", broadcaster.completions)
	}
}

func TestHandleActionComplete_UnknownIDDoesNotBroadcast(t *testing.T) {
	resolver := &fakeResolver{resolved: map[uuid.UUID]*models.ResolvedAction{}}
	broadcaster := &countingBroadcaster{}

	link := &Link{config: DefaultConfig()}
	link.Bind(resolver, broadcaster)

	link.handleActionComplete(context.Background(), []byte(uuid.New().String()))

	if broadcaster.completions != 0 {
		t.Errorf("unknown id must not reach clients, got %d broadcasts", broadcaster.completions)
	}
}

func TestHandleActionComplete_MalformedSignalIgnored(t *testing.T) {
	resolver := &fakeResolver{}
	broadcaster := &countingBroadcaster{}

	link := &Link{config: DefaultConfig()}
	link.Bind(resolver, broadcaster)

	link.handleActionComplete(context.Background(), []byte("garbage"))

	if len(resolver.calls) != 0 || broadcaster.completions != 0 {
		t.Error("malformed signal must be absorbed without side effects")
	}
}
