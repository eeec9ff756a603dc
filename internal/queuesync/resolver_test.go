package queuesync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/johnpc/jpc-homie/pkg/homie"
)

// fakePlayers is a canned ports.PlayerSource.
type fakePlayers struct {
	queue homie.ActiveQueue
	found bool
	err   error
	calls int
}

func (f *fakePlayers) ActiveQueue(_ context.Context, _ string) (homie.ActiveQueue, bool, error) {
	f.calls++
	return f.queue, f.found, f.err
}

func activeQueueFixture() homie.ActiveQueue {
	return homie.ActiveQueue{
		QueueID:      "q-sonos",
		CurrentIndex: 1,
		Items:        12,
		Current:      &homie.QueueItem{Name: "Current Song", Artist: "Artist A"},
		Next:         &homie.QueueItem{Name: "Next Song", Artist: "Artist B"},
	}
}

func itemsBackend(t *testing.T, items []map[string]any, total int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var env CommandEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if env.Command != "player_queues/items" {
			t.Errorf("command = %q", env.Command)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message_id": env.MessageID,
			"result":     map[string]any{"items": items, "total": total},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func fullItemsFixture() []map[string]any {
	return []map[string]any{
		{"queue_item_id": "item-a", "name": "A", "duration": 180.0},
		{"queue_item_id": "item-b", "name": "B", "media_item": map[string]any{
			"artists": []map[string]any{{"name": "Artist B"}},
			"album":   map[string]any{"name": "Album B"},
			"image":   map[string]any{"path": "/img/b.jpg"},
		}},
		{"queue_item_id": "item-c", "name": "C"},
		{"queue_item_id": "item-d", "name": "D"},
	}
}

func newResolver(t *testing.T, players *fakePlayers, serviceURL string) Resolver {
	t.Helper()
	return Resolver{
		Log:     zap.NewNop(),
		Players: players,
		Queue:   newTestClient(t, serviceURL, ""),
	}
}

func TestResolveHandle(t *testing.T) {
	players := &fakePlayers{queue: activeQueueFixture(), found: true}
	r := newResolver(t, players, "http://unused.test")

	h, err := r.ResolveHandle(context.Background(), "media_player.living_room_sonos")
	if err != nil {
		t.Fatalf("resolve handle: %v", err)
	}
	if h.QueueID != "q-sonos" || h.PlayerID != "media_player.living_room_sonos" {
		t.Fatalf("handle = %+v", h)
	}
}

func TestResolveHandleNotFound(t *testing.T) {
	players := &fakePlayers{found: false}
	r := newResolver(t, players, "http://unused.test")

	_, err := r.ResolveHandle(context.Background(), "media_player.bedroom")
	if !errors.Is(err, ErrNoActiveQueue) {
		t.Fatalf("expected ErrNoActiveQueue, got %v", err)
	}
}

func TestFetchSnapshotFull(t *testing.T) {
	players := &fakePlayers{queue: activeQueueFixture(), found: true}
	server := itemsBackend(t, fullItemsFixture(), 4)
	r := newResolver(t, players, server.URL)

	snap, err := r.FetchSnapshot(context.Background(), Handle{PlayerID: "p", QueueID: "q-sonos"})
	if err != nil {
		t.Fatalf("fetch snapshot: %v", err)
	}
	if snap.Mode != ModeFull {
		t.Fatalf("mode = %v", snap.Mode)
	}
	if len(snap.Items) != 4 {
		t.Fatalf("items = %d", len(snap.Items))
	}
	if snap.CurrentIndex != 1 {
		t.Fatalf("current index = %d", snap.CurrentIndex)
	}
	// Abstraction reports more items than the page; its count wins.
	if snap.Total != 12 {
		t.Fatalf("total = %d", snap.Total)
	}
	if snap.Items[1].Artist != "Artist B" || snap.Items[1].Album != "Album B" || snap.Items[1].ImagePath != "/img/b.jpg" {
		t.Fatalf("media metadata not mapped: %+v", snap.Items[1])
	}
}

func TestFetchSnapshotDegradedMarker(t *testing.T) {
	players := &fakePlayers{queue: activeQueueFixture(), found: true}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "401: Authentication required")
	}))
	t.Cleanup(server.Close)
	r := newResolver(t, players, server.URL)

	snap, err := r.FetchSnapshot(context.Background(), Handle{PlayerID: "p", QueueID: "q-sonos"})
	if err != nil {
		t.Fatalf("degraded fetch must not fail: %v", err)
	}
	if snap.Mode != ModeLimited {
		t.Fatalf("mode = %v", snap.Mode)
	}
	if len(snap.Items) != 2 {
		t.Fatalf("limited snapshot has %d items", len(snap.Items))
	}
	if snap.Items[0].Name != "Current Song" || snap.Items[1].Name != "Next Song" {
		t.Fatalf("items = %+v", snap.Items)
	}
	if snap.Total != 12 {
		t.Fatalf("total = %d", snap.Total)
	}
}

func TestFetchSnapshotNetworkFailure(t *testing.T) {
	players := &fakePlayers{queue: activeQueueFixture(), found: true}
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()
	r := newResolver(t, players, server.URL)

	snap, err := r.FetchSnapshot(context.Background(), Handle{PlayerID: "p", QueueID: "q-sonos"})
	if err != nil {
		t.Fatalf("network fallback must not fail: %v", err)
	}
	if snap.Mode != ModeLimited || len(snap.Items) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestFetchSnapshotLimitedSingleItem(t *testing.T) {
	aq := activeQueueFixture()
	aq.Next = nil
	players := &fakePlayers{queue: aq, found: true}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "Setup required")
	}))
	t.Cleanup(server.Close)
	r := newResolver(t, players, server.URL)

	snap, err := r.FetchSnapshot(context.Background(), Handle{PlayerID: "p", QueueID: "q-sonos"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snap.Items) != 1 {
		t.Fatalf("items = %d, want only current", len(snap.Items))
	}
}

func TestFetchSnapshotBareArrayResult(t *testing.T) {
	players := &fakePlayers{queue: activeQueueFixture(), found: true}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var env CommandEnvelope
		_ = json.Unmarshal(body, &env)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message_id": env.MessageID,
			"result": []map[string]any{
				{"queue_item_id": "item-a", "name": "A"},
				{"queue_item_id": "item-b", "name": "B"},
			},
		})
	}))
	t.Cleanup(server.Close)
	r := newResolver(t, players, server.URL)

	snap, err := r.FetchSnapshot(context.Background(), Handle{PlayerID: "p", QueueID: "q-sonos"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if snap.Mode != ModeFull || len(snap.Items) != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestResolveItemID(t *testing.T) {
	players := &fakePlayers{queue: activeQueueFixture(), found: true}
	server := itemsBackend(t, fullItemsFixture(), 4)
	r := newResolver(t, players, server.URL)

	id, err := r.ResolveItemID(context.Background(), Handle{PlayerID: "p", QueueID: "q-sonos"}, 3)
	if err != nil {
		t.Fatalf("resolve item id: %v", err)
	}
	if id != "item-d" {
		t.Fatalf("id = %q", id)
	}
}

func TestItemIDAtLimitedAlwaysFails(t *testing.T) {
	snap := limitedSnapshot(activeQueueFixture())
	for _, index := range []int{-1, 0, 1, 5} {
		_, err := ItemIDAt(snap, index)
		var idxErr *IndexError
		if !errors.As(err, &idxErr) || !idxErr.Limited {
			t.Fatalf("index %d: expected limited IndexError, got %v", index, err)
		}
	}
}

func TestItemIDAtOutOfRange(t *testing.T) {
	snap := Snapshot{
		Items: []homie.QueueItem{{QueueItemID: "item-a", Name: "A"}},
		Mode:  ModeFull,
	}
	for _, index := range []int{-1, 1, 10} {
		_, err := ItemIDAt(snap, index)
		var idxErr *IndexError
		if !errors.As(err, &idxErr) {
			t.Fatalf("index %d: expected IndexError, got %v", index, err)
		}
	}
}
