package queuesync

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/johnpc/jpc-homie/internal/ports"
	"github.com/johnpc/jpc-homie/pkg/homie"
)

// Mode tags a snapshot as full or degraded.
type Mode string

const (
	ModeFull    Mode = "full"
	ModeLimited Mode = "limited"
)

// Classify maps a full-fetch outcome to the snapshot mode. Every failure
// degrades; only a clean fetch is full.
func Classify(err error) Mode {
	if err == nil {
		return ModeFull
	}
	return ModeLimited
}

// DefaultPageLimit bounds how much of the queue one full fetch pulls.
const DefaultPageLimit = 500

// Handle pairs a player with the opaque queue id the low-level service
// knows it by. Queue ids rotate on track changes, so handles are resolved
// fresh per call and never cached.
type Handle struct {
	PlayerID string
	QueueID  string
}

// Snapshot is a point-in-time view of one player's queue.
type Snapshot struct {
	Items        []homie.QueueItem
	CurrentIndex int
	Total        int
	Mode         Mode
}

// Resolver bridges the player abstraction and the low-level queue service:
// it resolves queue ids, fetches item lists and maps player-relative
// indices to low-level item ids.
type Resolver struct {
	Log     *zap.Logger
	Players ports.PlayerSource
	Queue   *Client
	// PageLimit caps full fetches; zero means DefaultPageLimit.
	PageLimit int
}

// ResolveHandle asks the player abstraction for the player's active queue.
func (r Resolver) ResolveHandle(ctx context.Context, playerID string) (Handle, error) {
	aq, ok, err := r.Players.ActiveQueue(ctx, playerID)
	if err != nil {
		return Handle{}, fmt.Errorf("resolve queue for %s: %w", playerID, err)
	}
	if !ok || aq.QueueID == "" {
		return Handle{}, fmt.Errorf("%w: %s", ErrNoActiveQueue, playerID)
	}
	return Handle{PlayerID: playerID, QueueID: aq.QueueID}, nil
}

// FetchSnapshot returns the freshest queue view it can get: a full page
// from the queue service when possible, otherwise a limited current+next
// view from the player abstraction. The limited fallback is an answer, not
// an error; FetchSnapshot only fails when the abstraction itself does.
func (r Resolver) FetchSnapshot(ctx context.Context, h Handle) (Snapshot, error) {
	aq, ok, err := r.Players.ActiveQueue(ctx, h.PlayerID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch snapshot for %s: %w", h.PlayerID, err)
	}
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNoActiveQueue, h.PlayerID)
	}

	full, err := r.fetchFull(ctx, h, aq)
	if Classify(err) == ModeFull {
		return full, nil
	}
	r.Log.Info("full queue fetch unavailable, degrading",
		zap.String("player_id", h.PlayerID),
		zap.Error(err))
	return limitedSnapshot(aq), nil
}

// ResolveItemID maps a player-relative index to the low-level item id,
// fetching a snapshot if the caller does not already hold one. Reordering
// needs full visibility: a limited snapshot always yields an IndexError.
func (r Resolver) ResolveItemID(ctx context.Context, h Handle, index int) (string, error) {
	snap, err := r.FetchSnapshot(ctx, h)
	if err != nil {
		return "", err
	}
	return ItemIDAt(snap, index)
}

// ItemIDAt returns the item id at index in an already-held snapshot.
func ItemIDAt(snap Snapshot, index int) (string, error) {
	if snap.Mode != ModeFull {
		return "", &IndexError{Index: index, Length: len(snap.Items), Limited: true}
	}
	if index < 0 || index >= len(snap.Items) {
		return "", &IndexError{Index: index, Length: len(snap.Items)}
	}
	id := snap.Items[index].QueueItemID
	if id == "" {
		return "", &IndexError{Index: index, Length: len(snap.Items)}
	}
	return id, nil
}

func (r Resolver) fetchFull(ctx context.Context, h Handle, aq homie.ActiveQueue) (Snapshot, error) {
	limit := r.PageLimit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	result, err := r.Queue.Send(ctx, "player_queues/items", map[string]any{
		"queue_id": h.QueueID,
		"limit":    limit,
		"offset":   0,
	})
	if err != nil {
		return Snapshot{}, err
	}

	items, total, err := parseItemsResult(result.Result)
	if err != nil {
		return Snapshot{}, err
	}
	if total < aq.Items {
		total = aq.Items
	}
	return Snapshot{
		Items:        items,
		CurrentIndex: aq.CurrentIndex,
		Total:        total,
		Mode:         ModeFull,
	}, nil
}

// serviceItem is the queue service's item shape.
type serviceItem struct {
	QueueItemID string  `json:"queue_item_id"`
	Name        string  `json:"name"`
	Duration    float64 `json:"duration"`
	MediaItem   *struct {
		Name  string `json:"name"`
		Image *struct {
			Path string `json:"path"`
		} `json:"image"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album *struct {
			Name string `json:"name"`
		} `json:"album"`
	} `json:"media_item"`
}

// parseItemsResult accepts both observed reply shapes for an item listing:
// an object {items: [...], total: n} and a bare array of items.
func parseItemsResult(raw json.RawMessage) ([]homie.QueueItem, int, error) {
	if len(raw) == 0 {
		return nil, 0, &ProtocolError{Reason: "empty items result"}
	}

	var page struct {
		Items []serviceItem `json:"items"`
		Total int           `json:"total"`
	}
	if err := json.Unmarshal(raw, &page); err == nil && page.Items != nil {
		return convertItems(page.Items), pageTotal(page.Total, len(page.Items)), nil
	}

	var bare []serviceItem
	if err := json.Unmarshal(raw, &bare); err == nil {
		return convertItems(bare), len(bare), nil
	}

	return nil, 0, &ProtocolError{Reason: "unrecognized items result", Raw: raw}
}

func pageTotal(total int, got int) int {
	if total < got {
		return got
	}
	return total
}

func convertItems(items []serviceItem) []homie.QueueItem {
	out := make([]homie.QueueItem, 0, len(items))
	for _, item := range items {
		converted := homie.QueueItem{
			QueueItemID: item.QueueItemID,
			Name:        item.Name,
			Duration:    item.Duration,
		}
		if media := item.MediaItem; media != nil {
			if converted.Name == "" {
				converted.Name = media.Name
			}
			if len(media.Artists) > 0 {
				converted.Artist = media.Artists[0].Name
			}
			if media.Album != nil {
				converted.Album = media.Album.Name
			}
			if media.Image != nil {
				converted.ImagePath = media.Image.Path
			}
		}
		out = append(out, converted)
	}
	return out
}

func limitedSnapshot(aq homie.ActiveQueue) Snapshot {
	items := make([]homie.QueueItem, 0, 2)
	if aq.Current != nil {
		items = append(items, *aq.Current)
	}
	if aq.Next != nil {
		items = append(items, *aq.Next)
	}
	return Snapshot{
		Items:        items,
		CurrentIndex: aq.CurrentIndex,
		Total:        aq.Items,
		Mode:         ModeLimited,
	}
}
