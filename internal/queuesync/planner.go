package queuesync

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// commandSession is the slice of Session the planner drives.
type commandSession interface {
	Execute(ctx context.Context, command string, args map[string]any) (CommandResult, error)
	Close() error
}

type sessionDialer func(ctx context.Context) (commandSession, error)

// Planner executes queue mutations. Moves go through a fresh authenticated
// session per call; deletes are keyed by item id and ride the one-shot
// transport.
type Planner struct {
	log      *zap.Logger
	resolver Resolver
	oneshot  *Client
	dial     sessionDialer
}

// NewPlanner wires a planner against the queue service's websocket
// endpoint. The session timeout covers each mutation's full lifecycle.
func NewPlanner(log *zap.Logger, resolver Resolver, oneshot *Client, wsURL string, token string, codec Codec, timeout time.Duration) *Planner {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &Planner{
		log:      log,
		resolver: resolver,
		oneshot:  oneshot,
		dial: func(ctx context.Context) (commandSession, error) {
			return DialSession(ctx, log, wsURL, token, codec, timeout)
		},
	}
}

// Reorder moves the item at fromIndex to toIndex. The instruction sent to
// the service is a relative position shift, recomputed fresh from a full
// snapshot on every call; equal indices are a successful no-op. Failures
// surface as ReorderFailed and are never retried here; the queue may have
// moved under us, so the caller re-fetches before deciding.
func (p *Planner) Reorder(ctx context.Context, playerID string, fromIndex int, toIndex int) error {
	if fromIndex == toIndex {
		return nil
	}

	h, err := p.resolver.ResolveHandle(ctx, playerID)
	if err != nil {
		return err
	}
	snap, err := p.resolver.FetchSnapshot(ctx, h)
	if err != nil {
		return err
	}
	itemID, err := ItemIDAt(snap, fromIndex)
	if err != nil {
		return err
	}
	if _, err := ItemIDAt(snap, toIndex); err != nil {
		return err
	}
	shift := toIndex - fromIndex

	sess, err := p.dial(ctx)
	if err != nil {
		return &ReorderFailed{Err: err}
	}
	defer sess.Close()

	p.log.Info("moving queue item",
		zap.String("player_id", playerID),
		zap.String("queue_item_id", itemID),
		zap.Int("pos_shift", shift))

	if _, err := sess.Execute(ctx, "player_queues/move_item", map[string]any{
		"queue_id":      h.QueueID,
		"queue_item_id": itemID,
		"pos_shift":     shift,
	}); err != nil {
		return &ReorderFailed{Err: err}
	}
	return nil
}

// DeleteItem removes a queue item by id. The id may come from a stale
// snapshot; the service resolves it, so staleness surfaces as the service's
// own answer rather than a local check.
func (p *Planner) DeleteItem(ctx context.Context, playerID string, queueItemID string) error {
	h, err := p.resolver.ResolveHandle(ctx, playerID)
	if err != nil {
		return err
	}

	p.log.Info("deleting queue item",
		zap.String("player_id", playerID),
		zap.String("queue_item_id", queueItemID))

	_, err = p.oneshot.Send(ctx, "player_queues/delete_item", map[string]any{
		"queue_id":         h.QueueID,
		"item_id_or_index": queueItemID,
	})
	return err
}
