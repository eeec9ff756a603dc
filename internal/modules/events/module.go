package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/johnpc/jpc-homie/internal/queuesync"
	"github.com/johnpc/jpc-homie/pkg/homie"
)

// publisher is the slice of the MQTT adapter the module needs.
type publisher interface {
	PublishRetained(topic string, payload any) error
}

type queueReader interface {
	ResolveHandle(ctx context.Context, playerID string) (queuesync.Handle, error)
	FetchSnapshot(ctx context.Context, h queuesync.Handle) (queuesync.Snapshot, error)
}

type playerStatus interface {
	Status(ctx context.Context, playerID string) (homie.PlayerStatus, error)
}

// Config configures the event publisher module.
type Config struct {
	EntityID  string
	TopicBase string
	Interval  time.Duration
}

// Module publishes retained player state and queue snapshots to MQTT so
// wall panels and automations can follow the player without polling the
// dashboard API. It publishes on a timer and whenever the dashboard
// reports a queue mutation.
type Module struct {
	log     *zap.Logger
	config  Config
	pub     publisher
	queue   queueReader
	players playerStatus
	trigger chan struct{}
}

// NewModule creates the event publisher module.
func NewModule(log *zap.Logger, cfg Config, pub publisher, queue queueReader, players playerStatus) (*Module, error) {
	if strings.TrimSpace(cfg.EntityID) == "" {
		return nil, errors.New("entity_id required")
	}
	if cfg.TopicBase == "" {
		cfg.TopicBase = "homie/v1"
	}
	cfg.TopicBase = strings.TrimRight(cfg.TopicBase, "/")
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if pub == nil || queue == nil || players == nil {
		return nil, errors.New("events module missing dependencies")
	}
	return &Module{
		log:     log,
		config:  cfg,
		pub:     pub,
		queue:   queue,
		players: players,
		trigger: make(chan struct{}, 1),
	}, nil
}

// Notify requests an immediate publish. Safe from any goroutine; a pending
// request coalesces with later ones.
func (m *Module) Notify() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Run publishes until the context is cancelled.
func (m *Module) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.publish(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.publish(ctx)
		case <-m.trigger:
			m.publish(ctx)
		}
	}
}

func (m *Module) publish(ctx context.Context) {
	if status, err := m.players.Status(ctx, m.config.EntityID); err != nil {
		m.log.Warn("fetch player status", zap.Error(err))
	} else if err := m.pub.PublishRetained(m.stateTopic(), status); err != nil {
		m.log.Warn("publish player state", zap.Error(err))
	}

	snap := m.snapshot(ctx)
	if err := m.pub.PublishRetained(m.queueTopic(), snap); err != nil {
		m.log.Warn("publish queue", zap.Error(err))
	}
}

func (m *Module) snapshot(ctx context.Context) homie.QueueSnapshot {
	empty := homie.QueueSnapshot{Queue: []homie.QueueItem{}, Limited: true}
	h, err := m.queue.ResolveHandle(ctx, m.config.EntityID)
	if errors.Is(err, queuesync.ErrNoActiveQueue) {
		return empty
	}
	if err != nil {
		m.log.Warn("resolve queue", zap.Error(err))
		return empty
	}
	snap, err := m.queue.FetchSnapshot(ctx, h)
	if err != nil {
		m.log.Warn("fetch queue snapshot", zap.Error(err))
		return empty
	}
	return homie.QueueSnapshot{
		Queue:    snap.Items,
		Position: snap.CurrentIndex,
		Total:    snap.Total,
		Limited:  snap.Mode == queuesync.ModeLimited,
	}
}

func (m *Module) stateTopic() string {
	return m.config.TopicBase + "/player/" + m.config.EntityID + "/state"
}

func (m *Module) queueTopic() string {
	return m.config.TopicBase + "/player/" + m.config.EntityID + "/queue"
}
