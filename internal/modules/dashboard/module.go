package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/johnpc/jpc-homie/internal/jellyfin"
	"github.com/johnpc/jpc-homie/internal/ports"
	"github.com/johnpc/jpc-homie/internal/queuesync"
	"github.com/johnpc/jpc-homie/pkg/homie"
)

// queueReader resolves and fetches queue snapshots.
type queueReader interface {
	ResolveHandle(ctx context.Context, playerID string) (queuesync.Handle, error)
	FetchSnapshot(ctx context.Context, h queuesync.Handle) (queuesync.Snapshot, error)
}

// queuePlanner executes queue mutations.
type queuePlanner interface {
	Reorder(ctx context.Context, playerID string, fromIndex int, toIndex int) error
	DeleteItem(ctx context.Context, playerID string, queueItemID string) error
}

// playerControl is the slice of the player abstraction the HTTP surface
// proxies directly.
type playerControl interface {
	Status(ctx context.Context, playerID string) (homie.PlayerStatus, error)
	Volume(ctx context.Context, playerID string) (float64, bool, error)
	CallService(ctx context.Context, domain string, service string, payload map[string]any) error
}

// trackSearch refines free-text enqueue requests against a media library.
type trackSearch interface {
	SearchTrack(ctx context.Context, term string, artist string) (jellyfin.Track, bool, error)
}

// Config configures the dashboard HTTP module.
type Config struct {
	Listen   string
	EntityID string
}

// Module serves the dashboard's music API.
type Module struct {
	log     *zap.Logger
	config  Config
	queue   queueReader
	planner queuePlanner
	players playerControl
	search  trackSearch
	volumes ports.VolumeCache

	// OnChange, when set, is called after every successful queue
	// mutation so the event publisher can push fresh state.
	OnChange func()
}

// NewModule creates the dashboard module. search may be nil; enqueue then
// passes free text through unrefined.
func NewModule(log *zap.Logger, cfg Config, queue queueReader, planner queuePlanner, players playerControl, search trackSearch, volumes ports.VolumeCache) (*Module, error) {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:8099"
	}
	if strings.TrimSpace(cfg.EntityID) == "" {
		return nil, errors.New("entity_id required")
	}
	if queue == nil || planner == nil || players == nil || volumes == nil {
		return nil, errors.New("dashboard module missing dependencies")
	}
	return &Module{
		log:     log,
		config:  cfg,
		queue:   queue,
		planner: planner,
		players: players,
		search:  search,
		volumes: volumes,
	}, nil
}

// Run serves HTTP until the context is cancelled.
func (m *Module) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              m.config.Listen,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		m.log.Info("dashboard listening", zap.String("addr", m.config.Listen))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler builds the route table.
func (m *Module) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/music/queue", m.handleGetQueue)
	mux.HandleFunc("DELETE /api/music/queue", m.handleDeleteQueueItem)
	mux.HandleFunc("POST /api/music/queue", m.handleEnqueue)
	mux.HandleFunc("POST /api/music/queue/reorder", m.handleReorder)
	mux.HandleFunc("GET /api/music/status", m.handleStatus)
	mux.HandleFunc("POST /api/music/control", m.handleControl)
	mux.HandleFunc("GET /api/music/volume", m.handleGetVolume)
	mux.HandleFunc("POST /api/music/volume", m.handleSetVolume)
	mux.HandleFunc("POST /api/music/seek", m.handleSeek)
	return m.logRequests(mux)
}

func (m *Module) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		m.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (m *Module) changed() {
	if m.OnChange != nil {
		m.OnChange()
	}
}
