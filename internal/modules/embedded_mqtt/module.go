package embeddedmqtt

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"
)

// Config configures the embedded MQTT broker. The broker exists so the
// event publisher works out of the box on hosts without a system broker.
type Config struct {
	Listen         string
	AllowAnonymous bool
	Username       string
	Password       string
}

// Module runs an embedded MQTT broker.
type Module struct {
	log    *zap.Logger
	server *mqtt.Server
	config Config
}

// NewModule creates a new embedded broker module.
func NewModule(log *zap.Logger, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:1883"
	}

	server, err := newServer(log, cfg)
	if err != nil {
		return nil, err
	}
	return &Module{log: log, server: server, config: cfg}, nil
}

// Run serves the broker until the context is cancelled.
func (m *Module) Run(ctx context.Context) error {
	listener := listeners.NewTCP(listeners.Config{ID: "tcp-embedded", Address: m.config.Listen})
	if err := m.server.AddListener(listener); err != nil {
		return err
	}

	go func() {
		_ = m.server.Serve()
	}()
	m.log.Info("embedded mqtt listening", zap.String("addr", m.config.Listen))

	<-ctx.Done()
	m.server.Close()
	return nil
}

func newServer(log *zap.Logger, cfg Config) (*mqtt.Server, error) {
	server := mqtt.New(&mqtt.Options{InlineClient: true, Logger: newBrokerLogger(log)})

	switch {
	case cfg.AllowAnonymous:
		if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
			return nil, err
		}
	case cfg.Username != "":
		ledger := &auth.Ledger{
			Auth: auth.AuthRules{{Username: auth.RString(cfg.Username), Password: auth.RString(cfg.Password), Allow: true}},
			ACL:  auth.ACLRules{{Username: auth.RString(cfg.Username), Filters: auth.Filters{auth.RString("#"): auth.ReadWrite}}},
		}
		if err := server.AddHook(new(auth.Hook), &auth.Options{Ledger: ledger}); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("embedded mqtt requires allow_anonymous or username")
	}

	return server, nil
}

// BrokerURL returns the URL the event publisher dials for a listen address.
func BrokerURL(listen string) string {
	return "mqtt://" + listen
}

func newBrokerLogger(logger *zap.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return slog.New(&slogBridge{logger: logger})
}

// slogBridge forwards mochi-mqtt's slog records to zap so the broker logs
// through the daemon's logger.
type slogBridge struct {
	logger *zap.Logger
	attrs  []slog.Attr
}

func (b *slogBridge) Enabled(context.Context, slog.Level) bool { return true }

func (b *slogBridge) Handle(_ context.Context, record slog.Record) error {
	fields := make([]zap.Field, 0, len(b.attrs)+record.NumAttrs())
	for _, attr := range b.attrs {
		fields = append(fields, zap.Any(attr.Key, attr.Value.Any()))
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, zap.Any(attr.Key, attr.Value.Any()))
		return true
	})

	switch {
	case record.Level >= slog.LevelError:
		b.logger.Error(record.Message, fields...)
	case record.Level >= slog.LevelWarn:
		b.logger.Warn(record.Message, fields...)
	case record.Level >= slog.LevelInfo:
		b.logger.Info(record.Message, fields...)
	default:
		b.logger.Debug(record.Message, fields...)
	}
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	next = append(next, b.attrs...)
	next = append(next, attrs...)
	return &slogBridge{logger: b.logger, attrs: next}
}

func (b *slogBridge) WithGroup(string) slog.Handler { return b }
