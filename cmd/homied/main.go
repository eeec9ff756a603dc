package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/johnpc/jpc-homie/internal/adapters/idgen"
	"github.com/johnpc/jpc-homie/internal/adapters/mqtt"
	"github.com/johnpc/jpc-homie/internal/adapters/volcache"
	"github.com/johnpc/jpc-homie/internal/hass"
	"github.com/johnpc/jpc-homie/internal/homied"
	"github.com/johnpc/jpc-homie/internal/jellyfin"
	"github.com/johnpc/jpc-homie/internal/modules/dashboard"
	embeddedmqtt "github.com/johnpc/jpc-homie/internal/modules/embedded_mqtt"
	"github.com/johnpc/jpc-homie/internal/modules/events"
	"github.com/johnpc/jpc-homie/internal/queuesync"
)

func main() {
	var (
		configPath string
		logLevel   string
		logFormat  string
		dryRun     bool
	)

	defaultConfig, err := homied.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (json|console)")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := homied.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Server.LogFormat = logFormat
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if dryRun {
		return
	}

	logger, err := homied.NewLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("homied starting",
		zap.String("entity_id", cfg.HomeAssistant.EntityID),
		zap.Strings("modules", enabledModules(cfg)),
	)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("homied failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg homied.Config, logger *zap.Logger) error {
	players, err := hass.NewClient(
		logger.Named("hass"),
		cfg.HomeAssistant.BaseURL,
		cfg.HomeAssistant.Token,
		msDuration(cfg.HomeAssistant.TimeoutMS),
	)
	if err != nil {
		return err
	}

	codec := queuesync.Codec{IDs: idgen.Generator{}}
	oneshot, err := queuesync.NewClient(
		logger.Named("queue"),
		cfg.MusicAssistant.BaseURL,
		cfg.MusicAssistant.Token,
		codec,
		msDuration(cfg.MusicAssistant.RequestTimeoutMS),
	)
	if err != nil {
		return err
	}

	resolver := queuesync.Resolver{
		Log:       logger.Named("queue"),
		Players:   players,
		Queue:     oneshot,
		PageLimit: cfg.MusicAssistant.PageLimit,
	}

	wsURL, err := queuesync.WebsocketURL(cfg.MusicAssistant.BaseURL)
	if err != nil {
		return err
	}
	sessionTimeout := msDuration(cfg.MusicAssistant.SessionTimeoutMS)
	if sessionTimeout == 0 {
		sessionTimeout = queuesync.DefaultSessionTimeout
	}
	planner := queuesync.NewPlanner(
		logger.Named("queue"),
		resolver,
		oneshot,
		wsURL,
		cfg.MusicAssistant.Token,
		codec,
		sessionTimeout,
	)

	var search *jellyfin.Client
	if cfg.Jellyfin.Enabled {
		search, err = jellyfin.NewClient(
			logger.Named("jellyfin"),
			cfg.Jellyfin.BaseURL,
			cfg.Jellyfin.APIKey,
			msDuration(cfg.Jellyfin.TimeoutMS),
		)
		if err != nil {
			return err
		}
	}

	volumes := volcache.New(30 * time.Second)

	modules := []homied.ModuleRunner{}

	// The embedded broker starts before the event publisher connects so
	// the paho client has something to dial.
	if cfg.Modules.EmbeddedMQTT.Enabled {
		broker, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
			Listen:         cfg.Modules.EmbeddedMQTT.Listen,
			AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
			Username:       cfg.Modules.EmbeddedMQTT.Username,
			Password:       cfg.Modules.EmbeddedMQTT.Password,
		})
		if err != nil {
			return err
		}
		if cfg.Modules.Events.Enabled && cfg.Modules.Events.Broker == "" {
			go func() { _ = broker.Run(ctx) }()
			if err := waitForListen(embeddedListen(cfg), 3*time.Second); err != nil {
				return err
			}
		} else {
			modules = append(modules, homied.ModuleRunner{Name: "embedded_mqtt", Run: broker.Run})
		}
	}

	var notify func()
	if cfg.Modules.Events.Enabled {
		brokerURL := cfg.Modules.Events.Broker
		if brokerURL == "" {
			brokerURL = embeddedmqtt.BrokerURL(embeddedListen(cfg))
		}
		pub, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: brokerURL,
			ClientID:  fmt.Sprintf("homied-%d", time.Now().UnixNano()),
			Username:  cfg.Modules.Events.Username,
			Password:  cfg.Modules.Events.Password,
			Logger:    logger.Named("mqtt"),
		})
		if err != nil {
			return fmt.Errorf("mqtt connection failed: %w", err)
		}
		defer pub.Close()

		mod, err := events.NewModule(logger.With(zap.String("module", "events")), events.Config{
			EntityID:  cfg.HomeAssistant.EntityID,
			TopicBase: cfg.Modules.Events.TopicBase,
			Interval:  msDuration(cfg.Modules.Events.IntervalMS),
		}, pub, resolver, players)
		if err != nil {
			return err
		}
		notify = mod.Notify
		modules = append(modules, homied.ModuleRunner{Name: "events", Run: mod.Run})
	}

	if cfg.Modules.Dashboard.Enabled {
		dashCfg := dashboard.Config{
			Listen:   cfg.Modules.Dashboard.Listen,
			EntityID: cfg.HomeAssistant.EntityID,
		}
		dashLog := logger.With(zap.String("module", "dashboard"))
		var mod *dashboard.Module
		if search != nil {
			mod, err = dashboard.NewModule(dashLog, dashCfg, resolver, planner, players, search, volumes)
		} else {
			mod, err = dashboard.NewModule(dashLog, dashCfg, resolver, planner, players, nil, volumes)
		}
		if err != nil {
			return err
		}
		mod.OnChange = notify
		modules = append(modules, homied.ModuleRunner{Name: "dashboard", Run: mod.Run})
	}

	supervisor := homied.Supervisor{Logger: logger}
	return supervisor.Run(ctx, modules)
}

func enabledModules(cfg homied.Config) []string {
	out := []string{}
	if cfg.Modules.Dashboard.Enabled {
		out = append(out, "dashboard")
	}
	if cfg.Modules.Events.Enabled {
		out = append(out, "events")
	}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	return out
}

func msDuration(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func embeddedListen(cfg homied.Config) string {
	if cfg.Modules.EmbeddedMQTT.Listen != "" {
		return cfg.Modules.EmbeddedMQTT.Listen
	}
	return "127.0.0.1:1883"
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return errors.New("embedded mqtt not ready at " + addr)
}
