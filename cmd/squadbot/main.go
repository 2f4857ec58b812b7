package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"squadbot/internal/activity"
	"squadbot/internal/bot"
	"squadbot/internal/config"
	"squadbot/internal/fetcher"
	"squadbot/internal/filter"
	"squadbot/internal/ghapi"
	"squadbot/internal/model"
	"squadbot/internal/motd"
	"squadbot/internal/notify"
	"squadbot/internal/status"
	"squadbot/internal/storage"
	"squadbot/internal/supervisor"
	"squadbot/internal/telemetry"
	"squadbot/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStorage(cfg)
	if err != nil {
		log.Error("open storage", "backend", cfg.Storage, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	servers := make([]*model.ServerConfig, len(cfg.Servers))
	motds := make(map[string]*motd.Store, len(cfg.Servers))
	for i := range cfg.Servers {
		srv := &cfg.Servers[i]
		servers[i] = srv
		m, err := motd.Load(ctx, srv.Name, store, log)
		if err != nil {
			log.Error("load motd", "server", srv.Name, "error", err)
			os.Exit(1)
		}
		motds[srv.Name] = m
	}

	gh := ghapi.NewWithToken(ctx, cfg.GitHubToken, cfg.GitHub.Orgs, log)

	poller, err := newPoller(ctx, cfg, gh, store, log)
	if err != nil {
		log.Error("create activity poller", "error", err)
		os.Exit(1)
	}

	sup := supervisor.New(supervisor.Config{
		Servers:  servers,
		Dialer:   transport.NewXMPPDialer(log),
		Resolver: net.DefaultResolver,
		Motds:    motds,
		Poller:   poller,
		Timing:   supervisor.DefaultTiming(),
	}, log)

	b, err := bot.New(bot.Config{
		Prefix: cfg.CommandPrefix,
		Sender: sup,
		Forge:  gh,
		Runner: sup,
		Motds:  motds,
	}, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}
	sup.SetHandler(b)

	dispatcher := newDispatcher(ctx, cfg, log)
	watcher := status.New(status.Config{
		Client:      http.DefaultClient,
		URL:         cfg.StatusURL,
		Servers:     servers,
		Broadcaster: sup,
		Notifier:    dispatcher,
	}, log)
	go watcher.Run(ctx)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := telemetry.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error("serve metrics", "error", err)
			}
		}()
	}

	log.Info("starting bot", "servers", len(servers), "storage", cfg.Storage)

	if err := sup.Run(ctx); err != nil {
		log.Error("run supervisor", "error", err)
	}

	log.Info("bot stopped")
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage == config.StorageSQLite {
		if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		return storage.NewSQLite(cfg.DatabasePath)
	}
	return storage.NewFiles(cfg.DataDir)
}

func newPoller(ctx context.Context, cfg *config.Config, gh *ghapi.Client, store storage.Storage, log *slog.Logger) (*activity.Poller, error) {
	if len(cfg.GitHub.Orgs) == 0 && len(cfg.GitHub.CommitFeeds) == 0 {
		log.Info("no github orgs or commit feeds configured, activity polling disabled")
		return nil, nil
	}
	engine, err := filter.New(cfg.AnnounceFilters)
	if err != nil {
		return nil, err
	}
	pc := activity.Config{
		Feeds:  cfg.GitHub.CommitFeeds,
		Store:  store,
		Filter: engine,
	}
	if len(cfg.GitHub.Orgs) > 0 {
		pc.Events = gh
	}
	if len(cfg.GitHub.CommitFeeds) > 0 {
		pc.Commits = fetcher.New(http.DefaultClient)
	}
	return activity.New(ctx, pc, log)
}

func newDispatcher(ctx context.Context, cfg *config.Config, log *slog.Logger) *notify.Dispatcher {
	d := notify.NewDispatcher(log)
	d.Register(notify.ChannelSMS, notify.NewSMS(http.DefaultClient, cfg.TextbeltURL))

	if cfg.PushoverAppToken != "" {
		d.Register(notify.ChannelPushover, notify.NewPushover(cfg.PushoverAppToken))
	}
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken)
		if err != nil {
			log.Error("create telegram notifier", "error", err)
		} else {
			d.Register(notify.ChannelTelegram, tg)
		}
	}
	if usesChannel(cfg.Servers, notify.ChannelSNS) {
		sns, err := notify.NewSNS(ctx, cfg.AWSRegion)
		if err != nil {
			log.Error("create sns notifier", "error", err)
		} else {
			d.Register(notify.ChannelSNS, sns)
		}
	}

	log.Debug("notification channels", "channels", d.Channels())
	return d
}

func usesChannel(servers []model.ServerConfig, channel string) bool {
	for _, s := range servers {
		for _, r := range s.Notify {
			if r.Channel == channel {
				return true
			}
		}
	}
	return false
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
