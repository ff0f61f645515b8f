package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kapu/chessmeet/internal/archive"
	"github.com/kapu/chessmeet/internal/chessrules"
	appcfg "github.com/kapu/chessmeet/internal/config"
	"github.com/kapu/chessmeet/internal/gateway"
	"github.com/kapu/chessmeet/internal/identity"
	"github.com/kapu/chessmeet/internal/invite"
	"github.com/kapu/chessmeet/internal/match"
	"github.com/kapu/chessmeet/internal/obslog"
	"github.com/kapu/chessmeet/internal/presence"
	"github.com/kapu/chessmeet/internal/session"
	"github.com/kapu/chessmeet/internal/status"
	"github.com/kapu/chessmeet/internal/sweep"
	"github.com/kapu/chessmeet/internal/video"
	"github.com/kapu/chessmeet/pkg/wire"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	registry := identity.NewRegistry()
	graph := presence.NewGraph()
	queue := match.NewQueue()
	broker := invite.NewBroker(graph, registry, cfg.InvitationTTL)

	sessions := session.NewManager(chessrules.New(), gateway.Notifier{Registry: registry}, session.Config{
		TimeControlSec:    cfg.TimeControlSec,
		ClockBroadcastSec: cfg.ClockBroadcast,
		GracePeriod:       cfg.GracePeriod,
	})

	if cfg.VideoBaseURL != "" {
		sessions.AttachVideo(video.NewClient(cfg.VideoBaseURL, cfg.VideoAPIKey))
	}

	var closers []func() error
	var sinks []session.Archiver
	if cfg.RedisURL != "" {
		store, err := archive.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis archive init error: %v", err)
		}
		closers = append(closers, store.Close)
		sinks = append(sinks, store)
	}
	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres archive init error: %v", err)
		}
		closers = append(closers, repo.Close)
		sinks = append(sinks, repo)
	}
	if multi := archive.NewMulti(sinks...); !multi.Empty() {
		sessions.AttachArchive(multi)
	}

	statusSrv := status.NewServer(status.Sources{
		ActiveSessions: sessions.ActiveCount,
		QueueLength:    queue.Len,
		Connected:      registry.ConnectedCount,
	})

	gw := gateway.New(registry, graph, queue, broker, sessions, func() wire.Stats {
		return statusSrv.Snapshot()
	})

	sweeper := sweep.New(cfg.SweepInterval,
		func(now time.Time) { sessions.SweepAbandoned(now, cfg.MaxSessionAge) },
		func(now time.Time) { broker.SweepExpired(now) },
	)
	sweeper.Start()

	wsSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		obslog.L().Info("ws_listen", zap.String("addr", cfg.ListenAddr))
		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obslog.L().Fatal("ws_serve_failed", zap.Error(err))
		}
	}()
	go func() {
		obslog.L().Info("status_listen", zap.String("addr", cfg.StatusAddr))
		if err := statusSrv.ListenAndServe(cfg.StatusAddr); err != nil {
			obslog.L().Error("status_serve_failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	obslog.L().Info("shutdown_begin")

	sweeper.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = wsSrv.Shutdown(ctx)
	_ = statusSrv.Shutdown()
	for _, fn := range closers {
		_ = fn()
	}
	obslog.L().Info("shutdown_complete")
}
