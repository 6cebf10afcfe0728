package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	elog "github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"storyloom/pkg/config"
	"storyloom/pkg/gateway"
	"storyloom/pkg/generation"
	"storyloom/pkg/orchestrator"
	"storyloom/pkg/paper"
	"storyloom/pkg/ratelimit"
	"storyloom/pkg/server"
	"storyloom/pkg/store"
	"storyloom/pkg/utils"
)

const (
	flowSweepEvery = 5 * time.Minute
	flowIdle       = 30 * time.Minute
	shutdownGrace  = 15 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the generation API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func setLogLevel(srv *server.Server, level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warn("unknown log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	switch lvl {
	case log.DebugLevel:
		srv.Echo.Logger.SetLevel(elog.DEBUG)
	case log.WarnLevel:
		srv.Echo.Logger.SetLevel(elog.WARN)
	case log.ErrorLevel, log.FatalLevel:
		srv.Echo.Logger.SetLevel(elog.ERROR)
	default:
		srv.Echo.Logger.SetLevel(elog.INFO)
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, done := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer done()

	text, image, err := providers(cfg.Provider)
	if err != nil {
		return err
	}
	gw := gateway.New(text, image,
		gateway.WithTimeout(cfg.Provider.Timeout),
		gateway.WithImageCache(cfg.Images.CacheTTL),
		gateway.WithImageWorkers(cfg.Images.Workers, cfg.Images.QueueSize),
		gateway.WithTokenCounter(utils.NumTokens),
	)
	defer gw.Close()

	var rdb *redis.Client
	if cfg.Limits.Backend == "redis" || cfg.Storage.Backend == "redis" {
		opts, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
	}

	textLimit, imageLimit := limiters(ctx, cfg.Limits, rdb)

	kv, closer, err := openStore(cfg.Storage, rdb)
	if err != nil {
		return err
	}
	defer closer.Close()

	flows := orchestrator.NewManager(store.NewSessions(kv), store.NewLibrary(kv, cfg.Storage.LibraryCap), cfg.Images.FanOut)
	go flows.Run(ctx, flowSweepEvery, flowIdle)

	svc := generation.New(gw, textLimit, imageLimit)
	srv := server.NewServer(svc, flows, paper.NewExporter(kv, "/api/export/"))
	setLogLevel(srv, cfg.LogLevel)

	log.Info("providers ready", "text", cfg.Provider.Text, "textReady", text != nil, "image", cfg.Provider.Image, "imageReady", image != nil)
	log.Info("storage ready", "backend", cfg.Storage.Backend, "rateLimits", cfg.Limits.Backend)

	finishedShutDown := make(chan struct{})
	go func() {
		defer close(finishedShutDown)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	addr := ":" + strings.TrimPrefix(cfg.Port, ":")
	if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		done()
		<-finishedShutDown
		return err
	}
	<-finishedShutDown
	return nil
}

func limiters(ctx context.Context, l config.Limits, rdb *redis.Client) (ratelimit.Limiter, ratelimit.Limiter) {
	if l.Backend == "redis" {
		return ratelimit.NewRedis(rdb, "text", l.TextLimit, l.Window),
			ratelimit.NewRedis(rdb, "image", l.ImageLimit, l.Window)
	}

	text := ratelimit.NewMemory("text", l.TextLimit, ratelimit.WithWindow(l.Window))
	image := ratelimit.NewMemory("image", l.ImageLimit, ratelimit.WithWindow(l.Window))
	go text.Run(ctx, l.Sweep)
	go image.Run(ctx, l.Sweep)
	return text, image
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStore(s config.Storage, rdb *redis.Client) (store.KV, io.Closer, error) {
	switch s.Backend {
	case "memory":
		return store.NewMemory(), nopCloser{}, nil
	case "file":
		kv, err := store.NewFile(s.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening file store: %w", err)
		}
		return kv, nopCloser{}, nil
	case "sqlite":
		kv, err := store.OpenSQLite(filepath.Join(s.Path, "storyloom.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return kv, kv, nil
	case "redis":
		return store.NewRedis(rdb, "storyloom:", 0), nopCloser{}, nil
	case "none":
		log.Warn("persistent storage disabled, sessions and library will not survive requests")
		return store.Unavailable{}, nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", s.Backend)
}
