package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcfg "github.com/park285/Cheese-Xiangqi/internal/config"
	"github.com/park285/Cheese-Xiangqi/internal/domain"
	"github.com/park285/Cheese-Xiangqi/internal/engine"
	"github.com/park285/Cheese-Xiangqi/internal/engine/ucci"
	"github.com/park285/Cheese-Xiangqi/internal/httpapi"
	"github.com/park285/Cheese-Xiangqi/internal/match"
	"github.com/park285/Cheese-Xiangqi/internal/msgcat"
	"github.com/park285/Cheese-Xiangqi/internal/obslog"
	"github.com/park285/Cheese-Xiangqi/internal/repository"
	"github.com/park285/Cheese-Xiangqi/internal/store"
	"github.com/park285/Cheese-Xiangqi/internal/watch"
	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
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
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog init failed", zap.Error(err))
	}
	if cfg.PresetsFile != "" {
		names, err := engine.LoadPresets(cfg.PresetsFile)
		if err != nil {
			logger.Fatal("engine presets load failed", zap.String("file", cfg.PresetsFile), zap.Error(err))
		}
		logger.Info("engine_presets_loaded", zap.Strings("presets", names))
	}
	preset, err := engine.GetPreset(cfg.EnginePreset)
	if err != nil {
		logger.Fatal("unknown engine preset", zap.String("preset", cfg.EnginePreset), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	snapshots, err := store.Open(ctx, cfg.RedisURL, cfg.SnapshotTTL)
	if err != nil {
		cancel()
		logger.Fatal("redis init failed", zap.Error(err))
	}
	archive := repository.NewMemoryRepository()
	if cfg.DatabaseURL != "" {
		archive, err = repository.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			cancel()
			logger.Fatal("postgres init failed", zap.Error(err))
		}
	} else {
		logger.Warn("DATABASE_URL not set; finished games are kept in memory only")
	}
	cancel()

	engineSide, err := xiangqi.ParseSide(cfg.EngineSide)
	if err != nil {
		logger.Fatal("bad engine side", zap.String("side", cfg.EngineSide), zap.Error(err))
	}

	hub := watch.NewHub()
	mcfg := match.ManagerConfig{
		Store:      snapshots,
		Archive:    archive,
		Catalog:    cat,
		Preset:     preset,
		EngineSide: engineSide,
		OnChange:   hub.Publish,
	}
	if cfg.EngineEnabled() {
		opts := ucci.Options{
			Args:             cfg.EngineArgs,
			HandshakeTimeout: cfg.HandshakeTimeout,
			SearchTimeout:    cfg.SearchTimeout,
		}
		mcfg.NewEngine = func() (match.Engine, error) {
			h, err := ucci.NewHandle(cfg.EnginePath, opts)
			if err != nil {
				return nil, err
			}
			return h, nil
		}
		logger.Info("engine_configured",
			zap.String("path", cfg.EnginePath),
			zap.String("preset", preset.Name),
			zap.Strings("commands", preset.Request("").Commands()),
		)
	} else {
		logger.Warn("XIANGQI_ENGINE_PATH not set; only two-player matches are available")
	}
	mgr := match.NewManager(mcfg)

	api := httpapi.NewServer(mgr, archive, snapshots)
	api.SetHistoryLimit(cfg.ArchiveSize)
	errCh := make(chan error, 2)
	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.ListenAddr))
		errCh <- api.ListenAndServe(cfg.ListenAddr)
	}()

	var watchSrv *http.Server
	if cfg.WatchAddr != "" {
		load := func(ctx context.Context, id string) (domain.MatchSnapshot, error) {
			return mgr.View(ctx, id)
		}
		mux := http.NewServeMux()
		mux.Handle("/watch/", watch.NewHandler(hub, load))
		watchSrv = &http.Server{
			Addr:              cfg.WatchAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("watch_listen", zap.String("addr", cfg.WatchAddr))
			if err := watchSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("listener failed", zap.Error(err))
	}

	if watchSrv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = watchSrv.Shutdown(sctx)
		scancel()
	}
	_ = api.Shutdown()
	mgr.Close()
	_ = archive.Close()
	_ = snapshots.Close()
}
