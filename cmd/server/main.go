package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"rabmap/internal/aisfeed"
	"rabmap/internal/api"
	"rabmap/internal/api/handlers"
	"rabmap/internal/config"
	"rabmap/internal/geo"
	"rabmap/internal/logger"
	"rabmap/internal/repository"
	"rabmap/internal/repository/memory"
	"rabmap/internal/repository/redisprefs"
	"rabmap/internal/services"
	"rabmap/internal/session"
)

func main() {
	// Optional .env for local development; real deployments set env directly.
	_ = godotenv.Load()

	log := logger.Setup()

	// Load configuration
	cfg := config.NewDefaultConfig()
	cfg.LoadFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize the marker registry and the cluster index
	registry := memory.NewMarkerRegistry()
	index := geo.NewClusterIndex(geo.ClusterOptions{
		MinZoom:   cfg.Map.MinZoom,
		MaxZoom:   cfg.Map.MaxZoom,
		Radius:    cfg.Map.ClusterRadiusPx,
		Extent:    cfg.Map.TileExtentPx,
		MinPoints: cfg.Map.MinClusterSize,
	})
	sess := session.New(registry, index, cfg.Map.EnableClustering)

	// Preference store: Redis when configured, in-memory otherwise
	var prefsStore repository.PrefsStore
	if cfg.Redis.Addr != "" {
		store, err := redisprefs.New(cfg.Redis)
		if err != nil {
			log.Error("redis unavailable, falling back to in-memory prefs", "error", err)
			prefsStore = memory.NewPrefsRepository()
		} else {
			defer store.Close()
			prefsStore = store
		}
	} else {
		prefsStore = memory.NewPrefsRepository()
	}

	// Initialize services
	featureSvc := services.NewFeatureService(cfg, log)
	guard := services.NewGuardService(cfg, log, registry)
	reconciler := services.NewReconcilerService(cfg, log, sess, featureSvc, guard)

	// Dataset updates arrive in bursts; collapse them into one rebuild.
	debouncer := session.NewDebouncer(cfg.Map.RebuildDebounce)
	defer debouncer.Stop()
	dataSvc := services.NewDataService(cfg, log, sess, func() {
		debouncer.Trigger(func() {
			if err := reconciler.Refresh(ctx); err != nil {
				log.Error("refresh failed", "error", err)
			}
		})
	})

	aisClient := aisfeed.NewClient(cfg.AIS, log)
	ferrySvc := services.NewFerryService(cfg, log, sess, guard, aisClient)

	// Start the background loops
	aisClient.Start(ctx)
	dataSvc.Start(ctx)
	if err := ferrySvc.Start(ctx); err != nil {
		log.Error("ferry simulator failed to start", "error", err)
		os.Exit(1)
	}
	session.Recurring(ctx, cfg.Ferry.IntegrityInterval, func() {
		guard.EnforceIntegrity(ctx, cfg.Ferry.SweepEpsilonDeg)
	})

	// Initialize handlers
	mapHandler := handlers.NewMapHandler(reconciler, sess)
	ferryHandler := handlers.NewFerryHandler(ferrySvc)
	prefsHandler := handlers.NewPrefsHandler(prefsStore, dataSvc, reconciler, sess)

	// Setup router
	router := api.NewRouter(mapHandler, ferryHandler, prefsHandler)
	engine := gin.Default()
	router.Setup(engine)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", "addr", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
