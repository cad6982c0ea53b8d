package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"camsampler/internal/config"
	"camsampler/internal/events"
	"camsampler/internal/logger"
	"camsampler/internal/metrics"
	"camsampler/internal/render"
	"camsampler/internal/repository/sqlite"
	"camsampler/internal/route"
	"camsampler/internal/service"
	"camsampler/internal/service/websocket"
	"camsampler/internal/source"
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	publisher  *events.Publisher
	hubService *websocket.HubService
	manager    *service.Manager
	router     http.Handler
}

// NewApp loads the configuration and wires every service. Nothing runs
// until Run is called.
func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	cameraFile := config.NewCameraFile(cfg.CamerasConfig)
	cameras, err := cameraFile.Load()
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to load cameras: %w", err)
	}
	if len(cameras) == 0 {
		log.Warning("No cameras defined in %s", cameraFile.Path())
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open snapshot catalog: %w", err)
	}
	snapshots := sqlite.NewSnapshotRepository(db)

	var publisher *events.Publisher
	if cfg.NatsURL != "" {
		publisher, err = events.Connect(cfg.NatsURL, cfg.NatsSubject)
		if err != nil {
			// Events are optional, samples are still written and catalogued.
			log.Warning("Snapshot events disabled: %v", err)
		}
	}

	hub := websocket.NewHubService(log)
	m := metrics.New(func() float64 { return float64(hub.GetClientCount()) })

	deps := service.PipelineDeps{
		Factory:   source.NewCaptureFactory(source.NewRuntime(log), cfg.CaptureQuality, log),
		Previewer: render.NewPreviewer(cfg.PreviewWidth, cfg.PreviewQuality),
		Hub:       hub,
		Catalog:   snapshots,
		Metrics:   m,
		Logger:    log,
	}
	// A typed nil publisher must not end up in the interface.
	if publisher != nil {
		deps.Events = publisher
	}
	mng := service.NewManager(cameras, deps, cameraFile)

	router := route.SetupRoutes(route.Deps{
		Config:    cfg,
		Logger:    log,
		Manager:   mng,
		Snapshots: snapshots,
		Hub:       hub,
		Metrics:   m,
	})

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		publisher:  publisher,
		hubService: hub,
		manager:    mng,
		router:     router,
	}, nil
}

// Run starts every camera and serves HTTP until SIGINT or SIGTERM.
func (a *App) Run() error {
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.hubService.Run(ctx)

	for id, err := range a.manager.StartAll() {
		a.logger.Warning("Camera %s not started: %v", id, err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("🚀 Camera Sampler\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📷 Cameras: %v\n", a.manager.Cameras())
	fmt.Printf("🗄️  Catalog: %s\n", a.config.DatabasePath)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("🛑 Shutdown requested")
	case runErr = <-serveErr:
		a.logger.Error("HTTP server failed: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.config.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}

	a.manager.StopAll()
	a.logger.Info("All cameras stopped")
	return runErr
}

func (a *App) close() {
	a.publisher.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database: %v", err)
	}
	a.logger.Close()
}
