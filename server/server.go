package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"LiveRadio/cache"
	"LiveRadio/config"
	"LiveRadio/core/auth"
	"LiveRadio/core/radio"
	"LiveRadio/db"
	"LiveRadio/logger"
	"LiveRadio/repository"
	"LiveRadio/storage"

	"github.com/gorilla/mux"
)

// redisKeyPrefix namespaces the sync keys in a shared Redis.
const redisKeyPrefix = "liveradio:"

// NewRouter wires the public and admin routes.
func NewRouter(h *APIHandler, backgroundDir string) *mux.Router {
	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, auth, file-name")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	// Preflight requests only reach the middleware through a matching route.
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// public routes
	router.HandleFunc("/get-song", h.GetSongHandler).Methods(http.MethodGet)
	router.HandleFunc("/get-song-position", h.GetSongPositionHandler).Methods(http.MethodGet)
	router.HandleFunc("/get-bisi", h.GetBiSiHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/snapshot", h.GetSnapshotHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/history", h.GetHistoryHandler).Methods(http.MethodGet)

	// admin routes
	router.HandleFunc("/upload-song", h.AdminMiddleware(h.UploadSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/update-songs-list", h.AdminMiddleware(h.UpdateSongsListHandler)).Methods(http.MethodGet)
	router.HandleFunc("/get-songs-list", h.AdminMiddleware(h.GetSongsListHandler)).Methods(http.MethodGet)
	router.HandleFunc("/delete-song", h.AdminMiddleware(h.DeleteSongHandler)).Methods(http.MethodGet)
	router.HandleFunc("/restart-player", h.AdminMiddleware(h.RestartPlayerHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/status", h.AdminMiddleware(h.GetStatusHandler)).Methods(http.MethodGet)

	// Background images, renumbered at startup.
	const bgPrefix = "/static/images/background/"
	router.PathPrefix(bgPrefix).Handler(http.StripPrefix(bgPrefix, http.FileServer(http.Dir(backgroundDir))))

	return router
}

// App holds the running components and the order in which they shut down.
type App struct {
	Handler   *APIHandler
	Scheduler *radio.Scheduler
	Publisher *radio.Publisher
	closers   []func() error
}

// NewCatalogSource picks the track source named by CATALOG_BACKEND.
func NewCatalogSource(cfg *config.Config) (radio.CatalogSource, error) {
	switch cfg.CatalogBackend {
	case "", "dir":
		return storage.NewDirSource(cfg.AudioDir)
	case "minio":
		client, err := storage.NewMinioClient(cfg)
		if err != nil {
			return nil, err
		}
		return storage.NewMinioSource(client, cfg.MinioBucket, cfg.MinioPrefix), nil
	default:
		return nil, fmt.Errorf("unknown catalog backend %q", cfg.CatalogBackend)
	}
}

// NewSyncStore picks the key-value store named by SYNC_BACKEND.
func NewSyncStore(cfg *config.Config) (radio.Store, func() error, error) {
	switch cfg.SyncBackend {
	case "", "file":
		store, err := cache.NewFileStore(cfg.SaveDataDir)
		return store, func() error { return nil }, err
	case "redis":
		if err := cache.ConnectRedis(cfg); err != nil {
			return nil, nil, err
		}
		return cache.NewRedisStore(cache.RedisClient, redisKeyPrefix, cfg.RedisKeyTTL), cache.CloseRedis, nil
	default:
		return nil, nil, fmt.Errorf("unknown sync backend %q", cfg.SyncBackend)
	}
}

// NewApp builds every component from configuration. The scheduler is not started.
func NewApp(cfg *config.Config) (*App, error) {
	app := &App{}

	source, err := NewCatalogSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog source: %w", err)
	}

	store, closeStore, err := NewSyncStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sync store: %w", err)
	}
	app.closers = append(app.closers, closeStore)

	var history repository.PlayHistoryRepository
	if cfg.HistoryEnabled {
		if err := db.ConnectGormDB(cfg); err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, db.CloseGormDB)
		if err := db.AutoMigrateModels(); err != nil {
			app.Close()
			return nil, err
		}
		history = repository.NewGormPlayHistoryRepository(db.GormDB)
	}

	backgrounds, err := storage.NormalizeBackgrounds(cfg.BackgroundDir)
	if err != nil {
		logger.Warn("failed to normalize backgrounds", logger.String("dir", cfg.BackgroundDir), logger.ErrorField(err))
		backgrounds = storage.CountBackgrounds(cfg.BackgroundDir)
	}
	logger.Info("backgrounds ready", logger.Int("count", backgrounds))

	catalog := radio.NewCatalog(source, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := catalog.Refresh(ctx); err != nil {
		// The scheduler retries while idle.
		logger.Warn("initial catalog refresh failed", logger.ErrorField(err))
	}
	logger.Info("catalog loaded", logger.Int("tracks", catalog.Len()))

	pubOpts := radio.PublisherOptions{
		WriteTimeout:  cfg.PublishTimeout,
		RetryInterval: cfg.PublishRetry,
	}
	if history != nil {
		pubOpts.Recorder = history
	}
	app.Publisher = radio.NewPublisher(store, pubOpts)

	opts := radio.DefaultOptions
	opts.TickInterval = cfg.TickInterval
	opts.StopTimeout = cfg.StopTimeout
	opts.Modulus = cfg.SnapshotModulus
	app.Scheduler = radio.NewScheduler(catalog, radio.NewBackgroundRotator(backgrounds, nil), app.Publisher, opts)

	verifier := auth.NewVerifier(cfg.AuthKey, cfg.AuthKeyHash)
	if !verifier.Enabled() {
		logger.Warn("AUTH_KEY is not set, admin routes are disabled")
	}
	app.Handler = NewAPIHandler(catalog, app.Scheduler, app.Publisher, history, verifier)
	return app, nil
}

// Close stops the scheduler, drains the publisher and releases connections.
func (a *App) Close() {
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			logger.Warn("scheduler did not stop cleanly", logger.ErrorField(err))
		}
	}
	if a.Publisher != nil {
		a.Publisher.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("failed to close resource", logger.ErrorField(err))
		}
	}
}

// Start initializes and starts the HTTP server, blocking until SIGINT/SIGTERM.
func Start(cfg *config.Config) error {
	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Scheduler.Start(); err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      NewRouter(app.Handler, cfg.BackgroundDir),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-stop:
		logger.Info("shutting down server")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
	return nil
}
