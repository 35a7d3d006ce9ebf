package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	ConfigFile = "./config.yml"
	EnvFile    = "./config.env"

	// max number of pending changes events into the in-process queue.
	MemoryQueueSize = 1024
)

type AppProvider interface {
	Run() error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

type App struct {
	logger         *zap.Logger
	config         *Config
	server         *http.Server
	cleanups       []func() error
	queueConsumers []func(context.Context) error
	watchers       []func(context.Context) error
}

// NewApp provides an instance of App.
func NewApp() (AppProvider, error) {
	config, err := LoadAndInitConfigs(ConfigFile, EnvFile, GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to setup app configuration: %w", err)
	}

	// ensure the logs folder exists and Setup the logging module.
	err = os.MkdirAll(config.LogFolder, 0o700)
	if err != nil {
		return nil, fmt.Errorf("failed to create logging folder: %w", err)
	}
	clock := NewClock(config.IsProduction)
	rsw := NewRSyncWriter(config, clock)
	logger, flusher := SetupLogging(config, rsw, clock)

	app := &App{
		logger:   logger,
		config:   config,
		cleanups: []func() error{rsw.Close, flusher},
	}

	storage, err := NewFileBookStorage(logger, &config.Storage)
	if err != nil {
		app.Clean()
		return nil, fmt.Errorf("failed to setup books storage: %w", err)
	}

	// Setup the optional books mirror and its changes queue.
	var queue Queuer
	var mirror BookMirror
	if config.BoltDB.Enabled {
		queue, mirror, err = app.setupMirror(config, storage)
		if err != nil {
			app.Clean()
			return nil, err
		}
	}

	bookService := NewBookService(logger, storage, queue)
	apiService := NewAPIHandler(
		logger,
		config,
		&Statistics{
			version:   config.GitTag,
			container: IsAppRunningInDocker(),
			started:   clock.Now(),
			runtime:   runtime.Version(),
			platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
		clock,
		NewIDsHandler(),
		mirror,
		bookService,
	)

	// Use git commit in case the tag is not set.
	if config.GitTag == "" {
		apiService.stats.version = config.GitCommit
	}

	if config.Storage.WatchChanges {
		watcher := NewStorageWatcher(logger, config.Storage.FilePath, &apiService.stats.changes)
		app.watchers = append(app.watchers, watcher.Watch)
	}

	// Build the map of middlewares stacks.
	middlewaresPublic, middlewaresOps := apiService.MiddlewaresStacks()

	// Configure the endpoints with their handlers and middlewares.
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public: middlewaresPublic.Chain,
			ops:    middlewaresOps.Chain,
		},
	)
	// Wrap the router with the default http timeout handler.
	routerWithTimeout := http.TimeoutHandler(
		router,
		config.Server.RequestTimeout,
		"Timeout. Processing taking too long. Please reach out to support.")

	// Build the api server definition.
	app.server = &http.Server{
		Addr:           fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:        routerWithTimeout,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
	}

	return app, nil
}

// setupMirror opens the bolt mirror and picks the changes queue driver.
// The mirror starts as a copy of the persisted document, then the
// registered consumer keeps it up to date from that queue.
func (app *App) setupMirror(config *Config, storage BookStorage) (Queuer, BookMirror, error) {
	boltDBClient, err := GetBoltDBClient(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to boltDB server: %w", err)
	}
	app.cleanups = append(app.cleanups, boltDBClient.Close)
	mirror := NewBoltBookMirror(app.logger, &config.BoltDB, boltDBClient)
	if err = SyncBookMirror(context.Background(), storage, mirror); err != nil {
		return nil, nil, fmt.Errorf("failed to sync books mirror: %w", err)
	}

	var queue Queuer
	if config.Redis.Enabled {
		var redisClient *redis.Client
		redisClient, err = GetRedisClient(config)
		if err != nil {
			_ = redisClient.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis server: %w", err)
		}
		app.cleanups = append(app.cleanups, redisClient.Close)
		queue = NewRedisQueue(redisClient)
	} else {
		queue = NewMemoryQueue(MemoryQueueSize)
	}

	consumer := NewBoltDBConsumer(app.logger, queue, mirror)
	app.queueConsumers = append(app.queueConsumers, func(ctx context.Context) error {
		return consumer.Consume(ctx, CreateQueue, UpdateQueue, DeleteQueue)
	})
	app.logger.Info("books mirror enabled",
		zap.String("boltdb.file", config.BoltDB.FilePath),
		zap.Bool("redis.enabled", config.Redis.Enabled),
	)
	return queue, mirror, nil
}

// Run starts the api web server and a goroutine which is responsible to stop it.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	g.Go(app.ConsumeQueues(gCtx, g))
	g.Go(app.Watch(gCtx, g))
	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.logger.Info("api server stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// Clean calls all registered cleanups functions in reverse order.
func (app *App) Clean() {
	var errs []error
	for i := len(app.cleanups) - 1; i >= 0; i-- {
		if err := app.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintln(os.Stderr, "errors during app cleanup:", err)
	}
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
		)
		err := app.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("api server stopping. reason: requested to stop")
		} else {
			app.logger.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch {
		case err == nil, errors.Is(err, http.ErrServerClosed):
			app.logger.Info("api server graceful shutdown succeeded")
		case errors.Is(err, context.DeadlineExceeded):
			app.logger.Info("api server graceful shutdown timed out")
		default:
			app.logger.Info("api server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Info("api server going to force shutdown", zap.Error(app.server.Close()))
		}
		return nil
	}
}

// ConsumeQueues runs all queue consumers into separate controlled goroutines.
func (app *App) ConsumeQueues(gCtx context.Context, g *errgroup.Group) func() error {
	return func() error {
		for _, consume := range app.queueConsumers {
			consume := consume
			g.Go(func() error {
				return consume(gCtx)
			})
		}
		return nil
	}
}

// Watch runs all storage watchers into separate controlled goroutines.
// A failing watcher is only logged so the api keeps serving.
func (app *App) Watch(gCtx context.Context, g *errgroup.Group) func() error {
	return func() error {
		for _, watch := range app.watchers {
			watch := watch
			g.Go(func() error {
				if err := watch(gCtx); err != nil {
					app.logger.Error("watcher: stopped on failure", zap.Error(err))
				}
				return nil
			})
		}
		return nil
	}
}
