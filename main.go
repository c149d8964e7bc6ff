package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"native-thumbnail/internal/bootstrap"
	"native-thumbnail/internal/dispatch"
	"native-thumbnail/internal/handlers"
	"native-thumbnail/internal/logging"
	"native-thumbnail/internal/media"
	"native-thumbnail/internal/memory"
	"native-thumbnail/internal/metrics"
	"native-thumbnail/internal/middleware"
	"native-thumbnail/internal/startup"

	"github.com/gorilla/mux"
)

type services struct {
	app        *bootstrap.App
	dispatcher *dispatch.Dispatcher
	handlers   *handlers.Handlers
	monitor    *memory.Monitor
	collector  *metrics.Collector
}

func main() {
	startTime := time.Now()

	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	metrics.InitializeMetrics()

	startup.LogDecoderInit(media.InitVips(), config.FFmpegPath)

	ctx := context.Background()
	app, err := bootstrap.New(ctx, config)
	if err != nil {
		startup.LogFatal("Failed to build thumbnail pipeline: %v", err)
	}
	startup.LogCacheInit(app.Cache != nil, config.CacheDir, app.CacheOpenDuration)
	go app.PurgeCache(ctx, config.CacheMaxAge)

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	collector := metrics.NewCollector(app.StatsProvider(), time.Minute)
	collector.Start()

	dispatcher := dispatch.New(app.Service, config.Workers, monitor)
	h := handlers.New(dispatcher, app.StatsProvider(), dispatcher.Capacity())
	h.SetMemoryStatus(monitor)

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.RequestID(middleware.Logger(loggingConfig)(router))

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Synchronous requests last as long as the extraction.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsRouter := mux.NewRouter()
		metricsRouter.Handle("/metrics", metrics.Handler()).Methods("GET")
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsRouter,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, services{
		app:        app,
		dispatcher: dispatcher,
		handlers:   h,
		monitor:    monitor,
		collector:  collector,
	})

	h.SetReady(true)
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		Workers:         dispatcher.Capacity(),
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	// Block until shutdown has drained everything.
	select {}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/thumbnail", h.ExtractThumbnail).Methods("POST").Name("thumbnail")

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, s services) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	s.handlers.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	// Stop the monitor before draining; work held for memory fails with ErrStopped.
	s.monitor.Stop()
	s.collector.Stop()

	startup.LogShutdownStep("Draining thumbnail dispatcher")
	s.dispatcher.Close()
	s.handlers.WaitAsync()
	startup.LogShutdownStepComplete("Dispatcher drained")

	startup.LogShutdownStep("Closing thumbnail cache")
	if err := s.app.Close(); err != nil {
		logging.Warn("%v", err)
	} else {
		startup.LogShutdownStepComplete("Thumbnail cache closed")
	}

	media.ShutdownVips()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownComplete()
	os.Exit(0)
}
