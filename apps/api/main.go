package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	echoapi "github.com/ademscil/Event-Management-BE-sub001/apps/api/echo"
	"github.com/ademscil/Event-Management-BE-sub001/apps/container"
	"github.com/ademscil/Event-Management-BE-sub001/core"
	metricsvc "github.com/ademscil/Event-Management-BE-sub001/services/metrics"
	"github.com/ademscil/Event-Management-BE-sub001/storage/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	logger := container.NewLogger(conf, "API : ")
	dbLogger := container.NewLogger(conf, "DB : ")
	metrics := metricsvc.NewPrometheus(conf.Build)

	ctx := context.Background()
	pool := database.NewPool(conf)
	db, err := pool.Get(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()
	if err = database.Migrate(ctx, db, "up"); err != nil {
		return err
	}

	app := container.New(container.Deps{
		Conf:    conf,
		DB:      db,
		Logger:  logger,
		Metrics: metrics,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - prometheus exposition of the application metrics.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", metrics.Handler())

	if conf.Server.DebugHost != "" {
		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()
	}

	// =========================================================================
	// Start Scheduler

	if conf.Scheduler.Enabled {
		if err = app.Processor.Start(); err != nil {
			return err
		}
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:   conf,
		Logger: logger,
		Services: echoapi.Services{
			Auth:         app.Auth,
			Users:        app.Users,
			OrgUnits:     app.OrgUnits,
			Functions:    app.Functions,
			Applications: app.Applications,
			Mappings:     app.Mappings,
			Surveys:      app.Surveys,
			SAP:          app.SAP,
			Imports:      app.Imports,
		},
		Health: db.PingContext,
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Host))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err = <-serverErrors:
		if err != nil {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}
	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
	case <-server.ShutdownRequested():
		logger.Info("integrity issue: Start shutdown...")
	}

	// give outstanding requests and the running tick a deadline for completion
	ctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
	defer cancel()

	if sErr := server.Stop(ctx); sErr != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", sErr), sErr)
	}
	if pErr := app.Processor.Stop(ctx); pErr != nil {
		logger.Error(fmt.Sprintf("could not stop scheduler gracefully: %v", pErr), pErr)
	}
	return err
}
