package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/isg-automation/scheduler/config"
	"github.com/isg-automation/scheduler/internal/app"
	"github.com/isg-automation/scheduler/pkg/logger"
)

// osExit is a variable to allow mocking os.Exit in tests.
var osExit = os.Exit

// signalNotify is a variable to allow mocking the signal channel in tests.
var signalNotify = signal.Notify

// NewAppFunc defines the function signature for creating a new app.
type NewAppFunc func(cfg *config.Config, opts ...app.AppOption) app.AppInterface

// newApp is a variable to allow injecting a fake AppInterface in tests.
var newApp NewAppFunc = app.NewApp

// runServer contains the core server logic, extracted for testability.
func runServer(cfg *config.Config, appLogger logger.Logger) error {
	appInstance := newApp(cfg, app.WithLogger(appLogger))

	if err := appInstance.Initialize(); err != nil {
		appLogger.WithField("error", err.Error()).Fatal(err.Error())
		return err
	}

	shutdown := make(chan os.Signal, 1)
	signalNotify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverError := make(chan error, 1)
	go func() {
		appLogger.Info("automation scheduler started successfully")
		serverError <- appInstance.Start()
	}()

	select {
	case err := <-serverError:
		if err != nil {
			appLogger.WithField("error", err.Error()).Error("server error")
		}
		return err
	case sig := <-shutdown:
		appLogger.WithField("signal", sig.String()).Info("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := appInstance.Shutdown(ctx); err != nil {
			appLogger.WithField("error", err.Error()).Error("error during shutdown")
			return err
		}

		appLogger.Info("server shut down gracefully")
		return nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger := logger.NewLoggerWithLevel(cfg.LogLevel)
	appLogger.Info(fmt.Sprintf("starting automation scheduler on %s", cfg.Server.Addr()))

	if err := runServer(cfg, appLogger); err != nil {
		osExit(1)
	}
}
