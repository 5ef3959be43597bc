package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/isg-automation/scheduler/config"
	"github.com/isg-automation/scheduler/internal/app"
	"github.com/isg-automation/scheduler/pkg/logger"
)

type fakeApp struct {
	initErr     error
	startErr    error
	shutdownErr error
	started     chan struct{}
	shutdown    chan struct{}
}

func (f *fakeApp) Initialize() error { return f.initErr }
func (f *fakeApp) Start() error {
	close(f.started)
	<-f.shutdown
	return f.startErr
}
func (f *fakeApp) Shutdown(ctx context.Context) error {
	close(f.shutdown)
	return f.shutdownErr
}
func (f *fakeApp) GetConfig() *config.Config { return nil }
func (f *fakeApp) GetLogger() logger.Logger  { return logger.NewNopLogger() }
func (f *fakeApp) GetMux() *http.ServeMux    { return nil }
func (f *fakeApp) GetDB() *sql.DB            { return nil }
func (f *fakeApp) InitDB() error             { return nil }
func (f *fakeApp) InitRepositories() error   { return nil }
func (f *fakeApp) InitServices() error       { return nil }
func (f *fakeApp) InitHandlers() error       { return nil }

func withFakeApp(fa *fakeApp) func() {
	original := newApp
	newApp = func(cfg *config.Config, opts ...app.AppOption) app.AppInterface {
		return fa
	}
	return func() { newApp = original }
}

func TestRunServerShutsDownGracefullyOnSignal(t *testing.T) {
	fa := &fakeApp{started: make(chan struct{}), shutdown: make(chan struct{})}
	defer withFakeApp(fa)()

	originalSignalNotify := signalNotify
	sigCh := make(chan os.Signal, 1)
	signalNotify = func(c chan<- os.Signal, sig ...os.Signal) {
		go func() {
			s := <-sigCh
			c <- s
		}()
	}
	defer func() { signalNotify = originalSignalNotify }()

	done := make(chan error, 1)
	go func() { done <- runServer(&config.Config{}, logger.NewNopLogger()) }()

	<-fa.started
	sigCh <- os.Interrupt

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runServer did not return after shutdown signal")
	}
}

func TestRunServerReturnsStartError(t *testing.T) {
	fa := &fakeApp{
		startErr: errors.New("listen failed"),
		started:  make(chan struct{}),
		shutdown: make(chan struct{}),
	}
	defer withFakeApp(fa)()

	done := make(chan error, 1)
	go func() { done <- runServer(&config.Config{}, logger.NewNopLogger()) }()

	<-fa.started
	close(fa.shutdown)

	select {
	case err := <-done:
		require.EqualError(t, err, "listen failed")
	case <-time.After(2 * time.Second):
		t.Fatal("runServer did not return after start error")
	}
}
