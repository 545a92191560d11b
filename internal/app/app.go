package app

import (
	"context"
	"errors"
	"net/http"

	"odinboard/internal/feed"

	"gitlab.com/nevasik7/alerting/logger"
)

type HTTPServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

type App struct {
	log      logger.Logger
	httpSrv  HTTPServer
	pipeline *feed.Pipeline // nil when sync disabled
}

func NewApp(log logger.Logger, httpSrv HTTPServer, pipeline *feed.Pipeline) *App {
	return &App{log: log, httpSrv: httpSrv, pipeline: pipeline}
}

func (a *App) Start(ctx context.Context) error {
	a.log.Debug("App started begin...")

	if a.pipeline != nil {
		a.pipeline.Start(ctx)
	}

	go func() {
		if err := a.httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("Start HTTP server is error=%v", err)
		}
	}()

	a.log.Info("App started")
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Debug("App stopped begin...")

	if err := a.httpSrv.Shutdown(ctx); err != nil {
		return err
	}

	if a.pipeline != nil {
		if err := a.pipeline.Stop(ctx); err != nil {
			return err
		}
	}

	a.log.Info("App stopped")
	return nil
}
