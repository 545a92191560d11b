package handlers

import (
	"odinboard/internal/proxy"
	"odinboard/internal/service"
	"odinboard/internal/upstream"

	"gitlab.com/nevasik7/alerting/logger"
)

// Pipeline control surface the HTTP layer needs
type Refresher interface {
	ForceRefresh()
}

type Handler struct {
	Log      logger.Logger
	Proxy    *proxy.Proxy
	Upstream *upstream.Client
	Board    *service.BoardService
	Pipeline Refresher // optional, nil when sync is disabled
}

func New(log logger.Logger, p *proxy.Proxy, up *upstream.Client, board *service.BoardService, pipeline Refresher) *Handler {
	return &Handler{
		Log:      log,
		Proxy:    p,
		Upstream: up,
		Board:    board,
		Pipeline: pipeline,
	}
}
