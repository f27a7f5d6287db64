package handlers

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tariel-x/gopresence/internal/auth"
	"github.com/tariel-x/gopresence/internal/config"
	"github.com/tariel-x/gopresence/internal/conversations"
	"github.com/tariel-x/gopresence/internal/metrics"
	"github.com/tariel-x/gopresence/internal/records"
)

type Handlers struct {
	config     *config.Config
	records    *records.Store
	tracker    *conversations.Tracker
	issuer     *auth.Issuer
	metrics    *metrics.Metrics
	wsHub      *WSHub
	wsUpgrader websocket.Upgrader
	nowFn      func() time.Time
	logger     *slog.Logger
}

func New(
	config *config.Config,
	records *records.Store,
	tracker *conversations.Tracker,
	issuer *auth.Issuer,
	metrics *metrics.Metrics,
	wsHub *WSHub,
	wsUpgrader websocket.Upgrader,
) *Handlers {
	return &Handlers{
		config:     config,
		records:    records,
		tracker:    tracker,
		issuer:     issuer,
		metrics:    metrics,
		wsHub:      wsHub,
		wsUpgrader: wsUpgrader,
		nowFn:      time.Now,
		logger:     slog.Default(),
	}
}
