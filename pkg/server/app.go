package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "TIKR/internal/domain/repository"
	"TIKR/internal/handler/api"
	"TIKR/internal/handler/ws"
	"TIKR/internal/usecase"
	"TIKR/pkg/config"
	xhttp "TIKR/pkg/http"
	applogger "TIKR/pkg/logger"

	"github.com/labstack/echo/v4"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	handler    *api.PredictionsEchoHandler
	hub        *ws.Hub
	refresher  *usecase.Refresher
	manager    *usecase.PredictionManager
	store      drepo.DocumentStore
	events     drepo.EventPublisher
	history    drepo.HistoryStore
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. Hub, refresher,
// events, and history may be nil when disabled in config.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	handler *api.PredictionsEchoHandler,
	hub *ws.Hub,
	refresher *usecase.Refresher,
	manager *usecase.PredictionManager,
	store drepo.DocumentStore,
	events drepo.EventPublisher,
	history drepo.HistoryStore,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		handler:   handler,
		hub:       hub,
		refresher: refresher,
		manager:   manager,
		store:     store,
		events:    events,
		history:   history,
	}
}

// RegisterRoutes registers the API, health, and WebSocket routes.
func (a *App) RegisterRoutes(e *echo.Echo) {
	a.handler.RegisterRoutes(e)
	if a.hub != nil {
		a.hub.RegisterRoutes(e)
	}
	e.GET("/healthz", a.health)
}

func (a *App) health(c echo.Context) error {
	ctx := c.Request().Context()
	status := map[string]string{"store": "ok"}
	healthy := true
	if err := a.store.Health(ctx); err != nil {
		status["store"] = err.Error()
		healthy = false
	}
	if a.history != nil {
		status["history"] = "ok"
		if err := a.history.Health(ctx); err != nil {
			status["history"] = err.Error()
			healthy = false
		}
	}
	if !healthy {
		return xhttp.DataResponse(c, 503, status)
	}
	return xhttp.SuccessResponse(c, status)
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.logger, time.Second),
	)

	if a.refresher != nil {
		a.refresher.Start(ctx)
		a.logger.Info("refresher started",
			applogger.Strings("tickers", a.cfg.Refresh.Tickers),
			applogger.Duration("interval", a.cfg.Refresh.Interval),
		)
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("listening", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	if a.refresher != nil {
		a.refresher.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.hub != nil {
		if err := a.hub.Close(); err != nil {
			a.logger.Warn("ws hub close error", applogger.Error(err))
		}
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Warn("event publisher close error", applogger.Error(err))
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("history close error", applogger.Error(err))
		}
	}
	if err := a.manager.Close(); err != nil {
		a.logger.Warn("manager close error", applogger.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close error", applogger.Error(err))
	}

	a.logger.Info("stopped")
	return nil
}
