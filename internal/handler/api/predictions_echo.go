package api

import (
	"errors"
	"strings"

	models "TIKR/internal/domain/models"
	drepo "TIKR/internal/domain/repository"
	"TIKR/internal/service/ratelimit"
	"TIKR/internal/usecase"
	xhttp "TIKR/pkg/http"
	xlogger "TIKR/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Per-client budget for the predictions endpoint. A forced refresh fans out
// to the inference service, so bursts are kept small.
const (
	rateCapacity  = 10
	rateRefillSec = 2
)

// PredictionsEchoHandler exposes the prediction and watchlist operations over HTTP.
type PredictionsEchoHandler struct {
	logger     *xlogger.Logger
	manager    *usecase.PredictionManager
	watchlists *usecase.WatchlistManager
	history    drepo.HistoryStore
	limiter    *ratelimit.Limiter
}

func NewPredictionsEchoHandler(
	logger *xlogger.Logger,
	manager *usecase.PredictionManager,
	watchlists *usecase.WatchlistManager,
	history drepo.HistoryStore,
) *PredictionsEchoHandler {
	return &PredictionsEchoHandler{
		logger:     logger,
		manager:    manager,
		watchlists: watchlists,
		history:    history,
		limiter:    ratelimit.New(),
	}
}

func (h *PredictionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/predictions", h.Predictions)
	g.GET("/predictions/:ticker/history", h.History)
	g.GET("/watchlist", h.Watchlist)
	g.POST("/watchlist/toggle", h.ToggleWatchlist)
}

func (h *PredictionsEchoHandler) Predictions(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP(), rateCapacity, rateRefillSec) {
		return xhttp.DataResponse(c, 429, "rate limit exceeded")
	}

	req := &models.PredictionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tickers := strings.Split(req.Symbols, ",")

	records, err := h.manager.GetPredictions(c.Request().Context(), tickers, req.Force)
	if err != nil {
		if errors.Is(err, usecase.ErrAllFetchesFailed) {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError(
				"ERR_ALL_FETCHES_FAILED", "symbols", "no predictions available for the requested symbols", 502,
			).WithError(err))
		}
		h.logger.Error("predictions usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, records)
}

func (h *PredictionsEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	if ticker == "" {
		return xhttp.BadRequestResponse(c, "ticker is required")
	}
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("history is not enabled"))
	}

	rows, err := h.history.Query(c.Request().Context(), ticker, req.Limit)
	if err != nil {
		h.logger.Error("history query error",
			xlogger.String("ticker", ticker),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PredictionsEchoHandler) Watchlist(c echo.Context) error {
	req := &models.WatchlistRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	list, err := h.watchlists.Get(c.Request().Context(), req.UserID)
	if err != nil {
		if errors.Is(err, usecase.ErrMissingUser) {
			return xhttp.BadRequestResponse(c, "user_id is required")
		}
		h.logger.Error("watchlist usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, list)
}

func (h *PredictionsEchoHandler) ToggleWatchlist(c echo.Context) error {
	req := &models.WatchlistToggleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	list, err := h.watchlists.Toggle(c.Request().Context(), req.UserID, req.Ticker, req.Action == "add")
	if err != nil {
		if errors.Is(err, usecase.ErrMissingUser) {
			return xhttp.BadRequestResponse(c, "user_id is required")
		}
		h.logger.Error("watchlist toggle error",
			xlogger.String("user", req.UserID),
			xlogger.String("ticker", req.Ticker),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, list)
}
