package api

import (
	"net/http"

	models "SignalFeed/internal/domain/models"
	"SignalFeed/internal/usecase"
	xhttp "SignalFeed/pkg/http"
	xlogger "SignalFeed/pkg/logger"

	"github.com/labstack/echo/v4"
)

// FeedHandler exposes the signal feed state and its mutators to rendering
// collaborators over HTTP.
type FeedHandler struct {
	logger    *xlogger.Logger
	feed      *usecase.Feed
	collector *usecase.FeedCollector
}

func NewFeedHandler(logger *xlogger.Logger, feed *usecase.Feed, collector *usecase.FeedCollector) *FeedHandler {
	return &FeedHandler{logger: logger, feed: feed, collector: collector}
}

func (h *FeedHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/feed")
	g.GET("", h.State)
	g.PUT("/filters", h.UpdateFilters)
	g.POST("/filters/reset", h.ResetFilters)
	g.POST("/more", h.LoadMore)
	g.PUT("/scope", h.UpdateScope)
	e.GET("/healthz", h.Health)
}

// State returns the filtered view plus loading/error flags.
func (h *FeedHandler) State(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.feed.State())
}

// UpdateFilters applies a partial filter update and returns the new filter.
func (h *FeedHandler) UpdateFilters(c echo.Context) error {
	req := &models.UpdateFiltersRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.feed.UpdateFilters(*req))
}

// ResetFilters restores the default filter configuration.
func (h *FeedHandler) ResetFilters(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.feed.ResetFilters())
}

// LoadMore requests the next history page for the current scope.
func (h *FeedHandler) LoadMore(c echo.Context) error {
	if err := h.feed.LoadMore(c.Request().Context()); err != nil {
		h.logger.Error("load more failed", xlogger.Error(err))
		// The feed stays usable; the error string is part of the state.
	}
	return xhttp.SuccessResponse(c, h.feed.State())
}

// UpdateScope replaces the watched asset set.
func (h *FeedHandler) UpdateScope(c echo.Context) error {
	req := &models.UpdateScopeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	assets := make([]models.Asset, len(req.Assets))
	for i, a := range req.Assets {
		assets[i] = models.Asset{ID: a.ID, Symbol: a.Symbol}
	}
	if err := h.feed.SetScope(c.Request().Context(), assets); err != nil {
		h.logger.Error("scope change fetch failed", xlogger.Error(err))
	}
	return xhttp.SuccessResponse(c, h.feed.State())
}

// Health reports process liveness and push channel state.
func (h *FeedHandler) Health(c echo.Context) error {
	status := map[string]interface{}{
		"status":    "ok",
		"connected": h.collector != nil && h.collector.IsConnected(),
	}
	return c.JSON(http.StatusOK, status)
}
