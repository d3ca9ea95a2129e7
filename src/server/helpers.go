package server

import (
	"sort"
	"time"

	"runtime-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// -----------------------------------------------------------------------------

// requestID tags every request, reusing a caller supplied id
func (s *APIServer) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// -----------------------------------------------------------------------------

func (s *APIServer) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s -> %d in %v (request %s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.GetString("request_id"))
	}
}

// -----------------------------------------------------------------------------

// lookup returns the cached view for a strategy, if it has not expired
func (s *APIServer) lookup(strategyID string) (models.MRuntimeView, bool) {
	obj, ok := s.views.Get(strategyID)
	if !ok {
		return models.MRuntimeView{}, false
	}
	view, ok := obj.(models.MRuntimeView)
	return view, ok
}

// -----------------------------------------------------------------------------

// allViews returns every live cached view ordered by strategy id
func (s *APIServer) allViews() []models.MRuntimeView {
	items := s.views.Items()
	views := make([]models.MRuntimeView, 0, len(items))
	for _, item := range items {
		if view, ok := item.Object.(models.MRuntimeView); ok {
			views = append(views, view)
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].StrategyID < views[j].StrategyID })
	return views
}

// -----------------------------------------------------------------------------

func summarize(view models.MRuntimeView) models.MStrategySummary {
	receiving := 0
	for _, ch := range view.Channels {
		if ch.IsReceivingData != nil && *ch.IsReceivingData {
			receiving++
		}
	}
	return models.MStrategySummary{
		StrategyID:        view.StrategyID,
		Source:            view.Source,
		UpdatedAt:         view.UpdatedAt,
		Channels:          len(view.Channels),
		ReceivingChannels: receiving,
	}
}
