package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"runtime-observer/src/models"
	"runtime-observer/src/serializers"

	"github.com/gin-gonic/gin"
)

// submitTimeout bounds how long a REST push waits for queue space
const submitTimeout = 2 * time.Second

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	body := gin.H{
		"status":        "ok",
		"connections":   s.connections.Load(),
		"strategies":    s.views.ItemCount(),
		"latest_update": s.lastUpdate.Load(),
	}
	if s.Metrics != nil {
		body["processing_metrics"] = s.Metrics()
	}
	c.JSON(http.StatusOK, body)
}

// -----------------------------------------------------------------------------

func (s *APIServer) listStrategies(c *gin.Context) {
	views := s.allViews()
	out := make([]models.MStrategySummary, 0, len(views))
	for _, view := range views {
		out = append(out, summarize(view))
	}
	c.JSON(http.StatusOK, out)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getView(c *gin.Context) {
	if view, ok := s.viewOr404(c); ok {
		c.JSON(http.StatusOK, view)
	}
}

func (s *APIServer) getChannels(c *gin.Context) {
	if view, ok := s.viewOr404(c); ok {
		c.JSON(http.StatusOK, view.Channels)
	}
}

func (s *APIServer) getPipeline(c *gin.Context) {
	if view, ok := s.viewOr404(c); ok {
		c.JSON(http.StatusOK, view.Pipeline)
	}
}

func (s *APIServer) viewOr404(c *gin.Context) (models.MRuntimeView, bool) {
	id := c.Param("id")
	view, ok := s.lookup(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "no_snapshot", "strategy_id": id})
	}
	return view, ok
}

// -----------------------------------------------------------------------------

// postSnapshot accepts a JSON or protobuf Struct snapshot and queues it
func (s *APIServer) postSnapshot(c *gin.Context) {
	id := c.Param("id")
	if s.Sink == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "ingest_disabled"})
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxMessageSize))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"status": "invalid_payload", "error": err.Error()})
		return
	}

	payload, err := serializers.DecodeSnapshot(serializers.ForContentType(c.ContentType()), data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid_payload", "error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), submitTimeout)
	defer cancel()
	err = s.Sink.Submit(ctx, models.MSnapshot{StrategyID: id, Source: "rest", Payload: payload})
	if err != nil {
		s.Logger.Warning("REST snapshot for %s rejected: %v", id, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "queue_unavailable", "error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "strategy_id": id})
}
