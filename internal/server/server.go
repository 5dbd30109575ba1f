// Package server exposes the resolution pipeline over HTTP.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/cobalt/internal/core"
	"github.com/agenthands/cobalt/internal/core/model"
)

type Server struct {
	Pipeline *core.Pipeline
	Logger   *zap.Logger
}

func NewServer(pipeline *core.Pipeline, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Pipeline: pipeline,
		Logger:   logger,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.Health)
	r.POST("/resolve", s.Resolve)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ResolveRequest carries one document: optional source text plus the
// recognizer's mention feed. An empty feed is valid and resolves to an
// empty entity list.
type ResolveRequest struct {
	Text     string          `json:"text"`
	Mentions []model.Mention `json:"mentions"`
}

func (s *Server) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	doc := model.Document{Text: req.Text, Mentions: req.Mentions}
	result, err := s.Pipeline.Resolve(c.Request.Context(), doc)
	if err != nil {
		s.Logger.Error("failed to resolve document", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve document"})
		return
	}

	c.JSON(http.StatusOK, result)
}
