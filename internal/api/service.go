// Package api exposes the indexer over HTTP.
package api

import (
	"github.com/aevon-lab/aggindex/internal/indexer"
	"github.com/gin-gonic/gin"
)

type Service struct {
	indexer          *indexer.Indexer
	maxBodySizeBytes int
}

func NewService(idx *indexer.Indexer, maxBodySizeMB int) *Service {
	if idx == nil {
		panic("api: indexer must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1
	}
	return &Service{
		indexer:          idx,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the document, signal and index routes. Named
// operations take precedence over the /:type routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.PUT("/signal/:type/:id", s.SignalHandler)
	r.PUT("/signal", s.SignalHandler)

	r.POST("/upsert", s.handle(s.indexer.Upsert))
	r.POST("/update", s.handle(s.indexer.Update))
	r.POST("/merge", s.handle(s.indexer.Merge))
	r.POST("/remove", s.handle(s.indexer.Remove))
	r.POST("/add", s.handle(s.indexer.Add))

	r.POST("/indices", s.CreateIndexHandler)
	r.POST("/indices/:index", s.CreateIndexHandler)
	r.DELETE("/indices", s.DeleteIndexHandler)
	r.DELETE("/indices/:index", s.DeleteIndexHandler)

	r.POST("/:type", s.handle(s.indexer.Upsert))
	r.PUT("/:type", s.handle(s.indexer.Add))
	r.GET("/:type/:id", s.GetHandler)
	r.POST("/:type/:id", s.handle(s.indexer.Update))
	r.DELETE("/:type/:id", s.handle(s.indexer.Remove))
}
