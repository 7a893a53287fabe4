package ingestion

import (
	"github.com/gin-gonic/gin"
	"github.com/playhead-lab/playhead/internal/progress"
)

type Service struct {
	store            *progress.Store
	maxBodySizeBytes int
}

func NewService(store *progress.Store, maxBodySizeMB int) *Service {
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		store:            store,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the write-path routes: sample submission and the
// on-demand merge trigger.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/progress", s.SubmitHandler)
	r.POST("/v1/merge", s.MergeHandler)
}
