package projection

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/playhead-lab/playhead/internal/progress"
)

// Service implements the read path: committed progress and store diagnostics.
// Reads never touch the pending queue.
type Service struct {
	store *progress.Store
}

// NewService creates a new projection service.
func NewService(store *progress.Store) *Service {
	if store == nil {
		panic("projection: store must not be nil")
	}
	return &Service{store: store}
}

// RegisterRoutes registers the read-path routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/progress/:user_id/:video_id", s.GetProgressHandler)
	r.GET("/v1/stats", s.StatsHandler)
}

// ProgressResponse is the committed-progress read model. When no committed
// record exists, furthest_seconds is zero and updated_at is omitted.
// Absence is a normal result, not an error.
type ProgressResponse struct {
	UserID          string          `json:"user_id"`
	VideoID         string          `json:"video_id"`
	FurthestSeconds decimal.Decimal `json:"furthest_seconds"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}
