package projection

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// GetProgressHandler serves the committed progress for one (user, video) key.
func (s *Service) GetProgressHandler(c *gin.Context) {
	userID := c.Param("user_id")
	videoID := c.Param("video_id")

	rec, ok := s.store.Committed(userID, videoID)
	if !ok {
		c.JSON(http.StatusOK, ProgressResponse{
			UserID:          userID,
			VideoID:         videoID,
			FurthestSeconds: decimal.Zero,
		})
		return
	}

	updatedAt := rec.UpdatedAt
	c.JSON(http.StatusOK, ProgressResponse{
		UserID:          rec.UserID,
		VideoID:         rec.VideoID,
		FurthestSeconds: rec.FurthestSeconds,
		UpdatedAt:       &updatedAt,
	})
}

// StatsHandler serves the store's diagnostic snapshot.
func (s *Service) StatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Stats())
}
