package post

import (
	"fmt"
	"time"

	"github.com/contentflow/core/internal/models"
)

type CreatePostDTO struct {
	CompanyID   uint64     `json:"company_id"   binding:"required"`
	IdeaID      *uint64    `json:"idea_id"`
	Platform    string     `json:"platform"     binding:"required"`
	Title       string     `json:"title"`
	Body        string     `json:"body"         binding:"required"`
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	MediaURLs   []string   `json:"media_urls"`
}

// UpdatePostDTO updates a post; all fields are optional.
type UpdatePostDTO struct {
	Platform    *string    `json:"platform"`
	Title       *string    `json:"title"`
	Body        *string    `json:"body"`
	Status      *string    `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	MediaURLs   []string   `json:"media_urls"`
}

type ListQuery struct {
	CompanyID uint64 `form:"company_id"`
	IdeaID    uint64 `form:"idea_id"`
	Status    string `form:"status"`
	Platform  string `form:"platform"`
}

type previewResponse struct {
	ID       uint64 `json:"id"`
	Title    string `json:"title"`
	Platform string `json:"platform"`
	HTML     string `json:"html"`
}

// checkSchedule validates a status against its schedule time.
func checkSchedule(status string, at *time.Time) error {
	switch status {
	case models.PostDraft, models.PostPublished:
		return nil
	case models.PostScheduled:
		if at == nil || at.IsZero() {
			return fmt.Errorf("scheduled posts need scheduled_at")
		}
		return nil
	}
	return fmt.Errorf("unknown status %q", status)
}
