package models

import "time"

const (
	PostDraft     = "draft"
	PostScheduled = "scheduled"
	PostPublished = "published"
)

// PostModel is a generated piece of content for one platform.
type PostModel struct {
	Base
	Owned
	CompanyID   uint64      `json:"company_id"   gorm:"index;not null"`
	IdeaID      *uint64     `json:"idea_id"      gorm:"index"`
	Platform    string      `json:"platform"     gorm:"size:32;index"`
	Title       string      `json:"title"        gorm:"size:191"`
	Body        string      `json:"body"         gorm:"type:longtext"`
	Status      string      `json:"status"       gorm:"size:16;default:draft;index"`
	ScheduledAt *time.Time  `json:"scheduled_at"`
	MediaURLs   StringArray `json:"media_urls"   gorm:"type:text"`
}

func (PostModel) TableName() string { return "posts" }
