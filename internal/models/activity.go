package models

import "time"

// Activity statuses. Entries start queued and settle once the outcome of the
// delivery or of the job it started is known. Cancelled marks work the user
// stopped on purpose and is not a failure.
const (
	ActivityQueued    = "queued"
	ActivityOK        = "ok"
	ActivityError     = "error"
	ActivityCancelled = "cancelled"
)

// ActivityModel is one entry of a user's delivery history. It is a display
// cache; the job store and the workflows stay authoritative.
type ActivityModel struct {
	Base
	Owned
	Kind       string    `json:"kind"        gorm:"size:64;index;not null"`
	RequestID  string    `json:"request_id"  gorm:"size:64;uniqueIndex;not null"`
	AssetCount int       `json:"asset_count"`
	Status     string    `json:"status"      gorm:"size:16;index;not null"`
	Message    string    `json:"message"     gorm:"type:text"`
	HTTPStatus int       `json:"http_status"`
	Attempts   int       `json:"attempts"`
	Timestamp  time.Time `json:"timestamp"   gorm:"index"`
}

func (ActivityModel) TableName() string { return "activities" }
