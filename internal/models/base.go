package models

import (
	"time"

	"gorm.io/gorm"
)

// Base is the base model for all entities. IDs are numeric so workflow
// payloads can reference records as company_id=12 and the like.
type Base struct {
	ID        uint64         `json:"id"       gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time      `json:"created"`
	UpdatedAt time.Time      `json:"modified"`
	DeletedAt gorm.DeletedAt `json:"-"        gorm:"index"`
}

// Owned scopes a record to the user who created it.
type Owned struct {
	UserID string `json:"user_id" gorm:"size:64;index;not null"`
}

// All returns every model managed by migrations.
func All() []interface{} {
	return []interface{}{
		&CompanyModel{},
		&StrategyModel{},
		&IdeaModel{},
		&PostModel{},
		&ActivityModel{},
	}
}
