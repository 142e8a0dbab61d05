package models

// IdeaModel is a content idea derived from one strategy angle.
type IdeaModel struct {
	Base
	Owned
	CompanyID   uint64      `json:"company_id"   gorm:"index;not null"`
	StrategyID  uint64      `json:"strategy_id"  gorm:"index"`
	AngleNumber int         `json:"angle_number"`
	Title       string      `json:"title"        gorm:"size:191;not null"`
	Description string      `json:"description"  gorm:"type:text"`
	Platforms   StringArray `json:"platforms"    gorm:"type:text"`
}

func (IdeaModel) TableName() string { return "ideas" }
