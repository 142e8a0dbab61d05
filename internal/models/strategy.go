package models

// Angle is one content angle proposed for a strategy.
type Angle struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// StrategyModel groups the angles generated for a company.
type StrategyModel struct {
	Base
	Owned
	CompanyID uint64  `json:"company_id" gorm:"index;not null"`
	Title     string  `json:"title"      gorm:"size:191;not null"`
	Summary   string  `json:"summary"    gorm:"type:text"`
	Angles    []Angle `json:"angles"     gorm:"type:longtext;serializer:json"`
}

func (StrategyModel) TableName() string { return "strategies" }

// Angle returns the angle with number n.
func (s StrategyModel) Angle(n int) (Angle, bool) {
	for _, a := range s.Angles {
		if a.Number == n {
			return a, true
		}
	}
	return Angle{}, false
}
