package models

// CompanyModel is a brand profile that content is generated for.
type CompanyModel struct {
	Base
	Owned
	Name        string      `json:"name"        gorm:"size:191;not null"`
	Description string      `json:"description" gorm:"type:text"`
	Website     string      `json:"website"     gorm:"size:512"`
	Industry    string      `json:"industry"    gorm:"size:191"`
	Audience    string      `json:"audience"    gorm:"type:text"`
	Voice       string      `json:"voice"       gorm:"size:191"`
	Values      StringArray `json:"values"      gorm:"type:text"`
	Platforms   StringArray `json:"platforms"   gorm:"type:text"`
}

func (CompanyModel) TableName() string { return "companies" }
