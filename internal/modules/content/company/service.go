package company

import (
	"errors"

	"github.com/contentflow/core/internal/models"
	"github.com/contentflow/core/internal/modules/automation"
	"github.com/contentflow/core/internal/pkg/pagination"
	"github.com/contentflow/core/internal/pkg/platform"
	"github.com/contentflow/core/internal/pkg/response"
	"gorm.io/gorm"
)

type CreateCompanyDTO struct {
	Name        string   `json:"name"        binding:"required"`
	Description string   `json:"description"`
	Website     string   `json:"website"`
	Industry    string   `json:"industry"`
	Audience    string   `json:"audience"`
	Voice       string   `json:"voice"`
	Values      []string `json:"values"`
	Platforms   []string `json:"platforms"`
}

type UpdateCompanyDTO struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Website     *string  `json:"website"`
	Industry    *string  `json:"industry"`
	Audience    *string  `json:"audience"`
	Voice       *string  `json:"voice"`
	Values      []string `json:"values"`
	Platforms   []string `json:"platforms"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) List(userID string, q pagination.Query, search string) ([]models.CompanyModel, response.Pagination, error) {
	db := s.db.Model(&models.CompanyModel{}).Where("user_id = ?", userID)
	if search != "" {
		db = db.Where("name LIKE ?", "%"+search+"%")
	}
	if q.Order == "" {
		q.Order = "created_at DESC"
	}
	var items []models.CompanyModel
	pag, err := pagination.Paginate(db, q, &items)
	return items, pag, err
}

func (s *Service) GetByID(userID string, id uint64) (*models.CompanyModel, error) {
	var c models.CompanyModel
	if err := s.db.Where("user_id = ?", userID).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *Service) Create(userID string, dto *CreateCompanyDTO) (*models.CompanyModel, error) {
	c := models.CompanyModel{
		Owned:       models.Owned{UserID: userID},
		Name:        dto.Name,
		Description: dto.Description,
		Website:     dto.Website,
		Industry:    dto.Industry,
		Audience:    dto.Audience,
		Voice:       dto.Voice,
		Values:      models.StringArray(dto.Values),
		Platforms:   canonicalPlatforms(dto.Platforms),
	}
	return &c, s.db.Create(&c).Error
}

func (s *Service) Update(userID string, id uint64, dto *UpdateCompanyDTO) (*models.CompanyModel, error) {
	c, err := s.GetByID(userID, id)
	if err != nil || c == nil {
		return c, err
	}
	updates := map[string]interface{}{}
	if dto.Name != nil {
		updates["name"] = *dto.Name
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if dto.Website != nil {
		updates["website"] = *dto.Website
	}
	if dto.Industry != nil {
		updates["industry"] = *dto.Industry
	}
	if dto.Audience != nil {
		updates["audience"] = *dto.Audience
	}
	if dto.Voice != nil {
		updates["voice"] = *dto.Voice
	}
	if dto.Values != nil {
		updates["values"] = models.StringArray(dto.Values)
	}
	if dto.Platforms != nil {
		updates["platforms"] = canonicalPlatforms(dto.Platforms)
	}
	if len(updates) == 0 {
		return c, nil
	}
	return c, s.db.Model(c).Updates(updates).Error
}

// Delete removes the company with its strategies, ideas and posts.
func (s *Service) Delete(userID string, id uint64) (bool, error) {
	found := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ?", userID).Delete(&models.CompanyModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		found = true
		for _, m := range []interface{}{&models.StrategyModel{}, &models.IdeaModel{}, &models.PostModel{}} {
			if err := tx.Where("company_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return found, err
}

// canonicalPlatforms keeps the recognised platforms in slot order.
func canonicalPlatforms(raw []string) models.StringArray {
	return models.StringArray(platform.Normalize(raw).Names())
}

// BrandOf is the brand profile angle generation receives for c.
func BrandOf(c *models.CompanyModel) automation.Brand {
	return automation.Brand{
		Name:        c.Name,
		Description: c.Description,
		Audience:    c.Audience,
		Voice:       c.Voice,
		Website:     c.Website,
		Values:      []string(c.Values),
	}
}
