package idea

import (
	"errors"

	"github.com/contentflow/core/internal/models"
	"github.com/contentflow/core/internal/pkg/pagination"
	"github.com/contentflow/core/internal/pkg/platform"
	"github.com/contentflow/core/internal/pkg/response"
	"gorm.io/gorm"
)

var ErrStrategyNotFound = errors.New("strategy not found")

type CreateIdeaDTO struct {
	StrategyID  uint64   `json:"strategy_id"  binding:"required"`
	AngleNumber int      `json:"angle_number"`
	Title       string   `json:"title"        binding:"required"`
	Description string   `json:"description"`
	Platforms   []string `json:"platforms"`
}

type UpdateIdeaDTO struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	AngleNumber *int     `json:"angle_number"`
	Platforms   []string `json:"platforms"`
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	CompanyID  uint64
	StrategyID uint64
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) List(userID string, f ListFilter, q pagination.Query) ([]models.IdeaModel, response.Pagination, error) {
	db := s.db.Model(&models.IdeaModel{}).Where("user_id = ?", userID)
	if f.CompanyID != 0 {
		db = db.Where("company_id = ?", f.CompanyID)
	}
	if f.StrategyID != 0 {
		db = db.Where("strategy_id = ?", f.StrategyID)
	}
	if q.Order == "" {
		q.Order = "created_at DESC"
	}
	var items []models.IdeaModel
	pag, err := pagination.Paginate(db, q, &items)
	return items, pag, err
}

func (s *Service) GetByID(userID string, id uint64) (*models.IdeaModel, error) {
	var idea models.IdeaModel
	if err := s.db.Where("user_id = ?", userID).First(&idea, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &idea, nil
}

// Create stores an idea under its strategy; the company is taken from the
// strategy.
func (s *Service) Create(userID string, dto *CreateIdeaDTO) (*models.IdeaModel, error) {
	var st models.StrategyModel
	err := s.db.Where("user_id = ?", userID).First(&st, dto.StrategyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStrategyNotFound
	}
	if err != nil {
		return nil, err
	}
	idea := models.IdeaModel{
		Owned:       models.Owned{UserID: userID},
		CompanyID:   st.CompanyID,
		StrategyID:  st.ID,
		AngleNumber: dto.AngleNumber,
		Title:       dto.Title,
		Description: dto.Description,
		Platforms:   models.StringArray(platform.Normalize(dto.Platforms).Names()),
	}
	return &idea, s.db.Create(&idea).Error
}

func (s *Service) Update(userID string, id uint64, dto *UpdateIdeaDTO) (*models.IdeaModel, error) {
	idea, err := s.GetByID(userID, id)
	if err != nil || idea == nil {
		return idea, err
	}
	updates := map[string]interface{}{}
	if dto.Title != nil {
		updates["title"] = *dto.Title
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if dto.AngleNumber != nil {
		updates["angle_number"] = *dto.AngleNumber
	}
	if dto.Platforms != nil {
		updates["platforms"] = models.StringArray(platform.Normalize(dto.Platforms).Names())
	}
	if len(updates) == 0 {
		return idea, nil
	}
	return idea, s.db.Model(idea).Updates(updates).Error
}

func (s *Service) Delete(userID string, id uint64) (bool, error) {
	res := s.db.Where("user_id = ?", userID).Delete(&models.IdeaModel{}, id)
	return res.RowsAffected > 0, res.Error
}
