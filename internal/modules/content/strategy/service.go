package strategy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/contentflow/core/internal/models"
	"github.com/contentflow/core/internal/pkg/pagination"
	"github.com/contentflow/core/internal/pkg/response"
	"gorm.io/gorm"
)

var ErrCompanyNotFound = errors.New("company not found")

type CreateStrategyDTO struct {
	CompanyID uint64         `json:"company_id" binding:"required"`
	Title     string         `json:"title"      binding:"required"`
	Summary   string         `json:"summary"`
	Angles    []models.Angle `json:"angles"`
}

type UpdateStrategyDTO struct {
	Title   *string        `json:"title"`
	Summary *string        `json:"summary"`
	Angles  []models.Angle `json:"angles"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) List(userID string, companyID uint64, q pagination.Query) ([]models.StrategyModel, response.Pagination, error) {
	db := s.db.Model(&models.StrategyModel{}).Where("user_id = ?", userID)
	if companyID != 0 {
		db = db.Where("company_id = ?", companyID)
	}
	if q.Order == "" {
		q.Order = "created_at DESC"
	}
	var items []models.StrategyModel
	pag, err := pagination.Paginate(db, q, &items)
	return items, pag, err
}

func (s *Service) GetByID(userID string, id uint64) (*models.StrategyModel, error) {
	var st models.StrategyModel
	if err := s.db.Where("user_id = ?", userID).First(&st, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

func (s *Service) Create(userID string, dto *CreateStrategyDTO) (*models.StrategyModel, error) {
	var count int64
	if err := s.db.Model(&models.CompanyModel{}).
		Where("id = ? AND user_id = ?", dto.CompanyID, userID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrCompanyNotFound
	}
	angles, err := NumberAngles(dto.Angles)
	if err != nil {
		return nil, err
	}
	st := models.StrategyModel{
		Owned:     models.Owned{UserID: userID},
		CompanyID: dto.CompanyID,
		Title:     dto.Title,
		Summary:   dto.Summary,
		Angles:    angles,
	}
	return &st, s.db.Create(&st).Error
}

func (s *Service) Update(userID string, id uint64, dto *UpdateStrategyDTO) (*models.StrategyModel, error) {
	st, err := s.GetByID(userID, id)
	if err != nil || st == nil {
		return st, err
	}
	if dto.Title != nil {
		st.Title = *dto.Title
	}
	if dto.Summary != nil {
		st.Summary = *dto.Summary
	}
	if dto.Angles != nil {
		if st.Angles, err = NumberAngles(dto.Angles); err != nil {
			return nil, err
		}
	}
	return st, s.db.Select("title", "summary", "angles").Save(st).Error
}

func (s *Service) Delete(userID string, id uint64) (bool, error) {
	res := s.db.Where("user_id = ?", userID).Delete(&models.StrategyModel{}, id)
	return res.RowsAffected > 0, res.Error
}

// NumberAngles fills in missing angle numbers after the highest one given
// and sorts the result. Duplicate numbers are rejected.
func NumberAngles(in []models.Angle) ([]models.Angle, error) {
	out := make([]models.Angle, len(in))
	copy(out, in)
	seen := map[int]bool{}
	next := 1
	for _, a := range out {
		if a.Number < 0 {
			return nil, fmt.Errorf("angle number %d is negative", a.Number)
		}
		if a.Number > 0 {
			if seen[a.Number] {
				return nil, fmt.Errorf("duplicate angle number %d", a.Number)
			}
			seen[a.Number] = true
			next = max(next, a.Number+1)
		}
	}
	for i := range out {
		if out[i].Number == 0 {
			out[i].Number = next
			next++
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}
