package post

import (
	"errors"
	"strings"

	"github.com/contentflow/core/internal/models"
	"github.com/contentflow/core/internal/pkg/pagination"
	"github.com/contentflow/core/internal/pkg/platform"
	"github.com/contentflow/core/internal/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrCompanyNotFound = errors.New("company not found")
	ErrUnknownPlatform = errors.New("unknown platform")
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) List(userID string, lq ListQuery, q pagination.Query) ([]models.PostModel, response.Pagination, error) {
	db := s.db.Model(&models.PostModel{}).Where("user_id = ?", userID)
	if lq.CompanyID != 0 {
		db = db.Where("company_id = ?", lq.CompanyID)
	}
	if lq.IdeaID != 0 {
		db = db.Where("idea_id = ?", lq.IdeaID)
	}
	if lq.Status != "" {
		db = db.Where("status = ?", lq.Status)
	}
	if lq.Platform != "" {
		db = db.Where("platform = ?", strings.ToLower(strings.TrimSpace(lq.Platform)))
	}
	if q.Order == "" {
		q.Order = "created_at DESC"
	}
	var items []models.PostModel
	pag, err := pagination.Paginate(db, q, &items)
	return items, pag, err
}

func (s *Service) GetByID(userID string, id uint64) (*models.PostModel, error) {
	var p models.PostModel
	if err := s.db.Where("user_id = ?", userID).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) Create(userID string, dto *CreatePostDTO) (*models.PostModel, error) {
	name, err := canonicalPlatform(dto.Platform)
	if err != nil {
		return nil, err
	}
	status := dto.Status
	if status == "" {
		status = models.PostDraft
	}
	if err := checkSchedule(status, dto.ScheduledAt); err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.Model(&models.CompanyModel{}).
		Where("id = ? AND user_id = ?", dto.CompanyID, userID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrCompanyNotFound
	}

	p := models.PostModel{
		Owned:       models.Owned{UserID: userID},
		CompanyID:   dto.CompanyID,
		IdeaID:      dto.IdeaID,
		Platform:    name,
		Title:       dto.Title,
		Body:        dto.Body,
		Status:      status,
		ScheduledAt: dto.ScheduledAt,
		MediaURLs:   models.StringArray(dto.MediaURLs),
	}
	return &p, s.db.Create(&p).Error
}

func (s *Service) Update(userID string, id uint64, dto *UpdatePostDTO) (*models.PostModel, error) {
	p, err := s.GetByID(userID, id)
	if err != nil || p == nil {
		return p, err
	}
	updates := map[string]interface{}{}
	if dto.Platform != nil {
		name, err := canonicalPlatform(*dto.Platform)
		if err != nil {
			return nil, err
		}
		updates["platform"] = name
	}
	if dto.Title != nil {
		updates["title"] = *dto.Title
	}
	if dto.Body != nil {
		updates["body"] = *dto.Body
	}
	status, at := p.Status, p.ScheduledAt
	if dto.Status != nil {
		status = *dto.Status
		updates["status"] = status
	}
	if dto.ScheduledAt != nil {
		at = dto.ScheduledAt
		updates["scheduled_at"] = *dto.ScheduledAt
	}
	if err := checkSchedule(status, at); err != nil {
		return nil, err
	}
	if dto.MediaURLs != nil {
		updates["media_urls"] = models.StringArray(dto.MediaURLs)
	}
	if len(updates) == 0 {
		return p, nil
	}
	return p, s.db.Model(p).Updates(updates).Error
}

func (s *Service) Delete(userID string, id uint64) (bool, error) {
	res := s.db.Where("user_id = ?", userID).Delete(&models.PostModel{}, id)
	return res.RowsAffected > 0, res.Error
}

func canonicalPlatform(raw string) (string, error) {
	idx := platform.Index(raw)
	if idx < 0 {
		return "", ErrUnknownPlatform
	}
	return platform.Order[idx], nil
}
