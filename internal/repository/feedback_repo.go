package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/situated-learning/internal/models"
)

// FeedbackRepository stores artifact ratings.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	List(ctx context.Context, feedbackType string) ([]models.Feedback, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository instantiates a GORM-backed repository.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

// List returns feedback newest first, filtered by type when one is given.
func (r *feedbackRepository) List(ctx context.Context, feedbackType string) ([]models.Feedback, error) {
	query := r.db.WithContext(ctx).Model(&models.Feedback{})
	if feedbackType != "" {
		query = query.Where("feedback_type = ?", feedbackType)
	}

	var records []models.Feedback
	if err := query.Order("created_at DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}
