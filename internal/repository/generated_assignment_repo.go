package repository

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/situated-learning/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// GeneratedAssignmentRepository defines persistence operations for generated assignments.
type GeneratedAssignmentRepository interface {
	Create(ctx context.Context, assignment *models.GeneratedAssignment) error
	GetByID(ctx context.Context, id string) (models.GeneratedAssignment, error)
	ListByCourse(ctx context.Context, courseTitle string) ([]models.GeneratedAssignment, error)
	SaveRubric(ctx context.Context, id string, rubric datatypes.JSON) error
}

type generatedAssignmentRepository struct {
	db *gorm.DB
}

// NewGeneratedAssignmentRepository instantiates a GORM-backed repository.
func NewGeneratedAssignmentRepository(db *gorm.DB) GeneratedAssignmentRepository {
	return &generatedAssignmentRepository{db: db}
}

func (r *generatedAssignmentRepository) Create(ctx context.Context, assignment *models.GeneratedAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *generatedAssignmentRepository) GetByID(ctx context.Context, id string) (models.GeneratedAssignment, error) {
	var assignment models.GeneratedAssignment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.GeneratedAssignment{}, ErrNotFound
	}
	if err != nil {
		return models.GeneratedAssignment{}, err
	}

	return assignment, nil
}

// ListByCourse returns the course's assignments, newest first.
func (r *generatedAssignmentRepository) ListByCourse(ctx context.Context, courseTitle string) ([]models.GeneratedAssignment, error) {
	var assignments []models.GeneratedAssignment
	if err := r.db.WithContext(ctx).
		Where("course_title = ?", courseTitle).
		Order("created_at DESC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *generatedAssignmentRepository) SaveRubric(ctx context.Context, id string, rubric datatypes.JSON) error {
	result := r.db.WithContext(ctx).
		Model(&models.GeneratedAssignment{}).
		Where("id = ?", id).
		Update("rubric", rubric)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
