package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/situated-learning/internal/models"
)

func TestGeneratedAssignmentRepositoryLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGeneratedAssignmentRepository(db)
	ctx := context.Background()

	older := &models.GeneratedAssignment{CourseTitle: "Intro to AI (CS101)", Topic: "Search", Text: "older", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.GeneratedAssignment{CourseTitle: "Intro to AI (CS101)", Topic: "ML", Text: "newer"}
	other := &models.GeneratedAssignment{CourseTitle: "Databases (CS205)", Topic: "SQL", Text: "other"}
	for _, a := range []*models.GeneratedAssignment{older, newer, other} {
		require.NoError(t, repo.Create(ctx, a))
	}
	require.Len(t, newer.ID, 36)

	list, err := repo.ListByCourse(ctx, "Intro to AI (CS101)")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "ML", list[0].Topic, "expected newest record first")

	found, err := repo.GetByID(ctx, newer.ID)
	require.NoError(t, err)
	require.False(t, found.HasRubric())

	require.NoError(t, repo.SaveRubric(ctx, newer.ID, datatypes.JSON(`{"rubric_name":"R"}`)))
	found, err = repo.GetByID(ctx, newer.ID)
	require.NoError(t, err)
	require.True(t, found.HasRubric())
	require.JSONEq(t, `{"rubric_name":"R"}`, string(found.Rubric))
}

func TestGeneratedAssignmentRepositoryNotFound(t *testing.T) {
	repo := NewGeneratedAssignmentRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, repo.SaveRubric(context.Background(), "missing", datatypes.JSON(`{}`)), ErrNotFound)
}

func TestFeedbackRepositoryFiltersByType(t *testing.T) {
	repo := NewFeedbackRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Feedback{FeedbackType: "assignment", GeneratedContent: "a", Rating: 4}))
	require.NoError(t, repo.Create(ctx, &models.Feedback{FeedbackType: "rubric", GeneratedContent: "r", Rating: 2, Suggestion: "More categories"}))

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	rubrics, err := repo.List(ctx, "rubric")
	require.NoError(t, err)
	require.Len(t, rubrics, 1)
	require.Equal(t, "More categories", rubrics[0].Suggestion)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}
