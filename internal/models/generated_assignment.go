package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GeneratedAssignment is an assignment produced by the dev content service.
type GeneratedAssignment struct {
	ID                string         `gorm:"primaryKey;size:36" json:"id"`
	CourseTitle       string         `gorm:"size:255;not null;index" json:"course_title"`
	Topic             string         `gorm:"size:255;not null" json:"topic"`
	Domain            string         `gorm:"size:64" json:"domain"`
	ExtraInstructions string         `gorm:"type:text" json:"extra_instructions"`
	Text              string         `gorm:"type:text;not null" json:"text"`
	Rubric            datatypes.JSON `json:"rubric,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller left the id empty.
func (a *GeneratedAssignment) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Title is the list label of the assignment.
func (a GeneratedAssignment) Title() string {
	return a.Topic + " (" + a.CreatedAt.UTC().Format("2006-01-02 15:04") + ")"
}

// HasRubric reports whether a rubric was generated.
func (a GeneratedAssignment) HasRubric() bool {
	return len(a.Rubric) > 0 && string(a.Rubric) != "null"
}
