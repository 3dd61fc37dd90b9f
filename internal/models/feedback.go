package models

import "time"

// Feedback is an instructor rating of a generated artifact.
type Feedback struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	FeedbackType     string    `gorm:"size:32;not null;index" json:"feedback_type"`
	GeneratedContent string    `gorm:"type:text;not null" json:"generated_content"`
	Rating           int       `gorm:"not null" json:"rating"`
	Suggestion       string    `gorm:"type:text" json:"suggestion,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// All lists every model the dev store migrates.
func All() []any {
	return []any{&GeneratedAssignment{}, &Feedback{}}
}
