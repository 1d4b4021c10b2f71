package ports

import (
	"context"
	"time"

	"studyfeedback/domain/core"
)

// TemplateRepository stores the feedback template authored for each study
type TemplateRepository interface {
	// Save creates or replaces the template of a study
	Save(ctx context.Context, tmpl *FeedbackTemplate) error

	// GetByStudy returns the template of a study, or core.ErrTemplateNotFound
	GetByStudy(ctx context.Context, studyID core.StudyID) (*FeedbackTemplate, error)
}

// FeedbackTemplate is a stored template body
type FeedbackTemplate struct {
	ID        core.TemplateID `json:"id" db:"id"`
	StudyID   core.StudyID    `json:"studyId" db:"study_id"`
	Body      string          `json:"body" db:"body"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// Checksum identifies the template revision by its body
func (t *FeedbackTemplate) Checksum() core.Hash {
	return core.NewHash([]byte(t.Body))
}
