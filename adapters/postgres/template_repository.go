package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"studyfeedback/domain/core"
	"studyfeedback/internal/errors"
	"studyfeedback/ports"

	"github.com/jmoiron/sqlx"
)

// TemplateRepositoryImpl implements TemplateRepository over sqlx. The queries
// run unchanged on PostgreSQL and SQLite.
type TemplateRepositoryImpl struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sqlx.DB) ports.TemplateRepository {
	return &TemplateRepositoryImpl{db: db}
}

// Save creates or replaces the template of a study
func (r *TemplateRepositoryImpl) Save(ctx context.Context, tmpl *ports.FeedbackTemplate) error {
	if tmpl.ID == "" {
		tmpl.ID = core.TemplateID(core.NewID())
	}
	if tmpl.UpdatedAt.IsZero() {
		tmpl.UpdatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feedback_templates (id, study_id, body, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (study_id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`, tmpl.ID.String(), tmpl.StudyID.String(), tmpl.Body, tmpl.UpdatedAt)
	if err != nil {
		return errors.DatabaseError("save feedback template", err)
	}
	return nil
}

// GetByStudy returns the template of a study
func (r *TemplateRepositoryImpl) GetByStudy(ctx context.Context, studyID core.StudyID) (*ports.FeedbackTemplate, error) {
	var tmpl ports.FeedbackTemplate
	err := r.db.GetContext(ctx, &tmpl, `
		SELECT id, study_id, body, updated_at
		FROM feedback_templates
		WHERE study_id = $1
	`, studyID.String())

	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("feedback template", fmt.Errorf("%w for study %s", core.ErrTemplateNotFound, studyID))
	}
	if err != nil {
		return nil, errors.DatabaseError("load feedback template", err)
	}
	return &tmpl, nil
}
