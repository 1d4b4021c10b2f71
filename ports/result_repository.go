package ports

import (
	"context"

	"studyfeedback/domain/core"
	"studyfeedback/domain/result"
)

// ResultRepository stores enriched participant results
type ResultRepository interface {
	// Save inserts or replaces a result keyed by its ID
	Save(ctx context.Context, r *result.EnrichedResult) error

	// GetByID returns one result, or core.ErrResultNotFound
	GetByID(ctx context.Context, id core.ResultID) (*result.EnrichedResult, error)

	// ListByStudy returns every result of a study ordered by creation time
	ListByStudy(ctx context.Context, studyID core.StudyID) ([]*result.EnrichedResult, error)
}
