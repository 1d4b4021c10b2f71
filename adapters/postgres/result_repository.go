package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"studyfeedback/domain/core"
	"studyfeedback/domain/result"
	"studyfeedback/internal/errors"
	"studyfeedback/ports"

	"github.com/jmoiron/sqlx"
)

// ResultRepositoryImpl implements ResultRepository. The full result is kept as
// a JSON payload; id, study and participant are lifted into columns for lookup.
type ResultRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &ResultRepositoryImpl{db: db}
}

type resultRow struct {
	ID            string    `db:"id"`
	StudyID       string    `db:"study_id"`
	ParticipantID string    `db:"participant_id"`
	Payload       []byte    `db:"payload"`
	CreatedAt     time.Time `db:"created_at"`
}

func (row resultRow) decode() (*result.EnrichedResult, error) {
	var r result.EnrichedResult
	if err := json.Unmarshal(row.Payload, &r); err != nil {
		return nil, errors.Wrapf(err, "decode result %s", row.ID)
	}
	r.ID = core.ResultID(row.ID)
	r.StudyID = core.StudyID(row.StudyID)
	r.ParticipantID = core.ParticipantID(row.ParticipantID)
	return &r, nil
}

// Save inserts or replaces a result
func (r *ResultRepositoryImpl) Save(ctx context.Context, res *result.EnrichedResult) error {
	if err := res.Validate(); err != nil {
		return errors.ValidationError("invalid enriched result", err)
	}
	if res.ID.String() == "" {
		res.ID = core.ResultID(core.NewID())
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return errors.Wrap(err, "encode result")
	}
	createdAt := time.Now().UTC()
	if res.CompletedAt != nil {
		createdAt = res.CompletedAt.UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO enriched_results (id, study_id, participant_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			study_id = excluded.study_id,
			participant_id = excluded.participant_id,
			payload = excluded.payload
	`, res.ID.String(), res.StudyID.String(), res.ParticipantID.String(), string(payload), createdAt)
	if err != nil {
		return errors.DatabaseError("save enriched result", err)
	}
	return nil
}

// GetByID returns one result
func (r *ResultRepositoryImpl) GetByID(ctx context.Context, id core.ResultID) (*result.EnrichedResult, error) {
	var row resultRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, study_id, participant_id, payload, created_at
		FROM enriched_results
		WHERE id = $1
	`, id.String())

	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("enriched result", core.NewNotFoundError("enriched result", id.String()))
	}
	if err != nil {
		return nil, errors.DatabaseError("load enriched result", err)
	}
	return row.decode()
}

// ListByStudy returns every result of a study, oldest first
func (r *ResultRepositoryImpl) ListByStudy(ctx context.Context, studyID core.StudyID) ([]*result.EnrichedResult, error) {
	var rows []resultRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, study_id, participant_id, payload, created_at
		FROM enriched_results
		WHERE study_id = $1
		ORDER BY created_at ASC, id ASC
	`, studyID.String())
	if err != nil {
		return nil, errors.DatabaseError("list enriched results", err)
	}

	results := make([]*result.EnrichedResult, 0, len(rows))
	for _, row := range rows {
		res, err := row.decode()
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
