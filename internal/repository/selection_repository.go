package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Selection is one autosaved answer row for an in-progress attempt.
type Selection struct {
	TestID        uuid.UUID `json:"test_id"`
	StudentID     int       `json:"student_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	SelectedIndex int       `json:"selected_index"`
}

// SelectionRepository persists in-progress answer selections so an attempt
// survives a server restart.
type SelectionRepository struct {
	pool *pgxpool.Pool
}

// NewSelectionRepository creates a new SelectionRepository.
func NewSelectionRepository(pool *pgxpool.Pool) *SelectionRepository {
	return &SelectionRepository{pool: pool}
}

// Upsert creates or replaces a single selection.
func (r *SelectionRepository) Upsert(ctx context.Context, sel *Selection) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_selections (test_id, student_id, question_id, selected_index)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (test_id, student_id, question_id) DO UPDATE
		 SET selected_index = EXCLUDED.selected_index, updated_at = NOW()`,
		sel.TestID, sel.StudentID, sel.QuestionID, sel.SelectedIndex,
	)
	return err
}

// UpsertBatch bulk-writes selections in one round trip via UNNEST.
func (r *SelectionRepository) UpsertBatch(ctx context.Context, sels []Selection) error {
	if len(sels) == 0 {
		return nil
	}

	testIDs := make([]uuid.UUID, len(sels))
	studentIDs := make([]int, len(sels))
	questionIDs := make([]uuid.UUID, len(sels))
	indexes := make([]int, len(sels))
	for i, s := range sels {
		testIDs[i] = s.TestID
		studentIDs[i] = s.StudentID
		questionIDs[i] = s.QuestionID
		indexes[i] = s.SelectedIndex
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_selections (test_id, student_id, question_id, selected_index)
		 SELECT * FROM UNNEST($1::UUID[], $2::INT[], $3::UUID[], $4::INT[])
		 ON CONFLICT (test_id, student_id, question_id) DO UPDATE
		 SET selected_index = EXCLUDED.selected_index, updated_at = NOW()`,
		testIDs, studentIDs, questionIDs, indexes,
	)
	return err
}

// ListByTestAndStudent retrieves the autosaved selections of one attempt.
func (r *SelectionRepository) ListByTestAndStudent(ctx context.Context, testID uuid.UUID, studentID int) ([]Selection, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT test_id, student_id, question_id, selected_index
		 FROM attempt_selections
		 WHERE test_id = $1 AND student_id = $2`, testID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sels []Selection
	for rows.Next() {
		var s Selection
		if err := rows.Scan(&s.TestID, &s.StudentID, &s.QuestionID, &s.SelectedIndex); err != nil {
			return nil, err
		}
		sels = append(sels, s)
	}
	return sels, rows.Err()
}

// DeleteByTestAndStudent clears autosaved selections once an attempt is
// submitted or abandoned.
func (r *SelectionRepository) DeleteByTestAndStudent(ctx context.Context, testID uuid.UUID, studentID int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM attempt_selections WHERE test_id = $1 AND student_id = $2`,
		testID, studentID,
	)
	return err
}
