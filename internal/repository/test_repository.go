package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// TestRepository handles test data access, including group assignments.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a test by its ID, with assigned group IDs.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT t.id, t.title, t.description, t.teacher_id, t.duration_minutes, t.is_active,
		        (SELECT COUNT(*) FROM questions q WHERE q.test_id = t.id),
		        t.created_at, t.updated_at
		 FROM tests t WHERE t.id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.TeacherID, &t.DurationMinutes, &t.IsActive, &t.QuestionCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	groupIDs, err := r.groupIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	t.GroupIDs = groupIDs
	return t, nil
}

// ListByTeacher retrieves all tests authored by a teacher.
func (r *TestRepository) ListByTeacher(ctx context.Context, teacherID int) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.title, t.description, t.teacher_id, t.duration_minutes, t.is_active,
		        (SELECT COUNT(*) FROM questions q WHERE q.test_id = t.id),
		        t.created_at, t.updated_at
		 FROM tests t
		 WHERE t.teacher_id = $1
		 ORDER BY t.created_at DESC`, teacherID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.TeacherID, &t.DurationMinutes, &t.IsActive, &t.QuestionCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// ListAvailableForStudent retrieves active tests assigned to the student's
// group that the student has not submitted yet.
func (r *TestRepository) ListAvailableForStudent(ctx context.Context, studentID, groupID int) ([]model.AvailableTest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.title, t.description, t.duration_minutes,
		        (SELECT COUNT(*) FROM questions q WHERE q.test_id = t.id),
		        te.full_name
		 FROM tests t
		 JOIN test_groups tg ON tg.test_id = t.id
		 JOIN teachers te ON te.id = t.teacher_id
		 WHERE tg.group_id = $1
		   AND t.is_active = TRUE
		   AND NOT EXISTS (
		       SELECT 1 FROM results res
		       WHERE res.test_id = t.id AND res.student_id = $2
		   )
		 ORDER BY t.created_at DESC`, groupID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.AvailableTest
	for rows.Next() {
		var t model.AvailableTest
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.DurationMinutes, &t.QuestionCount, &t.TeacherName); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// IsAssignedToGroup reports whether the test is assigned to the given group.
func (r *TestRepository) IsAssignedToGroup(ctx context.Context, testID uuid.UUID, groupID int) (bool, error) {
	var assigned bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM test_groups WHERE test_id = $1 AND group_id = $2)`,
		testID, groupID,
	).Scan(&assigned)
	return assigned, err
}

// Create inserts a new test.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (title, description, teacher_id, duration_minutes, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		t.Title, t.Description, t.TeacherID, t.DurationMinutes, t.IsActive,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Update modifies a test's basic attributes.
func (r *TestRepository) Update(ctx context.Context, t *model.Test) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests SET title = $1, description = $2, duration_minutes = $3, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $4`,
		t.Title, t.Description, t.DurationMinutes, t.ID,
	)
	return err
}

// SetActive toggles whether students may start the test.
func (r *TestRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests SET is_active = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		active, id,
	)
	return err
}

// ReplaceGroups rewrites the test's group assignments.
func (r *TestRepository) ReplaceGroups(ctx context.Context, testID uuid.UUID, groupIDs []int) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM test_groups WHERE test_id = $1`, testID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO test_groups (test_id, group_id)
		 SELECT $1, UNNEST($2::INT[])`,
		testID, groupIDs,
	)
	return err
}

// Delete removes a test by its ID. Questions and assignments cascade.
func (r *TestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	return err
}

func (r *TestRepository) groupIDs(ctx context.Context, testID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT group_id FROM test_groups WHERE test_id = $1 ORDER BY group_id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
