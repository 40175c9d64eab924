package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

var ErrDuplicateResult = errors.New("result already exists for this test and student")

// TestResult combines student data with their persisted result for teacher review.
type TestResult struct {
	StudentID        int       `json:"student_id"`
	FullName         string    `json:"full_name"`
	StudentNumber    string    `json:"student_number"`
	GroupName        string    `json:"group_name"`
	Score            int       `json:"score"`
	MaxScore         int       `json:"max_score"`
	Percentage       int       `json:"percentage"`
	TimeSpentMinutes int       `json:"time_spent_minutes"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// ResultHistoryRow is one line of a student's result history.
type ResultHistoryRow struct {
	TestID           uuid.UUID `json:"test_id"`
	Title            string    `json:"title"`
	Score            int       `json:"score"`
	MaxScore         int       `json:"max_score"`
	Percentage       int       `json:"percentage"`
	TimeSpentMinutes int       `json:"time_spent_minutes"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// ResultRepository handles persisted attempt results.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Create inserts a result. The unique (test_id, student_id) index is the
// final backstop against double submission; a violation maps to
// ErrDuplicateResult.
func (r *ResultRepository) Create(ctx context.Context, res *model.Result) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO results (test_id, student_id, group_id, score, max_score, percentage, answers, time_spent_minutes, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		res.TestID, res.StudentID, res.GroupID, res.Score, res.MaxScore, res.Percentage, res.Answers, res.TimeSpentMinutes, res.SubmittedAt,
	).Scan(&res.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateResult
		}
		return err
	}
	return nil
}

// ExistsByTestAndStudent reports whether the student already submitted this test.
func (r *ResultRepository) ExistsByTestAndStudent(ctx context.Context, testID uuid.UUID, studentID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM results WHERE test_id = $1 AND student_id = $2)`,
		testID, studentID,
	).Scan(&exists)
	return exists, err
}

// GetByTestAndStudent retrieves a student's result for one test, with the
// per-question outcomes.
func (r *ResultRepository) GetByTestAndStudent(ctx context.Context, testID uuid.UUID, studentID int) (*model.Result, error) {
	res := &model.Result{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, student_id, group_id, score, max_score, percentage, answers, time_spent_minutes, submitted_at
		 FROM results
		 WHERE test_id = $1 AND student_id = $2`, testID, studentID,
	).Scan(&res.ID, &res.TestID, &res.StudentID, &res.GroupID, &res.Score, &res.MaxScore, &res.Percentage, &res.Answers, &res.TimeSpentMinutes, &res.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListByStudent retrieves a student's result history, newest first.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID int) ([]ResultHistoryRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT res.test_id, t.title, res.score, res.max_score, res.percentage, res.time_spent_minutes, res.submitted_at
		 FROM results res
		 JOIN tests t ON t.id = res.test_id
		 WHERE res.student_id = $1
		 ORDER BY res.submitted_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []ResultHistoryRow
	for rows.Next() {
		var row ResultHistoryRow
		if err := rows.Scan(&row.TestID, &row.Title, &row.Score, &row.MaxScore, &row.Percentage, &row.TimeSpentMinutes, &row.SubmittedAt); err != nil {
			return nil, err
		}
		history = append(history, row)
	}
	return history, rows.Err()
}

// ListByTest retrieves all student results for one test, with an optional
// group filter and pagination.
func (r *ResultRepository) ListByTest(ctx context.Context, testID uuid.UUID, page, perPage int, groupID *int) ([]TestResult, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := `
		FROM results res
		JOIN students s ON res.student_id = s.id
		JOIN groups g ON res.group_id = g.id
		WHERE res.test_id = $1
	`
	args := []any{testID}

	if groupID != nil {
		args = append(args, *groupID)
		baseQuery += fmt.Sprintf(" AND res.group_id = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT s.id, s.full_name, s.student_number, g.name,
		       res.score, res.max_score, res.percentage, res.time_spent_minutes, res.submitted_at
		` + baseQuery + `
		ORDER BY g.name ASC, s.full_name ASC
		LIMIT $` + fmt.Sprintf("%d", len(args)+1) + ` OFFSET $` + fmt.Sprintf("%d", len(args)+2) + `
	`
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []TestResult
	for rows.Next() {
		var tr TestResult
		if err := rows.Scan(
			&tr.StudentID, &tr.FullName, &tr.StudentNumber, &tr.GroupName,
			&tr.Score, &tr.MaxScore, &tr.Percentage, &tr.TimeSpentMinutes, &tr.SubmittedAt,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, tr)
	}

	return results, total, rows.Err()
}

// CountAndAverageByStudent returns the number of submitted tests and the
// average percentage for a student's dashboard.
func (r *ResultRepository) CountAndAverageByStudent(ctx context.Context, studentID int) (int, int, error) {
	var count int
	var average int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(ROUND(AVG(percentage)), 0)
		 FROM results WHERE student_id = $1`, studentID,
	).Scan(&count, &average)
	return count, average, err
}
