package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GroupStat is the per-group rollup of one test's results. Maintained by the
// stats worker, read by the teacher dashboard.
type GroupStat struct {
	TestID            uuid.UUID `json:"test_id"`
	GroupID           int       `json:"group_id"`
	GroupName         string    `json:"group_name,omitempty"`
	Submissions       int       `json:"submissions"`
	AveragePercentage int       `json:"average_percentage"`
	BestPercentage    int       `json:"best_percentage"`
	WorstPercentage   int       `json:"worst_percentage"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TeacherSummary holds the high-level counters for a teacher's dashboard.
type TeacherSummary struct {
	TotalGroups       int `json:"total_groups"`
	TotalStudents     int `json:"total_students"`
	TotalTests        int `json:"total_tests"`
	ActiveTests       int `json:"active_tests"`
	TotalSubmissions  int `json:"total_submissions"`
	AveragePercentage int `json:"average_percentage"`
}

// StatsRepository handles aggregated result statistics.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// Refresh recomputes the rollup row for one (test, group) pair from the
// results table and UPSERTs it.
func (r *StatsRepository) Refresh(ctx context.Context, testID uuid.UUID, groupID int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO group_stats (test_id, group_id, submissions, average_percentage, best_percentage, worst_percentage)
		 SELECT $1, $2, COUNT(*), COALESCE(ROUND(AVG(percentage)), 0), COALESCE(MAX(percentage), 0), COALESCE(MIN(percentage), 0)
		 FROM results
		 WHERE test_id = $1 AND group_id = $2
		 ON CONFLICT (test_id, group_id) DO UPDATE
		 SET submissions = EXCLUDED.submissions,
		     average_percentage = EXCLUDED.average_percentage,
		     best_percentage = EXCLUDED.best_percentage,
		     worst_percentage = EXCLUDED.worst_percentage,
		     updated_at = NOW()`,
		testID, groupID,
	)
	return err
}

// ListByTest retrieves the per-group rollups of one test.
func (r *StatsRepository) ListByTest(ctx context.Context, testID uuid.UUID) ([]GroupStat, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT gs.test_id, gs.group_id, g.name, gs.submissions, gs.average_percentage, gs.best_percentage, gs.worst_percentage, gs.updated_at
		 FROM group_stats gs
		 JOIN groups g ON g.id = gs.group_id
		 WHERE gs.test_id = $1
		 ORDER BY g.name`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []GroupStat
	for rows.Next() {
		var gs GroupStat
		if err := rows.Scan(&gs.TestID, &gs.GroupID, &gs.GroupName, &gs.Submissions, &gs.AveragePercentage, &gs.BestPercentage, &gs.WorstPercentage, &gs.UpdatedAt); err != nil {
			return nil, err
		}
		stats = append(stats, gs)
	}
	if stats == nil {
		stats = []GroupStat{}
	}
	return stats, rows.Err()
}

// GetTeacherSummary retrieves the high-level counters for one teacher.
func (r *StatsRepository) GetTeacherSummary(ctx context.Context, teacherID int) (*TeacherSummary, error) {
	s := &TeacherSummary{}
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM groups WHERE teacher_id = $1),
			(SELECT COUNT(*) FROM students st JOIN groups g ON st.group_id = g.id WHERE g.teacher_id = $1),
			(SELECT COUNT(*) FROM tests WHERE teacher_id = $1),
			(SELECT COUNT(*) FROM tests WHERE teacher_id = $1 AND is_active = TRUE),
			(SELECT COUNT(*) FROM results res JOIN tests t ON res.test_id = t.id WHERE t.teacher_id = $1),
			(SELECT COALESCE(ROUND(AVG(res.percentage)), 0) FROM results res JOIN tests t ON res.test_id = t.id WHERE t.teacher_id = $1)`,
		teacherID,
	).Scan(&s.TotalGroups, &s.TotalStudents, &s.TotalTests, &s.ActiveTests, &s.TotalSubmissions, &s.AveragePercentage)
	if err != nil {
		return nil, err
	}
	return s, nil
}
