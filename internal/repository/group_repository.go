package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// GroupRepository handles group data access.
type GroupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

// GetByID retrieves a group by its ID.
func (r *GroupRepository) GetByID(ctx context.Context, id int) (*model.Group, error) {
	g := &model.Group{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, teacher_id, created_at, updated_at
		 FROM groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.TeacherID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListByTeacher retrieves all groups owned by a teacher with student counts.
func (r *GroupRepository) ListByTeacher(ctx context.Context, teacherID int) ([]model.Group, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.name, g.teacher_id, COUNT(s.id), g.created_at, g.updated_at
		 FROM groups g
		 LEFT JOIN students s ON s.group_id = g.id
		 WHERE g.teacher_id = $1
		 GROUP BY g.id
		 ORDER BY g.name`, teacherID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.TeacherID, &g.StudentCount, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Create inserts a new group.
func (r *GroupRepository) Create(ctx context.Context, g *model.Group) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO groups (name, teacher_id)
		 VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		g.Name, g.TeacherID,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
}

// Update renames an existing group.
func (r *GroupRepository) Update(ctx context.Context, g *model.Group) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE groups SET name = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		g.Name, g.ID,
	)
	return err
}

// Delete removes a group by its ID.
func (r *GroupRepository) Delete(ctx context.Context, id int) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	return err
}
