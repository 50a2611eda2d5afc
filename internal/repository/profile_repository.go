package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/careerfair-reservation/internal/model"
)

// ProfileRepo is a read-only view of the `students` and `companies` tables,
// which are owned by the profile service.
type ProfileRepo struct {
	db *sqlx.DB
}

func NewProfileRepo(db *sqlx.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// Exists reports whether the profile of e is present.
func (r *ProfileRepo) Exists(ctx context.Context, e model.Entity) (bool, error) {
	var table string
	switch e.Kind {
	case model.ParticipantStudent:
		table = "students"
	case model.ParticipantCompany:
		table = "companies"
	default:
		return false, fmt.Errorf("unknown participant kind %q", e.Kind)
	}
	var found bool
	if err := r.db.GetContext(ctx, &found, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = ?)`, e.ID); err != nil {
		return false, err
	}
	return found, nil
}

// ProjectMembers returns the ids of the students that share projectTitle.
func (r *ProfileRepo) ProjectMembers(ctx context.Context, projectTitle string) ([]int64, error) {
	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids,
		`SELECT id FROM students WHERE project_title = ? ORDER BY id`, projectTitle); err != nil {
		return nil, err
	}
	return ids, nil
}
