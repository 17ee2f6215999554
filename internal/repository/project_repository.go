package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/prodhub/production-api/internal/model"
)

const projectColumns = "id,code,name,description,type,status,owner_id,archived_at,created_at,updated_at"

type ProjectRepo struct{ DB *sql.DB }

func NewProjectRepo(db *sql.DB) *ProjectRepo { return &ProjectRepo{DB: db} }

// ProjectUpdate carries the optional fields of a partial project update.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Type        *model.ProjectType
	Status      *model.ProjectStatus
	OwnerID     *string
}

// ProjectFilter narrows List results.  OwnerID restricts the listing to one
// owner's projects; Search matches name or code.
type ProjectFilter struct {
	OwnerID *string
	Status  *model.ProjectStatus
	Search  string
	Limit   int
	Offset  int
}

func scanProject(row rowScanner) (model.Project, error) {
	var (
		p        model.Project
		desc     sql.NullString
		archived sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Code, &p.Name, &desc, &p.Type, &p.Status, &p.OwnerID,
		&archived, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Project{}, ErrNotFound
		}
		return model.Project{}, err
	}
	if desc.Valid {
		p.Description = &desc.String
	}
	if archived.Valid {
		p.ArchivedAt = &archived.Time
	}
	return p, nil
}

// CountCodePrefix counts projects whose code starts with prefix.
func (r *ProjectRepo) CountCodePrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE code LIKE ?", prefix+"%").Scan(&n)
	return n, err
}

// Create inserts p.  A taken code yields ErrConflict.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO projects (id, code, name, description, type, status, owner_id) VALUES (?,?,?,?,?,?,?)",
		p.ID, p.Code, p.Name, p.Description, p.Type, p.Status, p.OwnerID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, id string) (model.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id=? LIMIT 1", id))
}

// Update applies a partial update and returns the fresh row.
func (r *ProjectRepo) Update(ctx context.Context, id string, upd ProjectUpdate) (model.Project, error) {
	var (
		sets []string
		args []any
	)
	if upd.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *upd.Name)
	}
	if upd.Description != nil {
		sets = append(sets, "description=?")
		args = append(args, *upd.Description)
	}
	if upd.Type != nil {
		sets = append(sets, "type=?")
		args = append(args, *upd.Type)
	}
	if upd.Status != nil {
		sets = append(sets, "status=?")
		args = append(args, *upd.Status)
	}
	if upd.OwnerID != nil {
		sets = append(sets, "owner_id=?")
		args = append(args, *upd.OwnerID)
	}
	if len(sets) > 0 {
		args = append(args, id)
		if _, err := r.DB.ExecContext(ctx,
			"UPDATE projects SET "+strings.Join(sets, ", ")+" WHERE id=?", args...); err != nil {
			return model.Project{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// Archive sets the ARCHIVED status and stamps archived_at.
func (r *ProjectRepo) Archive(ctx context.Context, id string, at time.Time) (model.Project, error) {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE projects SET status=?, archived_at=? WHERE id=?",
		model.ProjectArchived, at, id); err != nil {
		return model.Project{}, err
	}
	return r.GetByID(ctx, id)
}

// List returns one page of projects, newest first, and the total match count.
func (r *ProjectRepo) List(ctx context.Context, f ProjectFilter) ([]model.Project, int, error) {
	var (
		where []string
		args  []any
	)
	if f.OwnerID != nil {
		where = append(where, "owner_id=?")
		args = append(args, *f.OwnerID)
	}
	if f.Status != nil {
		where = append(where, "status=?")
		args = append(args, *f.Status)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		where = append(where, "(name LIKE ? OR code LIKE ?)")
		args = append(args, like, like)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects"+cond+" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	projects := make([]model.Project, 0, f.Limit)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}
	return projects, total, rows.Err()
}
