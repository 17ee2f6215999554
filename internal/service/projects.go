package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prodhub/production-api/internal/model"
	"github.com/prodhub/production-api/internal/repository"
)

// codeAttempts bounds retries when two creates race for the same code.
const codeAttempts = 3

// ProjectStore persists projects.
type ProjectStore interface {
	CountCodePrefix(ctx context.Context, prefix string) (int, error)
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id string) (model.Project, error)
	Update(ctx context.Context, id string, upd repository.ProjectUpdate) (model.Project, error)
	Archive(ctx context.Context, id string, at time.Time) (model.Project, error)
	List(ctx context.Context, f repository.ProjectFilter) ([]model.Project, int, error)
}

// Caller is the authenticated user a project operation runs for.
type Caller struct {
	UserID string
	Role   model.Role
}

// ProjectQuery selects one page of projects.
type ProjectQuery struct {
	Page   int
	Limit  int
	Status *model.ProjectStatus
	Search string
}

// ProjectInput carries a validated create request.  OwnerID is honoured
// only for the administrative role.
type ProjectInput struct {
	Name        string
	Description *string
	Type        model.ProjectType
	Status      model.ProjectStatus
	OwnerID     string
}

// ProjectService applies the ownership rules to production projects:
// administrators and accountants see everything, everyone else only what
// they own, and only the owner or an administrator may change a project.
type ProjectService struct {
	projects ProjectStore
	users    UserStore
	now      func() time.Time
}

func NewProjectService(projects ProjectStore, users UserStore) *ProjectService {
	if projects == nil || users == nil {
		panic("nil store passed to NewProjectService")
	}
	return &ProjectService{projects: projects, users: users, now: time.Now}
}

// List returns the projects visible to the caller, newest first.
func (s *ProjectService) List(ctx context.Context, who Caller, q ProjectQuery) ([]model.Project, Pagination, error) {
	page := max(q.Page, 1)
	limit := q.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}
	limit = min(max(limit, 1), MaxPageSize)

	f := repository.ProjectFilter{
		Status: q.Status,
		Search: strings.TrimSpace(q.Search),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if !model.SeesAllProjects(who.Role) {
		f.OwnerID = &who.UserID
	}
	projects, total, err := s.projects.List(ctx, f)
	if err != nil {
		return nil, Pagination{}, err
	}
	return projects, Pagination{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// Get returns one project.  Callers limited to their own projects get
// ErrForbidden for anything else, whether or not it exists.
func (s *ProjectService) Get(ctx context.Context, who Caller, id string) (model.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	switch {
	case err == nil:
		if !model.SeesAllProjects(who.Role) && p.OwnerID != who.UserID {
			return model.Project{}, ErrForbidden
		}
		return p, nil
	case errors.Is(err, repository.ErrNotFound):
		if !model.SeesAllProjects(who.Role) {
			return model.Project{}, ErrForbidden
		}
		return model.Project{}, ErrProjectNotFound
	default:
		return model.Project{}, err
	}
}

// Create opens a project with the next free PRJ-<year>-<seq> code.
func (s *ProjectService) Create(ctx context.Context, who Caller, in ProjectInput) (model.Project, error) {
	if !model.ProjectCreatorRoles.Has(who.Role) {
		return model.Project{}, ErrForbidden
	}
	owner := who.UserID
	if who.Role == model.RoleAdminProducer && in.OwnerID != "" {
		if _, err := s.users.GetByID(ctx, in.OwnerID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return model.Project{}, ErrUserNotFound
			}
			return model.Project{}, err
		}
		owner = in.OwnerID
	}
	status := in.Status
	if status == "" {
		status = model.ProjectInquiry
	}

	p := model.Project{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Type:        in.Type,
		Status:      status,
		OwnerID:     owner,
	}
	prefix := fmt.Sprintf("PRJ-%d-", s.now().Year())
	for range codeAttempts {
		n, err := s.projects.CountCodePrefix(ctx, prefix)
		if err != nil {
			return model.Project{}, fmt.Errorf("count project codes: %w", err)
		}
		p.Code = fmt.Sprintf("%s%03d", prefix, n+1)
		err = s.projects.Create(ctx, &p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return model.Project{}, fmt.Errorf("create project: %w", err)
		}
	}
	return model.Project{}, ErrProjectCode
}

// Update applies a partial update for the owner or an administrator.
func (s *ProjectService) Update(ctx context.Context, who Caller, id string, upd repository.ProjectUpdate) (model.Project, error) {
	if err := s.checkEdit(ctx, who, id); err != nil {
		return model.Project{}, err
	}
	if upd.OwnerID != nil {
		if _, err := s.users.GetByID(ctx, *upd.OwnerID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return model.Project{}, ErrUserNotFound
			}
			return model.Project{}, err
		}
	}
	p, err := s.projects.Update(ctx, id, upd)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Project{}, ErrProjectNotFound
	}
	return p, err
}

// Archive is the soft delete of a project.
func (s *ProjectService) Archive(ctx context.Context, who Caller, id string) (model.Project, error) {
	if err := s.checkEdit(ctx, who, id); err != nil {
		return model.Project{}, err
	}
	p, err := s.projects.Archive(ctx, id, s.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return model.Project{}, ErrProjectNotFound
	}
	return p, err
}

// checkEdit enforces model.CanEditOwned.  Non-administrators learn nothing
// about projects they do not own.
func (s *ProjectService) checkEdit(ctx context.Context, who Caller, id string) error {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if who.Role == model.RoleAdminProducer {
			return ErrProjectNotFound
		}
		return ErrForbidden
	}
	if !model.CanEditOwned(who.Role, p.OwnerID, who.UserID) {
		return ErrForbidden
	}
	return nil
}
