package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/prodhub/production-api/internal/middleware"
	"github.com/prodhub/production-api/internal/model"
	"github.com/prodhub/production-api/internal/repository"
	"github.com/prodhub/production-api/internal/response"
	"github.com/prodhub/production-api/internal/service"
)

// ProjectsHandler serves the owner-scoped production project endpoints.
type ProjectsHandler struct {
	Projects *service.ProjectService
	Log      *slog.Logger
}

func NewProjectsHandler(projects *service.ProjectService, log *slog.Logger) *ProjectsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ProjectsHandler{Projects: projects, Log: log}
}

type createProjectReq struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	OwnerID     string  `json:"ownerId"`
}

type updateProjectReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
	Status      *string `json:"status"`
	OwnerID     *string `json:"ownerId"`
}

type projectView struct {
	ID          string              `json:"id"`
	Code        string              `json:"code"`
	Name        string              `json:"name"`
	Description *string             `json:"description"`
	Type        model.ProjectType   `json:"type"`
	Status      model.ProjectStatus `json:"status"`
	OwnerID     string              `json:"ownerId"`
	ArchivedAt  *time.Time          `json:"archivedAt"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

type projectResp struct {
	Project projectView `json:"project"`
}

func presentProject(p model.Project) projectView {
	return projectView{
		ID:          p.ID,
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		Type:        p.Type,
		Status:      p.Status,
		OwnerID:     p.OwnerID,
		ArchivedAt:  p.ArchivedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func caller(c echo.Context) (service.Caller, bool) {
	who, ok := middleware.CurrentUser(c)
	return service.Caller{UserID: who.UserID, Role: who.Role}, ok
}

// List handles GET /projects?page=&limit=&status=&search=.
func (h *ProjectsHandler) List(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "Missing access token")
	}
	fe := fieldErrors{}
	q := service.ProjectQuery{
		Page:   queryInt(c, "page", fe),
		Limit:  queryInt(c, "limit", fe),
		Search: c.QueryParam("search"),
	}
	if q.Limit > service.MaxPageSize {
		fe.add("limit", "Must be at most 100")
	}
	if v := c.QueryParam("status"); v != "" {
		st := model.ProjectStatus(strings.ToUpper(v))
		fe.oneOf("status", st.Valid())
		q.Status = &st
	}
	if len(fe) > 0 {
		return fe.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	projects, page, err := h.Projects.List(ctx, who, q)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]projectView, 0, len(projects))
	for _, p := range projects {
		out = append(out, presentProject(p))
	}
	return response.Page(c, out, page)
}

// Get handles GET /projects/:id.
func (h *ProjectsHandler) Get(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "Missing access token")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Projects.Get(ctx, who, c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusOK, projectResp{Project: presentProject(p)})
}

// Create handles POST /projects.
func (h *ProjectsHandler) Create(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "Missing access token")
	}
	var req createProjectReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	typ := model.ProjectType(strings.ToUpper(strings.TrimSpace(req.Type)))
	status := model.ProjectStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	fe := fieldErrors{}
	fe.minLen("name", strings.TrimSpace(req.Name), 2)
	fe.oneOf("type", typ.Valid())
	if status != "" {
		fe.oneOf("status", status.Valid())
	}
	if req.OwnerID != "" {
		fe.uuid("ownerId", req.OwnerID)
	}
	if len(fe) > 0 {
		return fe.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Projects.Create(ctx, who, service.ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Type:        typ,
		Status:      status,
		OwnerID:     req.OwnerID,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusCreated, projectResp{Project: presentProject(p)})
}

// Update handles PATCH /projects/:id.
func (h *ProjectsHandler) Update(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "Missing access token")
	}
	var req updateProjectReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	var upd repository.ProjectUpdate
	fe := fieldErrors{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		fe.minLen("name", name, 2)
		upd.Name = &name
	}
	upd.Description = req.Description
	if req.Type != nil {
		typ := model.ProjectType(strings.ToUpper(strings.TrimSpace(*req.Type)))
		fe.oneOf("type", typ.Valid())
		upd.Type = &typ
	}
	if req.Status != nil {
		st := model.ProjectStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		fe.oneOf("status", st.Valid())
		upd.Status = &st
	}
	if req.OwnerID != nil {
		fe.uuid("ownerId", *req.OwnerID)
		upd.OwnerID = req.OwnerID
	}
	if len(fe) > 0 {
		return fe.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Projects.Update(ctx, who, c.Param("id"), upd)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusOK, projectResp{Project: presentProject(p)})
}

// Archive handles DELETE /projects/:id.  Projects are archived, not removed.
func (h *ProjectsHandler) Archive(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "Missing access token")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Projects.Archive(ctx, who, c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusOK, projectResp{Project: presentProject(p)})
}
