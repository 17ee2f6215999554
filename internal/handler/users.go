package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/prodhub/production-api/internal/model"
	"github.com/prodhub/production-api/internal/repository"
	"github.com/prodhub/production-api/internal/response"
	"github.com/prodhub/production-api/internal/service"
)

// UsersHandler serves the administrator user-management endpoints.
type UsersHandler struct {
	Users *service.UserService
	Log   *slog.Logger
}

func NewUsersHandler(users *service.UserService, log *slog.Logger) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{Users: users, Log: log}
}

type updateUserReq struct {
	FullName *string `json:"fullName"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
	UserType *string `json:"userType"`
	Active   *bool   `json:"active"`
}

// List handles GET /users?page=&limit=&active=&role=.
func (h *UsersHandler) List(c echo.Context) error {
	fe := fieldErrors{}
	q := service.ListQuery{
		Page:  queryInt(c, "page", fe),
		Limit: queryInt(c, "limit", fe),
	}
	if q.Limit > service.MaxPageSize {
		fe.add("limit", "Must be at most 100")
	}
	if v := c.QueryParam("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fe.add("active", "Must be true or false")
		}
		q.Active = &b
	}
	if v := c.QueryParam("role"); v != "" {
		role := model.Role(strings.ToUpper(v))
		fe.oneOf("role", role.Valid())
		q.Role = &role
	}
	if len(fe) > 0 {
		return fe.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	users, page, err := h.Users.List(ctx, q)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, presentUser(u))
	}
	return response.Page(c, out, page)
}

// Update handles PATCH /users/:id.
func (h *UsersHandler) Update(c echo.Context) error {
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	var upd repository.UserUpdate
	fe := fieldErrors{}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		fe.minLen("fullName", name, 2)
		upd.FullName = &name
	}
	fe.optMinLen("phone", req.Phone, 5)
	upd.Phone = req.Phone
	if req.Role != nil {
		role := model.Role(strings.ToUpper(strings.TrimSpace(*req.Role)))
		fe.oneOf("role", role.Valid())
		upd.Role = &role
	}
	if req.UserType != nil {
		ut := model.UserType(strings.ToUpper(strings.TrimSpace(*req.UserType)))
		fe.oneOf("userType", ut.Valid())
		upd.UserType = &ut
	}
	upd.Active = req.Active
	if len(fe) > 0 {
		return fe.respond(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.Update(ctx, c.Param("id"), upd)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusOK, userResp{User: presentUser(u)})
}

// Deactivate handles DELETE /users/:id.  Users are never hard deleted.
func (h *UsersHandler) Deactivate(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.Deactivate(ctx, c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return response.OK(c, http.StatusOK, userResp{User: presentUser(u)})
}

// queryInt reads an optional positive integer query parameter; 0 means unset.
func queryInt(c echo.Context, name string, fe fieldErrors) int {
	v := c.QueryParam(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		fe.add(name, "Must be a positive integer")
		return 0
	}
	return n
}
