package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/getkayan/warden/internal/domain"
	"github.com/getkayan/warden/internal/flow"
	"github.com/getkayan/warden/internal/identity"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/oops"
)

const defaultListLimit = 100

// ResourceHandler serves the user and template collections. Every route
// requires an authenticated caller.
type ResourceHandler struct {
	users     domain.UserStore
	templates domain.TemplateStore
	hasher    domain.Hasher
	newID     func() string
}

func NewResourceHandler(users domain.UserStore, templates domain.TemplateStore, hasher domain.Hasher) *ResourceHandler {
	return &ResourceHandler{users: users, templates: templates, hasher: hasher, newID: uuid.NewString}
}

// RegisterRoutes mounts /users and /templates on g behind auth.
func (h *ResourceHandler) RegisterRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	users := g.Group("/users", auth)
	users.POST("", h.CreateUser)
	users.GET("", h.ListUsers)
	users.GET("/:id", h.GetUser)
	users.PUT("/:id", h.UpdateUser)
	users.DELETE("/:id", h.DeleteUser)

	templates := g.Group("/templates", auth)
	templates.POST("", h.CreateTemplate)
	templates.GET("", h.ListTemplates)
	templates.GET("/:id", h.GetTemplate)
	templates.PUT("/:id", h.UpdateTemplate)
	templates.DELETE("/:id", h.DeleteTemplate)
}

type createUserRequest struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,max=72"`
	Name     *string `json:"name" validate:"omitempty,max=255"`
}

type updateUserRequest struct {
	Email *string `json:"email" validate:"omitempty,email,max=255"`
	Name  *string `json:"name" validate:"omitempty,max=255"`
}

type userListResponse struct {
	Users []identity.PublicUser `json:"users"`
	Total int                   `json:"total"`
}

type createTemplateRequest struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	Password  string  `json:"password" validate:"required,max=72"`
	Name      *string `json:"name" validate:"omitempty,max=255"`
	Published bool    `json:"published"`
}

type updateTemplateRequest struct {
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	Name      *string `json:"name" validate:"omitempty,max=255"`
	Published *bool   `json:"published"`
}

type templateListResponse struct {
	Templates []identity.PublicTemplate `json:"templates"`
	Total     int                       `json:"total"`
}

func (h *ResourceHandler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	if _, err := h.users.FindByEmail(ctx, req.Email); err == nil {
		return domain.ErrConflict("Email already registered")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return oops.Code("USER_CREATE_FAILED").With("operation", "FindByEmail").Wrap(err)
	}

	hashed, err := flow.HashPassword(h.hasher, req.Password)
	if err != nil {
		return err
	}

	user := &identity.User{ID: h.newID(), Email: req.Email, Name: req.Name, Password: hashed}
	if err := h.users.Create(ctx, user); err != nil {
		return storeError(err, "USER_CREATE_FAILED", "User not found")
	}
	return c.JSON(http.StatusCreated, user.Public())
}

func (h *ResourceHandler) ListUsers(c echo.Context) error {
	skip, limit, err := pagination(c)
	if err != nil {
		return err
	}

	users, err := h.users.List(c.Request().Context(), skip, limit)
	if err != nil {
		return oops.Code("USER_LIST_FAILED").Wrap(err)
	}

	resp := userListResponse{Users: make([]identity.PublicUser, 0, len(users))}
	for i := range users {
		resp.Users = append(resp.Users, users[i].Public())
	}
	resp.Total = len(resp.Users)
	return c.JSON(http.StatusOK, resp)
}

func (h *ResourceHandler) GetUser(c echo.Context) error {
	user, err := h.users.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "USER_GET_FAILED", "User not found")
	}
	return c.JSON(http.StatusOK, user.Public())
}

func (h *ResourceHandler) UpdateUser(c echo.Context) error {
	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	fields := map[string]any{}
	if req.Email != nil {
		fields["email"] = *req.Email
	}
	if req.Name != nil {
		fields["name"] = *req.Name
	}

	user, err := h.users.Update(c.Request().Context(), c.Param("id"), fields)
	if err != nil {
		return storeError(err, "USER_UPDATE_FAILED", "User not found")
	}
	return c.JSON(http.StatusOK, user.Public())
}

func (h *ResourceHandler) DeleteUser(c echo.Context) error {
	if err := h.users.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return storeError(err, "USER_DELETE_FAILED", "User not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ResourceHandler) CreateTemplate(c echo.Context) error {
	var req createTemplateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	if _, err := h.templates.FindByEmail(ctx, req.Email); err == nil {
		return domain.ErrConflict("Email already registered")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return oops.Code("TEMPLATE_CREATE_FAILED").With("operation", "FindByEmail").Wrap(err)
	}

	hashed, err := flow.HashPassword(h.hasher, req.Password)
	if err != nil {
		return err
	}

	tpl := &identity.Template{
		ID:        h.newID(),
		Email:     req.Email,
		Name:      req.Name,
		Password:  hashed,
		Published: req.Published,
	}
	if err := h.templates.Create(ctx, tpl); err != nil {
		return storeError(err, "TEMPLATE_CREATE_FAILED", "Template not found")
	}
	return c.JSON(http.StatusCreated, tpl.Public())
}

func (h *ResourceHandler) ListTemplates(c echo.Context) error {
	skip, limit, err := pagination(c)
	if err != nil {
		return err
	}

	templates, err := h.templates.List(c.Request().Context(), skip, limit)
	if err != nil {
		return oops.Code("TEMPLATE_LIST_FAILED").Wrap(err)
	}

	resp := templateListResponse{Templates: make([]identity.PublicTemplate, 0, len(templates))}
	for i := range templates {
		resp.Templates = append(resp.Templates, templates[i].Public())
	}
	resp.Total = len(resp.Templates)
	return c.JSON(http.StatusOK, resp)
}

func (h *ResourceHandler) GetTemplate(c echo.Context) error {
	tpl, err := h.templates.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err, "TEMPLATE_GET_FAILED", "Template not found")
	}
	return c.JSON(http.StatusOK, tpl.Public())
}

func (h *ResourceHandler) UpdateTemplate(c echo.Context) error {
	var req updateTemplateRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	fields := map[string]any{}
	if req.Email != nil {
		fields["email"] = *req.Email
	}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Published != nil {
		fields["published"] = *req.Published
	}

	tpl, err := h.templates.Update(c.Request().Context(), c.Param("id"), fields)
	if err != nil {
		return storeError(err, "TEMPLATE_UPDATE_FAILED", "Template not found")
	}
	return c.JSON(http.StatusOK, tpl.Public())
}

func (h *ResourceHandler) DeleteTemplate(c echo.Context) error {
	if err := h.templates.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return storeError(err, "TEMPLATE_DELETE_FAILED", "Template not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// storeError turns store sentinels into client errors and wraps the rest.
func storeError(err error, code, notFound string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrMissing(notFound)
	case errors.Is(err, domain.ErrDuplicate):
		return domain.ErrConflict("Email already registered")
	default:
		return oops.Code(code).Wrap(err)
	}
}

func pagination(c echo.Context) (skip, limit int, err error) {
	limit = defaultListLimit
	var fields []FieldError
	if v := c.QueryParam("skip"); v != "" {
		if skip, err = strconv.Atoi(v); err != nil || skip < 0 {
			fields = append(fields, FieldError{Field: "query.skip", Message: "must be a non-negative integer", Type: "int_parsing"})
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			fields = append(fields, FieldError{Field: "query.limit", Message: "must be a non-negative integer", Type: "int_parsing"})
		}
	}
	if len(fields) > 0 {
		return 0, 0, &ValidationError{Fields: fields}
	}
	return skip, limit, nil
}
