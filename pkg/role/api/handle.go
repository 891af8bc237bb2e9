package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	apperrors "github.com/tendant/simple-useraccess/pkg/errors"
	"github.com/tendant/simple-useraccess/pkg/role"
	"github.com/tendant/simple-useraccess/pkg/user"
	"github.com/tendant/simple-useraccess/pkg/utils"
)

type PermissionResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type RoleResponse struct {
	ID          uuid.UUID            `json:"id"`
	Name        string               `json:"name"`
	CreatedAt   time.Time            `json:"createdAt"`
	Permissions []PermissionResponse `json:"permissions,omitempty"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type AssignRoleRequest struct {
	RoleID uuid.UUID `json:"roleId"`
}

type Handle struct {
	roleService *role.RoleService
}

func NewHandle(roleService *role.RoleService) *Handle {
	return &Handle{roleService: roleService}
}

// Routes returns the /role routes.
func (h *Handle) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListRoles)
	r.Post("/", h.CreateRole)
	r.Get("/{id}", h.GetRole)
	r.Post("/{id}/permissions", h.GrantPermission)
	r.Delete("/{id}/permissions/{name}", h.RevokePermission)
	return r
}

// PermissionRoutes returns the /permission routes.
func (h *Handle) PermissionRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListPermissions)
	r.Post("/", h.CreatePermission)
	return r
}

// UserRoleRoutes registers role assignment routes on a /user router.
func (h *Handle) UserRoleRoutes(r chi.Router) {
	r.Post("/{id}/roles", h.AssignRole)
	r.Delete("/{id}/roles/{roleId}", h.RemoveRole)
}

// ListRoles handles GET /role?page=&size=
func (h *Handle) ListRoles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := utils.ParsePageRequest(q.Get("page"), q.Get("size"), nil, nil)
	if err != nil {
		apperrors.Render(w, r, apperrors.Validation(err.Error(), nil))
		return
	}

	page, err := h.roleService.ListRoles(r.Context(), req)
	if err != nil {
		apperrors.Render(w, r, apperrors.InternalWrap(err, "failed to list roles"))
		return
	}

	content := []RoleResponse{}
	if err := copier.Copy(&content, &page.Content); err != nil {
		apperrors.Render(w, r, apperrors.InternalWrap(err, "failed to map roles"))
		return
	}
	render.JSON(w, r, utils.Page[RoleResponse]{
		Content:       content,
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: page.TotalElements,
	})
}

// GetRole handles GET /role/{id}
func (h *Handle) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}
	rp, err := h.roleService.GetRole(r.Context(), id)
	if err != nil {
		apperrors.Render(w, r, mapError(err, id.String()))
		return
	}

	resp := RoleResponse{ID: rp.ID, Name: rp.Name, CreatedAt: rp.CreatedAt, Permissions: []PermissionResponse{}}
	if err := copier.Copy(&resp.Permissions, &rp.Permissions); err != nil {
		apperrors.Render(w, r, apperrors.InternalWrap(err, "failed to map role"))
		return
	}
	render.JSON(w, r, resp)
}

// CreateRole handles POST /role. The response carries a Location header.
func (h *Handle) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !decode(w, r, &req) {
		return
	}

	created, err := h.roleService.CreateRole(r.Context(), req.Name)
	if err != nil {
		apperrors.Render(w, r, mapError(err, req.Name))
		return
	}

	w.Header().Set("Location", "/role/"+created.ID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RoleResponse{ID: created.ID, Name: created.Name, CreatedAt: created.CreatedAt})
}

// GrantPermission handles POST /role/{id}/permissions
func (h *Handle) GrantPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}
	var req NameRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.roleService.GrantPermission(r.Context(), id, req.Name); err != nil {
		apperrors.Render(w, r, mapError(err, id.String()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokePermission handles DELETE /role/{id}/permissions/{name}
func (h *Handle) RevokePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.roleService.RevokePermission(r.Context(), id, name); err != nil {
		apperrors.Render(w, r, mapError(err, name))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPermissions handles GET /permission
func (h *Handle) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.roleService.ListPermissions(r.Context())
	if err != nil {
		apperrors.Render(w, r, apperrors.InternalWrap(err, "failed to list permissions"))
		return
	}
	resp := []PermissionResponse{}
	if err := copier.Copy(&resp, &perms); err != nil {
		apperrors.Render(w, r, apperrors.InternalWrap(err, "failed to map permissions"))
		return
	}
	render.JSON(w, r, resp)
}

// CreatePermission handles POST /permission
func (h *Handle) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.roleService.CreatePermission(r.Context(), req.Name)
	if err != nil {
		apperrors.Render(w, r, mapError(err, req.Name))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, PermissionResponse{ID: p.ID, Name: p.Name})
}

// AssignRole handles POST /user/{id}/roles
func (h *Handle) AssignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}
	var req AssignRoleRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.roleService.AssignRole(r.Context(), userID, req.RoleID); err != nil {
		apperrors.Render(w, r, mapError(err, userID.String()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveRole handles DELETE /user/{id}/roles/{roleId}
func (h *Handle) RemoveRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := parseUUID(w, r, "roleId")
	if !ok {
		return
	}
	if err := h.roleService.RemoveRole(r.Context(), userID, roleID); err != nil {
		apperrors.Render(w, r, mapError(err, userID.String()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mapError(err error, identifier string) error {
	switch {
	case errors.Is(err, role.ErrEmptyRoleName), errors.Is(err, role.ErrEmptyPermissionName):
		return apperrors.Validation(err.Error(), nil)
	case errors.Is(err, role.ErrDuplicateRole):
		return apperrors.Conflict("role", identifier)
	case errors.Is(err, role.ErrDuplicatePermission):
		return apperrors.Conflict("permission", identifier)
	case errors.Is(err, role.ErrRoleNotFound):
		return apperrors.NotFound("role", identifier)
	case errors.Is(err, role.ErrPermissionNotFound):
		return apperrors.NotFound("permission", identifier)
	case errors.Is(err, user.ErrUserNotFound):
		return apperrors.NotFound("user", identifier)
	}
	return apperrors.InternalWrap(err, "role operation failed")
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		apperrors.Render(w, r, apperrors.Validation("invalid request body", nil))
		return false
	}
	return true
}

func parseUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		apperrors.Render(w, r, apperrors.Validation("invalid "+param, nil))
		return uuid.Nil, false
	}
	return id, true
}
