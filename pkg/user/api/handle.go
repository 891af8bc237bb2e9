package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	apperrors "github.com/tendant/simple-useraccess/pkg/errors"
	"github.com/tendant/simple-useraccess/pkg/user"
	"github.com/tendant/simple-useraccess/pkg/utils"
)

// UserResponse is the admin view of a user. The password hash is never exposed.
type UserResponse struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"emailConfirmed"`
	Locked         bool      `json:"locked"`
	Enabled        bool      `json:"enabled"`
	Provider       string    `json:"provider"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Handle struct {
	userService *user.UserService
}

func NewHandle(userService *user.UserService) *Handle {
	return &Handle{userService: userService}
}

// Routes returns the admin user routes. Callers mount it behind an ADMIN check.
func (h *Handle) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListUsers)
	r.Get("/{id}", h.GetUser)
	r.Post("/{id}/unlock", h.UnlockUser)
	r.Post("/{id}/disable", h.DisableUser)
	return r
}

// ListUsers handles GET /user?page=&size=&sort=field,dir
func (h *Handle) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := utils.ParsePageRequest(q.Get("page"), q.Get("size"), q["sort"], user.SortFields)
	if err != nil {
		apperrors.Render(w, r, apperrors.Validation(err.Error(), nil))
		return
	}

	page, err := h.userService.ListUsers(r.Context(), req)
	if err != nil {
		apperrors.Render(w, r, apperrors.InternalWrap(err, "failed to list users"))
		return
	}

	content := make([]UserResponse, 0, len(page.Content))
	for _, u := range page.Content {
		content = append(content, ToUserResponse(u))
	}

	render.JSON(w, r, utils.Page[UserResponse]{
		Content:       content,
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: page.TotalElements,
	})
}

// GetUser handles GET /user/{id}
func (h *Handle) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	u, err := h.userService.GetUser(r.Context(), id)
	h.respond(w, r, id, u, err)
}

// UnlockUser handles POST /user/{id}/unlock
func (h *Handle) UnlockUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	u, err := h.userService.UnlockUser(r.Context(), id)
	h.respond(w, r, id, u, err)
}

// DisableUser handles POST /user/{id}/disable
func (h *Handle) DisableUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	u, err := h.userService.DisableUser(r.Context(), id)
	h.respond(w, r, id, u, err)
}

func (h *Handle) respond(w http.ResponseWriter, r *http.Request, id uuid.UUID, u user.User, err error) {
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			apperrors.Render(w, r, apperrors.NotFound("user", id.String()))
			return
		}
		apperrors.Render(w, r, apperrors.InternalWrap(err, "user operation failed"))
		return
	}
	render.JSON(w, r, ToUserResponse(u))
}

// ToUserResponse maps a user to its API representation.
func ToUserResponse(u user.User) UserResponse {
	var resp UserResponse
	if err := copier.Copy(&resp, &u); err != nil {
		slog.Error("Failed to map user", "user_id", u.ID, "error", err)
	}
	resp.Provider = string(u.Provider)
	return resp
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apperrors.Render(w, r, apperrors.Validation("invalid user id", nil))
		return uuid.Nil, false
	}
	return id, true
}
