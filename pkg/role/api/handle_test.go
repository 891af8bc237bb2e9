package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-useraccess/pkg/role"
	"github.com/tendant/simple-useraccess/pkg/user"
	"github.com/tendant/simple-useraccess/pkg/utils"
)

func newTestRouter(t *testing.T) (http.Handler, user.User) {
	t.Helper()
	users := user.NewInMemoryUserRepository()
	u, err := users.Create(context.Background(), user.User{Username: "u@example.com", Email: "u@example.com"})
	require.NoError(t, err)

	h := NewHandle(role.NewRoleService(role.NewInMemoryRoleRepository(), users))
	r := chi.NewRouter()
	r.Mount("/role", h.Routes())
	r.Mount("/permission", h.PermissionRoutes())
	r.Route("/user", h.UserRoleRoutes)
	return r, u
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func TestCreateRole(t *testing.T) {
	h, _ := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/role", `{"name":"ADMIN"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created RoleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "ADMIN", created.Name)
	assert.Equal(t, "/role/"+created.ID.String(), w.Header().Get("Location"))

	w = do(t, h, http.MethodPost, "/role", `{"name":"ADMIN"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, "/role", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndGetRole(t *testing.T) {
	h, _ := newTestRouter(t)

	for _, name := range []string{"USER", "ADMIN"} {
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/role", `{"name":"`+name+`"}`).Code)
	}

	w := do(t, h, http.MethodGet, "/role?page=0&size=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page utils.Page[RoleResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Content, 2)
	assert.Equal(t, "ADMIN", page.Content[0].Name)

	adminID := page.Content[0].ID.String()
	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/role/"+adminID+"/permissions", `{"name":"WRITE"}`).Code)

	w = do(t, h, http.MethodGet, "/role/"+adminID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got RoleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.Permissions, 1)
	assert.Equal(t, "WRITE", got.Permissions[0].Name)

	w = do(t, h, http.MethodGet, "/permission", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "WRITE")
}

func TestAssignRole(t *testing.T) {
	h, u := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/role", `{"name":"ADMIN"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created RoleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(t, h, http.MethodPost, "/user/"+u.ID.String()+"/roles", `{"roleId":"`+created.ID.String()+`"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodDelete, "/user/"+u.ID.String()+"/roles/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodPost, "/user/"+created.ID.String()+"/roles", `{"roleId":"`+created.ID.String()+`"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
