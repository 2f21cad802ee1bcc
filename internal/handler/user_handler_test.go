package handler

import (
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/pkg/json"
)

type userBackend struct {
	mu    sync.Mutex
	calls []string
	body  map[string]interface{}
}

func (b *userBackend) record(r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, r.Method+" "+r.URL.Path)
	b.body = nil
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &b.body)
	}
}

func (b *userBackend) register(mux *http.ServeMux) {
	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		if r.Method == http.MethodPost {
			io.WriteString(w, `{"success":true,"data":{"user":{"id":9,"username":"carol","role":"user","group_id":2}}}`)
			return
		}
		io.WriteString(w, `{"success":true,"data":{"users":[{"id":5,"username":"bob","role":"admin"}],"total":1,"page":1,"per_page":20}}`)
	})
	mux.HandleFunc("/api/users/5", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		if r.Method == http.MethodDelete {
			io.WriteString(w, `{"success":true,"message":"deleted"}`)
			return
		}
		io.WriteString(w, `{"success":true,"data":{"user":{"id":5,"username":"bob","role":"admin"}}}`)
	})
	mux.HandleFunc("/api/users/5/reset-password", func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		io.WriteString(w, `{"success":true,"message":"ok"}`)
	})
}

func (b *userBackend) last() (string, map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.calls) == 0 {
		return "", nil
	}
	return b.calls[len(b.calls)-1], b.body
}

func TestUserManagementRoutes(t *testing.T) {
	backend := &userBackend{}
	app := newTestApp(t, "super_admin", backend.register)
	app.login(t)

	w := app.do(http.MethodGet, "/ui/users", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list model.UserList
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	require.Len(t, list.Users, 1)
	assert.Equal(t, "bob", list.Users[0].Username)

	w = app.do(http.MethodGet, "/ui/users/5", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var user model.User
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &user))
	assert.Equal(t, "bob", user.Username)

	// 校验失败不访问后端
	w = app.do(http.MethodPost, "/ui/users", `{"username":"ab","password":"123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	call, _ := backend.last()
	assert.Equal(t, "GET /api/users/5", call)

	w = app.do(http.MethodPost, "/ui/users", `{"username":"carol","password":"secret1","group_id":2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &user))
	assert.Equal(t, 9, user.ID)
	call, body := backend.last()
	assert.Equal(t, "POST /api/users", call)
	assert.Equal(t, "user", body["role"])
	assert.Equal(t, "carol", body["username"])

	w = app.do(http.MethodPut, "/ui/users/5", `{"role":"user"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	call, body = backend.last()
	assert.Equal(t, "PUT /api/users/5", call)
	assert.Equal(t, map[string]interface{}{"role": "user"}, body)

	w = app.do(http.MethodPut, "/ui/users/5/reset-password", `{"new_password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(http.MethodPut, "/ui/users/5/reset-password", `{"new_password":"newpass1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	call, body = backend.last()
	assert.Equal(t, "PUT /api/users/5/reset-password", call)
	assert.Equal(t, "newpass1", body["new_password"])

	w = app.do(http.MethodDelete, "/ui/users/5", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	call, _ = backend.last()
	assert.Equal(t, "DELETE /api/users/5", call)

	w = app.do(http.MethodDelete, "/ui/users/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserManagementRequiresSuperAdmin(t *testing.T) {
	backend := &userBackend{}
	app := newTestApp(t, "admin", backend.register)
	app.login(t)

	w := app.do(http.MethodGet, "/ui/users", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = app.do(http.MethodPut, "/ui/users/5/reset-password", `{"new_password":"newpass1"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	call, _ := backend.last()
	assert.Empty(t, call)
}
