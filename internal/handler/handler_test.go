package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smalllight01/plc-admin-sub001/internal/apiclient"
	"github.com/Smalllight01/plc-admin-sub001/internal/cache/lru"
	"github.com/Smalllight01/plc-admin-sub001/internal/history"
	"github.com/Smalllight01/plc-admin-sub001/internal/middleware"
	"github.com/Smalllight01/plc-admin-sub001/internal/model"
	"github.com/Smalllight01/plc-admin-sub001/internal/poller"
	"github.com/Smalllight01/plc-admin-sub001/internal/repository"
	"github.com/Smalllight01/plc-admin-sub001/internal/service"
	"github.com/Smalllight01/plc-admin-sub001/internal/session"
	"github.com/Smalllight01/plc-admin-sub001/internal/telemetry"
	"github.com/Smalllight01/plc-admin-sub001/pkg/config"
	"github.com/Smalllight01/plc-admin-sub001/pkg/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	router   *gin.Engine
	session  *session.Session
	toasts   *session.Toasts
	backend  *httptest.Server
	inbound  *middleware.BreakerGroup
	upstream *middleware.BreakerGroup
	settings atomic.Int32
}

// newTestApp 用真实的客户端和服务连接到模拟后端
func newTestApp(t *testing.T, role string, extra func(mux *http.ServeMux)) *testApp {
	t.Helper()
	app := &testApp{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "wrong") {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"detail":"用户名或密码错误"}`)
			return
		}
		io.WriteString(w, `{"success":true,"data":{"token":"tok-1","user":{"id":1,"username":"op","role":"`+role+`"}}}`)
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true}`)
	})
	mux.HandleFunc("/api/devices", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"devices":[{"id":1,"name":"PLC-1","addresses":"[]"}],"total":1,"page":1,"page_size":20,"total_pages":1}`)
	})
	mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		app.settings.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"token expired"}`)
	})
	if extra != nil {
		extra(mux)
	}
	app.backend = httptest.NewServer(mux)
	t.Cleanup(app.backend.Close)

	app.session = session.New(nil, "")
	require.NoError(t, app.session.Init(context.Background()))
	app.toasts = session.NewToasts(10)

	app.inbound = middleware.NewBreakerGroup(nil, middleware.RouteClasses...)
	app.upstream = middleware.NewBreakerGroup(nil, apiclient.Classes...)
	client := apiclient.New(app.backend.URL,
		apiclient.WithBreakers(app.upstream),
		apiclient.WithTokenStore(app.session),
		apiclient.WithRedirector(apiclient.RedirectFunc(func(path string) {
			app.toasts.Push(session.ToastError, "登录已过期，请重新登录")
		})),
	)

	repo := repository.NewMemoryRepository(lru.NewCache(1<<20, time.Minute, nil))
	p := poller.New(repo, telemetry.Noop(), time.Second)
	dashboard, err := service.NewDashboardService(client, p, config.PollConfig{})
	require.NoError(t, err)
	historySvc := service.NewHistoryService(client, history.Options{WindowSize: 50})
	authSvc := service.NewAuthService(client, app.session)
	service.BindSession(app.session, dashboard, historySvc)

	app.router = SetupRouter(RouterDeps{
		Guard:    session.NewGuard(app.session, client, app.toasts),
		Breakers: app.inbound,
		Auth:     NewAuthHandler(authSvc),
		Device:   NewDeviceHandler(client, dashboard),
		Group:    NewGroupHandler(client),
		User:     NewUserHandler(client),
		Data:     NewDataHandler(client, dashboard, historySvc),
		History:  NewHistoryHandler(historySvc),
		System:   NewSystemHandler(client, dashboard, app.toasts),
		Proxy:    NewProxyHandler(client),
		Monitor: NewMonitorHandler(MonitorDeps{
			Breakers:  app.inbound,
			Upstream:  app.upstream,
			Cache:     repo,
			Dashboard: dashboard,
			Gatherer:  prometheus.NewRegistry(),
		}),
	})
	return app
}

func (a *testApp) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) login(t *testing.T) {
	t.Helper()
	w := a.do(http.MethodPost, "/login", `{"username":"op","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "tok-1", a.session.Token())
}

type envelope struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Redirect string          `json:"redirect"`
	Data     json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

func TestProtectedRouteRequiresLogin(t *testing.T) {
	app := newTestApp(t, "user", nil)

	w := app.do(http.MethodGet, "/ui/devices", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "/login", decode(t, w).Redirect)

	w = app.do(http.MethodGet, "/ui/devices", "", "Accept", "text/html")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestLoginThenPolledDevices(t *testing.T) {
	app := newTestApp(t, "user", nil)
	app.login(t)

	w := app.do(http.MethodGet, "/ui/devices", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var view struct {
		Data struct {
			Devices []struct {
				Name string `json:"name"`
			} `json:"devices"`
		} `json:"data"`
		Seq  uint64 `json:"seq"`
		Live bool   `json:"live"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	require.Len(t, view.Data.Devices, 1)
	assert.Equal(t, "PLC-1", view.Data.Devices[0].Name)
	assert.Equal(t, uint64(1), view.Seq)
	assert.False(t, view.Live)

	// 带过滤条件时直接请求后端
	w = app.do(http.MethodGet, "/ui/devices?group_id=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	assert.True(t, view.Live)
}

func TestRoleGuardRedirectsHome(t *testing.T) {
	app := newTestApp(t, "user", nil)
	app.login(t)

	w := app.do(http.MethodGet, "/ui/groups", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	e := decode(t, w)
	assert.Equal(t, "/", e.Redirect)
	assert.Equal(t, session.MsgSuperAdminRequired, e.Message)

	w = app.do(http.MethodGet, "/ui/toasts", "")
	var toasts []session.Toast
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &toasts))
	require.Len(t, toasts, 1)
	assert.Equal(t, session.MsgSuperAdminRequired, toasts[0].Message)
}

func TestBackendUnauthorizedClearsSession(t *testing.T) {
	app := newTestApp(t, "super_admin", nil)
	app.login(t)

	w := app.do(http.MethodGet, "/ui/settings", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "/login", decode(t, w).Redirect)
	assert.Equal(t, int32(1), app.settings.Load())
	assert.Empty(t, app.session.Token())
	assert.Equal(t, 1, app.toasts.Len())

	// 会话已清除，后续请求不再到达后端
	w = app.do(http.MethodGet, "/ui/settings", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int32(1), app.settings.Load())
}

func TestUpdateSettingsValidates(t *testing.T) {
	app := newTestApp(t, "super_admin", nil)
	app.login(t)

	w := app.do(http.MethodPut, "/ui/settings", `{"system_name":"","plc_collect_interval":5,"data_retention_days":30}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "system_name is required", decode(t, w).Message)
	assert.Equal(t, int32(0), app.settings.Load())
}

func TestProxyForwardsWithBearer(t *testing.T) {
	app := newTestApp(t, "user", func(mux *http.ServeMux) {
		mux.HandleFunc("/api/custom/echo", func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("X-Backend", "yes")
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, r.Header.Get("Authorization")+"|"+r.URL.RawQuery+"|"+string(body))
		})
	})
	app.login(t)

	w := app.do(http.MethodPost, "/api/custom/echo?x=1", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "yes", w.Header().Get("X-Backend"))
	assert.Equal(t, `Bearer tok-1|x=1|{"a":1}`, w.Body.String())
}

func TestHistoryQueryAndExport(t *testing.T) {
	app := newTestApp(t, "user", func(mux *http.ServeMux) {
		mux.HandleFunc("/api/devices/1", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"success":true,"data":{"id":1,"name":"1号机","addresses":"[{\"address\":\"40001\",\"name\":\"温度\"}]"}}`)
		})
		mux.HandleFunc("/api/data/history", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "1", r.URL.Query().Get("device_id"))
			io.WriteString(w, `{"device_id":"1","data":[`+
				`{"time":"2026-10-16T10:00:00","device_id":"1","address":"40001","value":1.5},`+
				`{"time":"2026-10-16T10:00:01","device_id":"1","address":"40001","value":2.5}]}`)
		})
	})
	app.login(t)

	w := app.do(http.MethodGet, "/ui/history/export", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(http.MethodPost, "/ui/history/query", `{"device_id":1,"addresses":[{"address":"40001"}],"time_range":"1h"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view struct {
		Total  int                      `json:"total"`
		Rows   []map[string]interface{} `json:"rows"`
		Labels map[string]string        `json:"labels"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	assert.Equal(t, 2, view.Total)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, 1.5, view.Rows[0]["40001"])
	assert.Equal(t, "1号机 - 温度", view.Labels["40001"])

	w = app.do(http.MethodGet, "/ui/history/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.NotZero(t, w.Body.Len())

	w = app.do(http.MethodPost, "/ui/history/slide", `{"action":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMonitorEndpoints(t *testing.T) {
	app := newTestApp(t, "user", nil)

	w := app.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)

	w = app.do(http.MethodGet, "/monitor/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &status))
	assert.Contains(t, status, "circuit_breaker")
	assert.Contains(t, status, "backend_breaker")
	assert.Contains(t, status, "poll_tasks")

	w = app.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func historyBackend(mux *http.ServeMux) {
	mux.HandleFunc("/api/devices/1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"data":{"id":1,"name":"1号机","addresses":"[{\"address\":\"40001\",\"name\":\"温度\"}]"}}`)
	})
	mux.HandleFunc("/api/data/history", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"device_id":"1","data":[`+
			`{"time":"2026-10-16T10:00:00","device_id":"1","address":"40001","value":1.5},`+
			`{"time":"2026-10-16T10:00:01","device_id":"1","address":"40001","value":2.5}]}`)
	})
}

type windowView struct {
	Total  int                      `json:"total"`
	Rows   []map[string]interface{} `json:"rows"`
	Labels map[string]string        `json:"labels"`
}

func (a *testApp) window(t *testing.T) windowView {
	t.Helper()
	w := a.do(http.MethodGet, "/ui/history/window", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view windowView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	return view
}

func (a *testApp) devicesSeq(t *testing.T) uint64 {
	t.Helper()
	w := a.do(http.MethodGet, "/ui/devices", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view struct {
		Seq uint64 `json:"seq"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	return view.Seq
}

const historyQueryBody = `{"device_id":1,"addresses":[{"address":"40001"}],"time_range":"1h"}`

func TestLogoutClearsCachedViews(t *testing.T) {
	app := newTestApp(t, "super_admin", historyBackend)
	app.login(t)

	assert.Equal(t, uint64(1), app.devicesSeq(t))
	w := app.do(http.MethodPost, "/ui/history/query", historyQueryBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, 2, app.window(t).Total)

	w = app.do(http.MethodPost, "/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, app.session.Token())

	// 下一个用户登录后看不到上一个会话的数据
	app.login(t)
	view := app.window(t)
	assert.Equal(t, 0, view.Total)
	assert.Empty(t, view.Rows)
	assert.Empty(t, view.Labels)
	assert.Equal(t, uint64(2), app.devicesSeq(t))
}

func TestAccountSwitchClearsCachedViews(t *testing.T) {
	app := newTestApp(t, "super_admin", historyBackend)
	app.login(t)

	assert.Equal(t, uint64(1), app.devicesSeq(t))
	w := app.do(http.MethodPost, "/ui/history/query", historyQueryBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, 2, app.window(t).Total)

	require.NoError(t, app.session.Set(context.Background(), &model.User{ID: 2, Username: "other", Role: model.RoleUser}, "tok-2"))
	assert.Equal(t, 0, app.window(t).Total)
	assert.Equal(t, uint64(2), app.devicesSeq(t))
}

func TestWindowServedWhileBackendHistoryFails(t *testing.T) {
	app := newTestApp(t, "user", func(mux *http.ServeMux) {
		mux.HandleFunc("/api/devices/1", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"success":true,"data":{"id":1,"name":"1号机","addresses":"[]"}}`)
		})
		mux.HandleFunc("/api/data/history", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"detail":"database unavailable"}`)
		})
	})
	app.login(t)

	for i := 0; i < 12; i++ {
		w := app.do(http.MethodPost, "/ui/history/query", historyQueryBody)
		assert.GreaterOrEqual(t, w.Code, http.StatusInternalServerError)
	}
	assert.Equal(t, middleware.StateOpen, app.upstream.GetBreaker(apiclient.ClassHistory).GetState())
	assert.Equal(t, middleware.StateClosed, app.inbound.GetBreaker("history").GetState())

	// 窗口操作不访问后端
	assert.Equal(t, 0, app.window(t).Total)
	w := app.do(http.MethodPost, "/ui/history/slide", `{"action":"forward"}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLoginRejectedShowsBackendDetail(t *testing.T) {
	app := newTestApp(t, "user", nil)
	app.login(t)

	w := app.do(http.MethodPost, "/login", `{"username":"op","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	e := decode(t, w)
	assert.Equal(t, "用户名或密码错误", e.Message)
	assert.Empty(t, e.Redirect)

	assert.Equal(t, "tok-1", app.session.Token())
	assert.Equal(t, 0, app.toasts.Len())
}
