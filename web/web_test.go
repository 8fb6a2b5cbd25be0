package web

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gameshub/uvlhub/database"
	"github.com/gameshub/uvlhub/web/cache"
	"github.com/gameshub/uvlhub/web/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HUB_UPLOADS_FOLDER", filepath.Join(dir, "uploads"))
	t.Setenv("HUB_SECRET_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("FAKENODO_URL", "http://127.0.0.1:1")
	require.NoError(t, database.InitDB(filepath.Join(dir, "hub.db")))
	t.Cleanup(func() { _ = database.CloseDB() })

	c, err := cache.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	engine, err := NewEngine(service.NewServices(database.GetDB(), c), c)
	require.NoError(t, err)
	return engine
}

func request(engine http.Handler, method, path string, form url.Values, cookies []*http.Cookie, header map[string]string) *httptest.ResponseRecorder {
	body := strings.NewReader("")
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestPagesRender(t *testing.T) {
	engine := newTestEngine(t)

	for _, path := range []string{"/", "/login", "/signup"} {
		w := request(engine, http.MethodGet, path, nil, nil, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), "Games Hub", path)
	}

	w := request(engine, http.MethodGet, "/login", nil, nil, map[string]string{"Accept-Language": "es-ES"})
	assert.Contains(t, w.Body.String(), "Iniciar sesión")
}

func TestSignupRendersAccountPages(t *testing.T) {
	engine := newTestEngine(t)

	w := request(engine, http.MethodPost, "/signup", url.Values{
		"email": {"grace@example.com"}, "password": {"pw"}, "name": {"Grace"}, "surname": {"Hopper"},
	}, nil, nil)
	require.Equal(t, http.StatusFound, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	w = request(engine, http.MethodGet, "/", nil, cookies, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome, Grace!")

	for _, path := range []string{"/profile/summary", "/profile/edit", "/dataset/upload", "/dataset/list", "/2fa/setup"} {
		w = request(engine, http.MethodGet, path, nil, cookies, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w = request(engine, http.MethodGet, "/admin/users", nil, cookies, nil)
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	engine := newTestEngine(t)
	w := request(engine, http.MethodGet, "/nope", nil, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	engine := newTestEngine(t)
	w := request(engine, http.MethodGet, "/metrics", nil, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	t.Setenv("HUB_METRICS", "true")
	engine = newTestEngine(t)
	request(engine, http.MethodGet, "/login", nil, nil, nil)
	w = request(engine, http.MethodGet, "/metrics", nil, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `gameshub_http_requests_total{method="GET",path="/login",status="200"}`)
}
