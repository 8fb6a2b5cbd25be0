package controller

import (
	"html/template"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gameshub/uvlhub/database"
	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/fakenodo"
	"github.com/gameshub/uvlhub/web/cache"
	"github.com/gameshub/uvlhub/web/locale"
	"github.com/gameshub/uvlhub/web/middleware"
	"github.com/gameshub/uvlhub/web/service"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

var pages = []string{
	"index.html", "login.html", "signup.html", "2fa_verify.html", "2fa_setup.html",
	"admin_users.html", "admin_audit.html", "profile_edit.html", "profile_summary.html",
	"dataset_upload.html", "dataset_list.html", "dataset_view.html",
}

// stubTemplates renders every page as its own name.
func stubTemplates() *template.Template {
	t := template.New("")
	for _, name := range pages {
		template.Must(t.New(name).Parse(name))
	}
	return t
}

type testEnv struct {
	s      *service.Services
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	t.Setenv("HUB_UPLOADS_FOLDER", filepath.Join(dir, "uploads"))
	require.NoError(t, database.InitDB(filepath.Join(dir, "hub.db")))
	t.Cleanup(func() { _ = database.CloseDB() })

	c, err := cache.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	stub := httptest.NewServer(fakenodo.NewServer().Handler())
	t.Cleanup(stub.Close)

	prev := timeNow
	timeNow = func() time.Time { return testNow }
	t.Cleanup(func() { timeNow = prev })

	s := service.NewServicesWith(database.GetDB(), nil, service.ZenodoOptions{
		BaseURL:    stub.URL + "/deposit/depositions",
		RetryTotal: 1,
		Backoff:    time.Millisecond,
		RateWait:   time.Millisecond,
		Client:     stub.Client(),
	})

	r := gin.New()
	r.SetHTMLTemplate(stubTemplates())
	r.Use(sessions.Sessions("hub", cache.NewRedisStore(c.Client(), []byte("0123456789abcdef0123456789abcdef"))))
	r.Use(locale.LocalizerMiddleware())
	r.Use(middleware.LoadAccount(s.Users))
	r.Use(middleware.AuditMiddleware(s.Audit))

	g := r.Group("/")
	limit := middleware.RateLimitMiddleware(c.Client(), 0)
	NewIndexController(g, s)
	NewAuthController(g, s, limit)
	NewUserAdminController(g, s)
	NewAuditController(g, s)
	NewProfileController(g, s)
	NewDatasetController(g, s)
	NewCommentController(g, s)
	NewAPIController(g, s)
	NewZenodoController(g, s)

	return &testEnv{s: s, router: r}
}

// client keeps cookies between requests like a browser would.
type client struct {
	env     *testEnv
	cookies map[string]*http.Cookie
}

func (e *testEnv) client() *client {
	return &client{env: e, cookies: map[string]*http.Cookie{}}
}

// do sends a request. form, when set, is posted url-encoded; otherwise the
// optional raw body is sent as is.
func (c *client) do(method, path string, form url.Values, header map[string]string, raw ...io.Reader) *httptest.ResponseRecorder {
	var body io.Reader = strings.NewReader("")
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else if len(raw) > 0 {
		body = raw[0]
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.env.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
		} else {
			c.cookies[ck.Name] = ck
		}
	}
	return w
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, path, nil, nil)
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, path, form, nil)
}

func (c *client) postJSON(path string, form url.Values) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, path, form, map[string]string{"X-Requested-With": "XMLHttpRequest"})
}

func (c *client) login(t *testing.T, email string) {
	t.Helper()
	w := c.post("/login", url.Values{"email": {email}, "password": {"secret"}})
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))
}

func createUser(t *testing.T, s *service.Services, email string, role model.Role) *model.User {
	t.Helper()
	u, err := s.Users.CreateUser(email, "secret", role, &model.UserProfile{Name: "Ada", Surname: "Lovelace"})
	require.NoError(t, err)
	return u
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

// wrongCode returns a six digit code that is not accepted at testNow.
func wrongCode(t *testing.T, secret string) string {
	t.Helper()
	valid := map[string]bool{}
	for _, d := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		valid[codeAt(t, secret, testNow.Add(d))] = true
	}
	for _, code := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[code] {
			return code
		}
	}
	t.Fatal("no invalid code found")
	return ""
}

func enableTwoFactor(t *testing.T, s *service.Services, u *model.User) string {
	t.Helper()
	setup, err := s.TwoFactor.Setup(u)
	require.NoError(t, err)
	require.NoError(t, s.TwoFactor.Confirm(u, codeAt(t, setup.Secret, testNow), testNow))
	return setup.Secret
}
