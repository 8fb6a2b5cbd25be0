package controller

import (
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/web/entity"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginWithTwoFactor(t *testing.T) {
	env := newTestEnv(t)
	u := createUser(t, env.s, "ada@example.com", model.RoleStandard)
	secret := enableTwoFactor(t, env.s, u)
	c := env.client()

	w := c.post("/login", url.Values{"email": {"ada@example.com"}, "password": {"secret"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/2fa/verify", w.Header().Get("Location"))

	// the pending marker does not authenticate
	w = c.get("/profile/summary")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = c.get("/2fa/verify")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2fa_verify.html")

	w = c.post("/2fa/verify", url.Values{"code": {codeAt(t, secret, testNow)}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = c.get("/profile/summary")
	assert.Equal(t, http.StatusOK, w.Code)

	// the marker is gone once the login completed
	w = c.get("/2fa/verify")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestLoginWithTwoFactorRejectsWrongCode(t *testing.T) {
	env := newTestEnv(t)
	u := createUser(t, env.s, "ada@example.com", model.RoleStandard)
	secret := enableTwoFactor(t, env.s, u)
	c := env.client()

	c.post("/login", url.Values{"email": {"ada@example.com"}, "password": {"secret"}})

	w := c.post("/2fa/verify", url.Values{"code": {wrongCode(t, secret)}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/2fa/verify", w.Header().Get("Location"))

	w = c.postJSON("/2fa/verify", url.Values{"code": {"abc"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.get("/profile/summary")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	// the marker survives failed attempts
	w = c.post("/2fa/verify", url.Values{"code": {codeAt(t, secret, testNow)}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestLoginJSONReportsSecondFactor(t *testing.T) {
	env := newTestEnv(t)
	u := createUser(t, env.s, "ada@example.com", model.RoleStandard)
	enableTwoFactor(t, env.s, u)
	c := env.client()

	w := c.postJSON("/login", url.Values{"email": {"ada@example.com"}, "password": {"secret"}})
	assert.Equal(t, http.StatusAccepted, w.Code)
	var msg entity.Msg
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.False(t, msg.Success)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	createUser(t, env.s, "ada@example.com", model.RoleStandard)
	c := env.client()

	w := c.post("/login", url.Values{"email": {"ada@example.com"}, "password": {"nope"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = c.postJSON("/login", url.Values{"email": {"nobody@example.com"}, "password": {"secret"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginIssuesNewSession(t *testing.T) {
	env := newTestEnv(t)
	createUser(t, env.s, "ada@example.com", model.RoleStandard)
	c := env.client()

	// a failed attempt leaves a flash, and with it a session cookie
	c.post("/login", url.Values{"email": {"ada@example.com"}, "password": {"nope"}})
	before, ok := c.cookies["hub"]
	require.True(t, ok)

	c.login(t, "ada@example.com")
	after, ok := c.cookies["hub"]
	require.True(t, ok)
	assert.NotEqual(t, before.Value, after.Value)
	assert.Equal(t, http.StatusOK, c.get("/profile/summary").Code)

	planted := env.client()
	planted.cookies["hub"] = before
	w := planted.get("/profile/summary")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestPendingLoginExpires(t *testing.T) {
	env := newTestEnv(t)
	u := createUser(t, env.s, "ada@example.com", model.RoleStandard)
	secret := enableTwoFactor(t, env.s, u)
	c := env.client()

	c.post("/login", url.Values{"email": {"ada@example.com"}, "password": {"secret"}})

	later := testNow.Add(env.s.Auth.PendingTTL() + time.Second)
	timeNow = func() time.Time { return later }

	w := c.post("/2fa/verify", url.Values{"code": {codeAt(t, secret, later)}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestVerifyWithoutPendingLogin(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	w := c.get("/2fa/verify")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = c.postJSON("/2fa/verify", url.Values{"code": {"123456"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminChangesRole(t *testing.T) {
	env := newTestEnv(t)
	createUser(t, env.s, "admin@example.com", model.RoleAdmin)
	target := createUser(t, env.s, "user@example.com", model.RoleStandard)
	c := env.client()
	c.login(t, "admin@example.com")

	path := "/admin/users/" + strconv.Itoa(target.Id) + "/role"
	w := c.post(path, url.Values{"role": {"curator"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/users", w.Header().Get("Location"))

	got, err := env.s.Users.GetById(target.Id)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCurator, got.Role)

	w = c.postJSON(path, url.Values{"role": {"superuser"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	got, err = env.s.Users.GetById(target.Id)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCurator, got.Role)

	w = c.postJSON("/admin/users/9999/role", url.Values{"role": {"curator"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	entries, err := env.s.Audit.GetRecent(10)
	require.NoError(t, err)
	actions := []string{}
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, "ROLE")
}

func TestNonAdminCannotChangeRole(t *testing.T) {
	env := newTestEnv(t)
	createUser(t, env.s, "user@example.com", model.RoleStandard)
	target := createUser(t, env.s, "other@example.com", model.RoleStandard)
	c := env.client()
	c.login(t, "user@example.com")

	path := "/admin/users/" + strconv.Itoa(target.Id) + "/role"
	w := c.postJSON(path, url.Values{"role": {"admin"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = c.post(path, url.Values{"role": {"admin"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = c.get("/admin/users")
	assert.Equal(t, http.StatusFound, w.Code)

	got, err := env.s.Users.GetById(target.Id)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStandard, got.Role)

	anonymous := env.client()
	w = anonymous.postJSON(path, url.Values{"role": {"admin"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTwoFactorSetupFlow(t *testing.T) {
	env := newTestEnv(t)
	u := createUser(t, env.s, "ada@example.com", model.RoleStandard)
	anonymous := env.client()
	assert.Equal(t, http.StatusUnauthorized, anonymous.get("/2fa/qrcode").Code)
	assert.Equal(t, http.StatusUnauthorized, anonymous.post("/2fa/confirm", url.Values{"code": {"123456"}}).Code)

	c := env.client()
	c.login(t, "ada@example.com")
	assert.Equal(t, http.StatusNotFound, c.get("/2fa/qrcode").Code)

	w := c.get("/2fa/setup")
	require.Equal(t, http.StatusOK, w.Code)

	w = c.get("/2fa/qrcode")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	got, err := env.s.Users.GetById(u.Id)
	require.NoError(t, err)
	require.NotEmpty(t, got.TotpSecret)
	assert.False(t, got.TwoFactorEnabled)

	w = c.post("/2fa/confirm", url.Values{"code": {wrongCode(t, got.TotpSecret)}})
	assert.Equal(t, "/2fa/setup", w.Header().Get("Location"))

	w = c.post("/2fa/confirm", url.Values{"code": {codeAt(t, got.TotpSecret, testNow)}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/profile/edit", w.Header().Get("Location"))

	got, err = env.s.Users.GetById(u.Id)
	require.NoError(t, err)
	assert.True(t, got.TwoFactorEnabled)
}

func TestSignupAndLogout(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	w := c.post("/signup", url.Values{
		"email": {"new@example.com"}, "password": {"pw"}, "name": {"Grace"}, "surname": {"Hopper"},
	})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, http.StatusOK, c.get("/profile/summary").Code)

	w = c.get("/logout")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, http.StatusFound, c.get("/profile/summary").Code)

	w = env.client().postJSON("/signup", url.Values{
		"email": {"new@example.com"}, "password": {"pw"}, "name": {"Grace"}, "surname": {"Hopper"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}
