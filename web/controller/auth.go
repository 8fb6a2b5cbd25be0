package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gameshub/uvlhub/config"
	"github.com/gameshub/uvlhub/database/model"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/util/metrics"
	"github.com/gameshub/uvlhub/web/entity"
	"github.com/gameshub/uvlhub/web/middleware"
	"github.com/gameshub/uvlhub/web/service"
	"github.com/gameshub/uvlhub/web/session"

	"github.com/gin-gonic/gin"
)

var timeNow = time.Now

// AuthController handles signup, login, logout and two-factor routes.
type AuthController struct {
	BaseController

	auth      *service.AuthService
	users     *service.UserService
	twoFactor *service.TwoFactorService
}

// NewAuthController registers the authentication routes on g. limit guards
// every credential-bearing POST.
func NewAuthController(g *gin.RouterGroup, s *service.Services, limit gin.HandlerFunc) *AuthController {
	a := &AuthController{
		auth:      s.Auth,
		users:     s.Users,
		twoFactor: s.TwoFactor,
	}
	a.initRouter(g, limit)
	return a
}

func (a *AuthController) initRouter(g *gin.RouterGroup, limit gin.HandlerFunc) {
	g.GET("/signup", a.signupPage)
	g.POST("/signup", limit, a.signup)
	g.GET("/login", a.loginPage)
	g.POST("/login", limit, a.login)
	g.GET("/logout", a.logout)

	g.GET("/2fa/verify", a.verifyPage)
	g.POST("/2fa/verify", limit, a.verify)
	g.GET("/2fa/qrcode", a.qrcode)
	g.POST("/2fa/confirm", limit, a.confirm)

	setup := g.Group("/2fa/setup", middleware.LoginRequired())
	setup.GET("", a.setup)
	setup.POST("", a.setup)
}

// establish turns the request's session into an authenticated one.
func (a *AuthController) establish(c *gin.Context, user *model.User, remember bool) error {
	maxAge := config.GetSessionMaxAge() * 60
	if remember {
		maxAge = int(config.GetRememberMaxAge().Seconds())
	}
	if err := session.SetLoginUser(c, user, maxAge); err != nil {
		return err
	}
	session.SetCurrentUser(c, user)
	logger.Infof("user %d logged in from %s", user.Id, getRemoteIp(c))
	return nil
}

func (a *AuthController) signupPage(c *gin.Context) {
	if session.IsLogin(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}
	html(c, "signup.html", "pages.signup.title", nil)
}

func (a *AuthController) signup(c *gin.Context) {
	if session.IsLogin(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}
	var form service.SignupForm
	if err := c.ShouldBind(&form); err != nil {
		a.flashRedirect(c, http.StatusBadRequest, "danger", "flash.invalidForm", "/signup")
		return
	}
	user, err := a.auth.Signup(form)
	switch {
	case errors.Is(err, service.ErrEmailInUse):
		a.flashRedirect(c, http.StatusConflict, "danger", "flash.emailInUse", "/signup", "Email=="+form.Email)
		return
	case err != nil:
		a.flashRedirect(c, statusFor(err), "danger", flashKeyFor(err), "/signup")
		return
	}
	if err := a.establish(c, user, false); err != nil {
		logger.Warning("unable to save session:", err)
	}
	a.flashRedirect(c, http.StatusCreated, "success", "flash.welcome", "/", "Name=="+form.Name)
}

func (a *AuthController) loginPage(c *gin.Context) {
	if session.IsLogin(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}
	html(c, "login.html", "pages.login.title", nil)
}

func (a *AuthController) login(c *gin.Context) {
	if session.IsLogin(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}
	var form entity.LoginForm
	if err := c.ShouldBind(&form); err != nil {
		a.flashRedirect(c, http.StatusBadRequest, "danger", "flash.invalidCredentials", "/login")
		return
	}

	result, err := a.auth.Login(form.Email, form.Password, form.Remember)
	if errors.Is(err, service.ErrInvalidCredentials) {
		metrics.FailedLoginAttempts.WithLabelValues("password").Inc()
		logger.Warningf("failed login for %q from %s", form.Email, getRemoteIp(c))
		a.flashRedirect(c, http.StatusUnauthorized, "danger", "flash.invalidCredentials", "/login")
		return
	} else if err != nil {
		logger.Error("login failed:", err)
		a.fail(c, err)
		return
	}

	if result.State == service.StatePendingSecondFactor {
		if err := session.SetPendingLogin(c, result.Pending(timeNow())); err != nil {
			logger.Warning("unable to save pending login:", err)
			a.fail(c, err)
			return
		}
		if middleware.WantsJSON(c) {
			c.JSON(statusFor(service.ErrOtpRequired), entity.Msg{
				Success: false,
				Msg:     service.ErrOtpRequired.Error(),
				Obj:     gin.H{"next": "/2fa/verify"},
			})
			return
		}
		c.Redirect(http.StatusFound, "/2fa/verify")
		return
	}

	if err := a.establish(c, result.User, result.Remember); err != nil {
		logger.Warning("unable to save session:", err)
		a.fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		jsonObj(c, gin.H{"next": "/"}, nil)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (a *AuthController) logout(c *gin.Context) {
	if user := session.GetLoginUser(c); user != nil {
		logger.Infof("user %d logged out", user.Id)
	}
	if err := session.ClearSession(c); err != nil {
		logger.Warning("unable to clear session:", err)
	}
	c.Redirect(http.StatusFound, "/")
}

func (a *AuthController) verifyPage(c *gin.Context) {
	if session.GetPendingLogin(c, timeNow(), a.auth.PendingTTL()) == nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	html(c, "2fa_verify.html", "pages.twofactor.verifyTitle", nil)
}

func (a *AuthController) verify(c *gin.Context) {
	now := timeNow()
	pending := session.GetPendingLogin(c, now, a.auth.PendingTTL())
	if pending == nil {
		a.flashRedirect(c, http.StatusUnauthorized, "danger", "flash.sessionExpired", "/login")
		return
	}
	var form entity.CodeForm
	if err := c.ShouldBind(&form); err != nil {
		a.flashRedirect(c, http.StatusUnauthorized, "danger", "flash.invalidCode", "/2fa/verify")
		return
	}

	user, err := a.auth.VerifySecondFactor(pending, form.Code, now)
	switch {
	case errors.Is(err, service.ErrInvalidOtp):
		metrics.FailedLoginAttempts.WithLabelValues("otp").Inc()
		logger.Warningf("invalid two-factor code for user %d from %s", pending.AccountId, getRemoteIp(c))
		a.flashRedirect(c, http.StatusUnauthorized, "danger", "flash.invalidCode", "/2fa/verify")
		return
	case errors.Is(err, service.ErrUnauthorized):
		_ = session.ClearPendingLogin(c)
		a.flashRedirect(c, http.StatusUnauthorized, "danger", "flash.sessionExpired", "/login")
		return
	case err != nil:
		logger.Error("two-factor verification failed:", err)
		a.fail(c, err)
		return
	}

	if err := a.establish(c, user, pending.Remember); err != nil {
		logger.Warning("unable to save session:", err)
		a.fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		jsonObj(c, gin.H{"next": "/"}, nil)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (a *AuthController) setup(c *gin.Context) {
	setup, err := a.twoFactor.Setup(session.GetLoginUser(c))
	if err != nil {
		logger.Error("two-factor setup failed:", err)
		a.fail(c, err)
		return
	}
	if middleware.WantsJSON(c) {
		jsonObj(c, setup, nil)
		return
	}
	html(c, "2fa_setup.html", "pages.twofactor.setupTitle", gin.H{
		"secret": setup.Secret,
		"uri":    setup.ProvisioningURI,
	})
}

func (a *AuthController) qrcode(c *gin.Context) {
	png, err := a.twoFactor.QRCode(session.GetLoginUser(c))
	if err != nil {
		c.Status(statusFor(err))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

func (a *AuthController) confirm(c *gin.Context) {
	user := session.GetLoginUser(c)
	if user == nil {
		c.Status(http.StatusUnauthorized)
		return
	}
	var form entity.CodeForm
	if err := c.ShouldBind(&form); err != nil {
		a.flashRedirect(c, http.StatusBadRequest, "danger", "flash.invalidCode", "/2fa/setup")
		return
	}
	err := a.twoFactor.Confirm(user, form.Code, timeNow())
	switch {
	case err == nil:
		a.flashRedirect(c, http.StatusOK, "success", "flash.twoFactorEnabled", "/profile/edit")
	case errors.Is(err, service.ErrInvalidOtp), errors.Is(err, service.ErrNotFound):
		a.flashRedirect(c, http.StatusBadRequest, "danger", "flash.invalidCode", "/2fa/setup")
	default:
		logger.Error("two-factor confirmation failed:", err)
		a.fail(c, err)
	}
}
