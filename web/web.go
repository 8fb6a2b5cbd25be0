// Package web runs the hub's HTTP server: routing, templates, sessions and
// the scheduled background jobs.
package web

import (
	"context"
	"crypto/tls"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gameshub/uvlhub/config"
	"github.com/gameshub/uvlhub/database"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/util/common"
	"github.com/gameshub/uvlhub/util/metrics"
	"github.com/gameshub/uvlhub/util/random"
	"github.com/gameshub/uvlhub/web/cache"
	"github.com/gameshub/uvlhub/web/controller"
	"github.com/gameshub/uvlhub/web/job"
	"github.com/gameshub/uvlhub/web/locale"
	"github.com/gameshub/uvlhub/web/middleware"
	"github.com/gameshub/uvlhub/web/network"
	"github.com/gameshub/uvlhub/web/service"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

//go:embed html
var htmlFS embed.FS

//go:embed translation/*
var i18nFS embed.FS

const (
	sessionName     = "gameshub"
	shutdownTimeout = 10 * time.Second
)

// Server is the hub's web server with its services and scheduled jobs.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	cache    *cache.Cache
	services *service.Services

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new web server instance with a cancellable context.
func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{ctx: ctx, cancel: cancel}
}

// getHtmlFiles lists the templates under web/html on disk. Used in debug
// mode so edits show up without a rebuild.
func getHtmlFiles() ([]string, error) {
	files := make([]string, 0)
	dir, _ := os.Getwd()
	err := fs.WalkDir(os.DirFS(dir), "web/html", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// getHtmlTemplate parses every embedded template folder.
func getHtmlTemplate(funcMap template.FuncMap) (*template.Template, error) {
	t := template.New("").Funcs(funcMap)
	err := fs.WalkDir(htmlFS, "html", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			newT, err := t.ParseFS(htmlFS, path+"/*.html")
			if err != nil {
				// ignore folders without matches
				return nil
			}
			t = newT
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// sessionStore signs session cookies with HUB_SECRET_KEY, or with a key
// generated for this process when none is configured.
func sessionStore(c *cache.Cache) sessions.Store {
	secret := config.GetSecretKey()
	if secret == "" {
		logger.Warning("HUB_SECRET_KEY is not set, sessions will not survive a restart")
		secret = random.Seq(32)
	}
	return cache.NewRedisStore(c.Client(), []byte(secret))
}

// NewEngine builds the gin engine serving every route of the hub.
func NewEngine(s *service.Services, c *cache.Cache) (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	if err := locale.InitLocalizer(i18nFS); err != nil {
		return nil, err
	}

	engine := gin.Default()
	engine.Use(middleware.MetricsMiddleware())
	engine.Use(gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedExtensions([]string{".png", ".zip"}),
	))

	funcMap := template.FuncMap{
		"formatSize": common.FormatSize,
	}
	engine.SetFuncMap(funcMap)
	if config.IsDebug() {
		files, err := getHtmlFiles()
		if err != nil {
			return nil, err
		}
		engine.LoadHTMLFiles(files...)
	} else {
		tpl, err := getHtmlTemplate(funcMap)
		if err != nil {
			return nil, err
		}
		engine.SetHTMLTemplate(tpl)
	}

	engine.Use(sessions.Sessions(sessionName, sessionStore(c)))
	engine.Use(locale.LocalizerMiddleware())
	engine.Use(middleware.LoadAccount(s.Users))
	engine.Use(middleware.AuditMiddleware(s.Audit))

	limit := middleware.RateLimitMiddleware(c.Client(), config.GetAuthRateLimit())

	g := engine.Group("/")
	controller.NewIndexController(g, s)
	controller.NewAuthController(g, s, limit)
	controller.NewUserAdminController(g, s)
	controller.NewAuditController(g, s)
	controller.NewProfileController(g, s)
	controller.NewDatasetController(g, s)
	controller.NewCommentController(g, s)
	controller.NewAPIController(g, s)
	controller.NewZenodoController(g, s)

	if config.IsMetricsEnabled() {
		engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusNotFound)
	})

	return engine, nil
}

// startTask schedules the background jobs.
func (s *Server) startTask() {
	s.cron.AddJob("@hourly", job.NewCleanTempUploadsJob())
	s.cron.AddJob("@every 10m", job.NewSyncDepositionsJob(s.services.Datasets))
	s.cron.AddJob("@daily", job.NewAuditCleanupJob(s.services.Audit))
}

// Start opens the cache, wires the services and starts serving.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	s.cache, err = cache.New(config.GetRedisAddr())
	if err != nil {
		return err
	}
	s.services = service.NewServices(database.GetDB(), s.cache)

	s.cron = cron.New(cron.WithLocation(time.Local))
	s.cron.Start()

	engine, err := NewEngine(s.services, s.cache)
	if err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(config.GetListen(), strconv.Itoa(config.GetPort()))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	if certFile, keyFile := config.GetCertFile(), config.GetKeyFile(); certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			_ = listener.Close()
			return err
		}
		listener = network.NewRedirectListener(listener)
		listener = tls.NewListener(listener, &tls.Config{Certificates: []tls.Certificate{cert}})
		logger.Info("Web server running HTTPS on", listener.Addr())
	} else {
		logger.Info("Web server running HTTP on", listener.Addr())
	}

	s.listener = listener
	s.httpServer = &http.Server{Handler: engine}

	go func() {
		_ = s.httpServer.Serve(listener)
	}()

	s.startTask()

	return nil
}

// Stop shuts down the HTTP server, the jobs and the cache.
func (s *Server) Stop() error {
	s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
	var err1, err2, err3 error
	if s.httpServer != nil {
		// Shutdown closes the listener too.
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err1 = s.httpServer.Shutdown(ctx)
	} else if s.listener != nil {
		err2 = s.listener.Close()
	}
	if s.cache != nil {
		err3 = s.cache.Close()
	}
	return common.Combine(err1, err2, err3)
}

// GetCtx returns the server's context.
func (s *Server) GetCtx() context.Context { return s.ctx }

// GetCron returns the server's cron scheduler instance.
func (s *Server) GetCron() *cron.Cron { return s.cron }
