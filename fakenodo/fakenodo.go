// Package fakenodo is an in-memory stand-in for the Zenodo deposition API,
// used in development and tests so the hub never calls the real service.
package fakenodo

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/util/common"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	listener   net.Listener
	store      *Store

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		store:  NewStore(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Handler returns the API router, for mounting in tests.
func (s *Server) Handler() http.Handler {
	gin.DefaultWriter = io.Discard
	gin.DefaultErrorWriter = io.Discard
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	newController(engine.Group("/deposit/depositions"), s.store)
	return engine
}

func (s *Server) Start(listen string, port int) error {
	listenAddr := net.JoinHostPort(listen, strconv.Itoa(port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	logger.Info("Fakenodo running on", listener.Addr())

	s.listener = listener
	s.httpServer = &http.Server{Handler: s.Handler()}
	go func() {
		_ = s.httpServer.Serve(listener)
	}()
	return nil
}

func (s *Server) Stop() error {
	s.cancel()
	var err1, err2 error
	if s.httpServer != nil {
		err1 = s.httpServer.Shutdown(context.Background())
	} else if s.listener != nil {
		err2 = s.listener.Close()
	}
	return common.Combine(err1, err2)
}

func (s *Server) GetCtx() context.Context { return s.ctx }
