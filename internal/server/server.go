// Package server exposes the HTTP surface: one resolve route, one route per
// character data kind, plus health and metrics. Handlers bind parameters and
// delegate to the fetch pipeline; all error shaping happens in middleware.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cubelab/maple-proxy/pkg/apierr"
	"github.com/cubelab/maple-proxy/pkg/logging"
	"github.com/cubelab/maple-proxy/pkg/metrics"
	"github.com/cubelab/maple-proxy/pkg/pipeline"
	"github.com/cubelab/maple-proxy/pkg/schema"
)

// Server wires the router to the fetch pipeline.
type Server struct {
	router *gin.Engine
	pipe   *pipeline.Pipeline
	logger zerolog.Logger
}

// dataEnvelope is the success wire form: {data, message?}.
type dataEnvelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

// New creates a Server with all routes and middleware registered.
func New(pipe *pipeline.Pipeline) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		pipe:   pipe,
		logger: logging.NewLogger("server"),
	}

	s.router.Use(gin.Recovery(), RequestID(), s.AccessLog(), ErrorHandler())

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// The resolve route and the per-kind routes share the first path
	// segment, so both are registered as wildcards and dispatched here.
	s.router.GET("/:a/", s.handleResolve)
	s.router.GET("/:a/:b/", s.handleFetch)

	return s
}

// Router returns the underlying handler, for serving and for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleResolve serves GET /id/?character_name=NAME. Any other single
// segment is an unknown route.
func (s *Server) handleResolve(c *gin.Context) {
	if c.Param("a") != "id" {
		AbortWithError(c, apierr.New(apierr.KindNotFound, "").
			WithDetail("unknown route"))
		return
	}

	name := c.Query("character_name")
	c.Set(ctxCharacterName, name)

	identity, err := s.pipe.Resolve(c.Request.Context(), name)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set(ctxOCID, identity.OCID)

	data, err := json.Marshal(gin.H{"ocid": identity.OCID})
	if err != nil {
		AbortWithError(c, apierr.Wrap(apierr.KindUnknown, "", err))
		return
	}
	c.JSON(http.StatusOK, dataEnvelope{Data: data})
}

// handleFetch serves GET /{ocid}/{kind}/ for every data kind.
func (s *Server) handleFetch(c *gin.Context) {
	ocid := c.Param("a")
	segment := c.Param("b")

	kind, ok := schema.ParseKind(segment)
	if !ok {
		AbortWithError(c, apierr.New(apierr.KindNotFound, "").
			WithDetail("unknown data kind "+segment))
		return
	}
	c.Set(ctxKind, string(kind))
	c.Set(ctxOCID, ocid)

	force, perr := parseBool(c.Query("force_refresh"))
	if perr != nil {
		AbortWithError(c, perr)
		return
	}

	res, err := s.pipe.Fetch(c.Request.Context(), pipeline.Request{
		Kind:         kind,
		OCID:         ocid,
		Date:         c.Query("date"),
		ForceRefresh: force,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set(ctxCacheOutcome, res.CacheOutcome)

	c.JSON(http.StatusOK, dataEnvelope{Data: res.Data, Message: res.Message})
}

func parseBool(v string) (bool, error) {
	switch v {
	case "", "false":
		return false, nil
	case "true":
		return true, nil
	default:
		return false, apierr.New(apierr.KindBadParameter, "").
			WithDetail("force_refresh must be true or false")
	}
}
