package pubstatic

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/eringen/pubstatic/views"
)

const internalPrefix = "/_pubstatic"

// Server serves the output directory of a Site for local preview.
type Server struct {
	site *Site
	Echo *echo.Echo
}

// NewServer creates the preview server of s with routes and middleware set
// up.
func (s *Site) NewServer() *Server {
	srv := &Server{site: s, Echo: echo.New()}
	e := srv.Echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = srv.httpErrorHandler
	srv.setupMiddleware()
	srv.setupRoutes()
	return srv
}

func (srv *Server) setupMiddleware() {
	e := srv.Echo
	log := srv.site.logger

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, internalPrefix)
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self'; media-src 'self' data:",
	}))

	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "pubstatic",
		Subsystem:  "http",
		Registerer: srv.site.metrics.Registry,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, internalPrefix)
		},
	}))

	e.Use(cacheControlMiddleware)
	e.Use(srv.buildFailedMiddleware)
}

// cacheControlMiddleware disables caching; every rebuild must be visible
// on reload.
func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "no-store")
		return next(c)
	}
}

// buildFailedMiddleware answers page requests with the build error while
// the most recent build is broken.
func (srv *Server) buildFailedMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p := c.Request().URL.Path
		if strings.HasPrefix(p, internalPrefix) || path.Ext(p) != "" && path.Ext(p) != ".html" {
			return next(c)
		}
		if _, err := srv.site.LastBuild(); err != nil {
			return RenderStatus(c, http.StatusInternalServerError, views.BuildFailed(srv.siteMeta(), err.Error()))
		}
		return next(c)
	}
}

func (srv *Server) setupRoutes() {
	e := srv.Echo
	e.GET(internalPrefix+"/status", srv.handleStatus)
	e.GET(internalPrefix+"/metrics", echo.WrapHandler(srv.site.metrics.Handler()))

	prefix := srv.site.Config.PathPrefix
	if prefix != "/" {
		e.GET("/", func(c echo.Context) error {
			return c.Redirect(http.StatusFound, prefix)
		})
	}
	e.GET(strings.TrimSuffix(prefix, "/")+"/*", srv.handleFile)
	e.HEAD(strings.TrimSuffix(prefix, "/")+"/*", srv.handleFile)
}

// siteMeta is the built-in layout data with the path prefix applied, since
// pages rendered by the server skip the html-base transform.
func (srv *Server) siteMeta() views.SiteMeta {
	m := srv.site.siteMeta()
	m.PathPrefix = srv.site.Config.PathPrefix
	return m
}

// handleFile serves a file of the output dir. Directories are served by
// their index.html; a directory requested without trailing slash is
// redirected.
func (srv *Server) handleFile(c echo.Context) error {
	prefix := srv.site.Config.PathPrefix
	reqPath := c.Request().URL.Path
	rel := strings.TrimPrefix(reqPath, strings.TrimSuffix(prefix, "/"))
	file := srv.site.Config.OutputDir()
	if path.Clean("/"+rel) != "/" {
		var err error
		if file, err = outputPath(file, rel); err != nil {
			return echo.ErrNotFound
		}
	}
	info, err := os.Stat(file)
	if err != nil {
		return echo.ErrNotFound
	}
	if info.IsDir() {
		if !strings.HasSuffix(reqPath, "/") {
			return c.Redirect(http.StatusMovedPermanently, reqPath+"/")
		}
		file = filepath.Join(file, "index.html")
		if _, err := os.Stat(file); err != nil {
			return echo.ErrNotFound
		}
	}
	return c.File(file)
}

type buildStatus struct {
	ID          string        `json:"id"`
	Mode        RunMode       `json:"mode"`
	StartedAt   time.Time     `json:"startedAt"`
	DurationMS  int64         `json:"durationMs"`
	Pages       int           `json:"pages"`
	Excluded    []string      `json:"excluded"`
	Files       int           `json:"files"`
	Images      int           `json:"images"`
	Error       string        `json:"error,omitempty"`
	FailedItems []string      `json:"failedItems,omitempty"`
	History     []BuildRecord `json:"history,omitempty"`
}

func (srv *Server) handleStatus(c echo.Context) error {
	res, err := srv.site.LastBuild()
	if res == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "no build yet"})
	}
	st := buildStatus{
		ID:         res.ID,
		Mode:       res.Mode,
		StartedAt:  res.StartedAt,
		DurationMS: res.Duration.Milliseconds(),
		Pages:      res.PagesWritten,
		Excluded:   res.Excluded,
		Files:      res.FilesCopied,
		Images:     res.ImagesGenerated,
	}
	if err != nil {
		st.Error = err.Error()
		st.FailedItems = itemErrors(err)
	}
	if srv.site.store != nil {
		history, herr := srv.site.store.ListBuilds(10)
		if herr != nil {
			srv.site.logger.Warn("list builds", "error", herr)
		}
		st.History = history
	}
	return c.JSON(http.StatusOK, st)
}

func (srv *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		custom := filepath.Join(srv.site.Config.OutputDir(), "404.html")
		if page, rerr := os.ReadFile(custom); rerr == nil {
			_ = c.HTMLBlob(http.StatusNotFound, page)
			return
		}
		_ = RenderStatus(c, http.StatusNotFound, views.NotFound(srv.siteMeta()))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		srv.site.logger.Error("server error", "error", err, "uri", c.Request().RequestURI)
	}
	srv.Echo.DefaultHTTPErrorHandler(err, c)
}

// Start listens on addr until ctx is done, then shuts down gracefully.
func (srv *Server) Start(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		if err := srv.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Echo.Shutdown(shutdownCtx)
}
