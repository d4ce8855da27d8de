package echoapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/ademscil/Event-Management-BE-sub001/core"
	"github.com/ademscil/Event-Management-BE-sub001/core/application"
	"github.com/ademscil/Event-Management-BE-sub001/core/auth"
	"github.com/ademscil/Event-Management-BE-sub001/core/bulkimport"
	"github.com/ademscil/Event-Management-BE-sub001/core/function"
	"github.com/ademscil/Event-Management-BE-sub001/core/mapping"
	"github.com/ademscil/Event-Management-BE-sub001/core/orgunit"
	"github.com/ademscil/Event-Management-BE-sub001/core/sapsync"
	"github.com/ademscil/Event-Management-BE-sub001/core/survey"
	"github.com/ademscil/Event-Management-BE-sub001/core/user"
)

const apiPrefix = "/api/v1"

type (
	Services struct {
		Auth         *auth.Service
		Users        *user.Service
		OrgUnits     *orgunit.Service
		Functions    *function.Service
		Applications *application.Service
		Mappings     *mapping.Service
		Surveys      *survey.Service
		SAP          *sapsync.Service
		Imports      *bulkimport.Service
	}

	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Services       Services
		Health         func(ctx context.Context) error // nil reports healthy
		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		shutdown chan struct{}
		once     sync.Once
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		shutdown: make(chan struct{}),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf
	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Logger.SetLevel(log.INFO)
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestID())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'; img-src 'self' data:",
	}))
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
	}))
	if conf.Server.BodyLimit != "" {
		s.app.Use(middleware.BodyLimit(conf.Server.BodyLimit))
	}
	if limiter := rateLimiter(conf.Server.RateLimit); limiter != nil {
		s.app.Use(limiter)
	}

	s.app.GET("/health", s.health)

	v1 := s.app.Group(apiPrefix)
	authed := sessionMiddleware(s.deps.Services.Auth)
	svcs := s.deps.Services

	registerAuthAPI(v1, authed, rateLimiter(conf.Server.LoginRateLimit), svcs.Auth)
	registerOrgUnitAPI(v1, authed, svcs.OrgUnits)
	registerFunctionAPI(v1, authed, svcs.Functions)
	registerApplicationAPI(v1, authed, svcs.Applications)
	registerMappingAPI(v1, authed, svcs.Mappings)
	registerUserAPI(v1, authed, svcs.Users, svcs.Auth)
	registerSurveyAPI(v1, authed, svcs.Surveys)
	registerSAPAPI(v1, authed, svcs.SAP)
	registerImportAPI(v1, authed, svcs.Imports)
	registerPublicAPI(v1, svcs.Surveys)
}

// rateLimiter limits requests per client IP; nil when perSecond is not positive.
func rateLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst * 2,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store:   store,
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
	})
}

func (s *Server) signalShutdown() {
	s.once.Do(func() { close(s.shutdown) })
}

// ShutdownRequested is closed once a handler hit an error the API cannot recover from.
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdown
}

// Start blocks until the server is stopped.
func (s *Server) Start() error {
	err := s.app.Start(s.deps.Conf.Server.Host)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) health(ctx echo.Context) error {
	status := http.StatusOK
	body := echo.Map{"status": "ok", "build": s.deps.Conf.Build}
	if s.deps.Health != nil {
		if err := s.deps.Health(ctx.Request().Context()); err != nil {
			s.deps.Logger.Warn("health check failed", err)
			status = http.StatusServiceUnavailable
			body["status"] = "unavailable"
		}
	}
	return ctx.JSON(status, body)
}
