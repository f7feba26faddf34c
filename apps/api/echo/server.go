package echoapi

import (
	"context"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/access"
	"github.com/intigym/backoffice/core/dashboard"
	"github.com/intigym/backoffice/core/member"
	"github.com/intigym/backoffice/core/payment"
	"github.com/intigym/backoffice/core/plan"
	"github.com/intigym/backoffice/core/user"
	metricsvc "github.com/intigym/backoffice/services/metrics"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		Metrics        *metricsvc.Metrics
		SignalShutdown func()

		UserSvc      user.Service
		MemberSvc    member.Service
		AccessSvc    access.Service
		PaymentSvc   payment.Service
		PlanSvc      plan.Service
		DashboardSvc dashboard.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
		auth *authenticator
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.SignalShutdown == nil {
		opts.SignalShutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
		auth: newAuthenticator(opts.Conf, opts.UserSvc),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.opts.Metrics != nil {
		s.app.Use(metricsMiddleware(s.opts.Metrics))
		s.app.GET("/metrics", echo.WrapHandler(s.opts.Metrics.Handler()))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/health", s.health)
	s.app.Static(conf.Storage.MediaURL, conf.Storage.MediaDir)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)
	limiter := newIPRateLimiter(conf.Server.AuthRateLimit, conf.Server.AuthRateBurst)

	registerAuthAPI(v1, jwt, rateLimitMiddleware(limiter, s.opts.Metrics), s.auth, s.opts.Validate)
	registerUserAPI(v1, jwt, s.auth, s.opts.UserSvc, s.opts.Validate)
	registerMemberAPI(v1, jwt, s.opts.Conf, s.opts.MemberSvc, s.opts.Validate)
	registerAccessAPI(v1, jwt, s.opts.Conf, s.opts.AccessSvc)
	registerPaymentAPI(v1, jwt, s.opts.Conf, s.opts.PaymentSvc)
	registerPlanAPI(v1, jwt, s.opts.PlanSvc, s.opts.Validate)
	registerDashboardAPI(v1, jwt, s.opts.Conf, s.opts.DashboardSvc)
	registerNavAPI(v1, jwt)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Host)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Bienvenido a la API de "+s.opts.Conf.GymName)
}

type healthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// health keeps the database awake: it touches the members table on every call.
// Store failures are reported in the payload, the endpoint itself always answers 200.
func (s *server) health(ctx echo.Context) error {
	resp := healthResponse{Timestamp: core.NowFunc().UTC().Format(time.RFC3339)}
	if _, err := s.opts.MemberSvc.Count(ctx.Request().Context(), &member.QueryFilter{Limit: 1}); err != nil {
		s.opts.Logger.Warn("health check failed", err)
		resp.Error = "no se pudo consultar la base de datos"
		return ctx.JSON(http.StatusOK, resp)
	}
	resp.Success = true
	resp.Message = "Base de datos activa"
	return ctx.JSON(http.StatusOK, resp)
}
