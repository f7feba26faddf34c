package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"

	"github.com/intigym/backoffice/apps/api/di"
	echoapi "github.com/intigym/backoffice/apps/api/echo"
	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/access"
	"github.com/intigym/backoffice/core/dashboard"
	"github.com/intigym/backoffice/core/member"
	"github.com/intigym/backoffice/core/payment"
	"github.com/intigym/backoffice/core/plan"
	"github.com/intigym/backoffice/core/user"
	logsvc "github.com/intigym/backoffice/services/logger"
	metricsvc "github.com/intigym/backoffice/services/metrics"
)

type appParams struct {
	dig.In

	Conf         *core.Config
	Logger       *logsvc.Logger
	DB           *sqlx.DB
	Validate     *validator.Validate
	Translator   ut.Translator
	Metrics      *metricsvc.Metrics
	UserSvc      user.Service
	MemberSvc    member.Service
	AccessSvc    access.Service
	PaymentSvc   payment.Service
	PlanSvc      plan.Service
	DashboardSvc dashboard.Service
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := di.New()
	if err := c.Invoke(func(p appParams) error { return run(ctx, stop, p) }); err != nil {
		log.Fatal(err)
	}
}

// run serves the API and the background jobs until ctx is done or shutdown is requested.
func run(ctx context.Context, shutdown context.CancelFunc, p appParams) error {
	// =========================================================================
	// Initialize App

	logger := p.Logger
	defer logger.Sync()
	logger.Info(fmt.Sprintf("Application initializing : version %q", p.Conf.Build))
	defer logger.Info("Application stopped")

	if err := core.ParseEmailTemplates(); err != nil {
		return errors.Wrap(err, "parsing email templates")
	}
	user.LoadCommonPasswords(logger)

	defer func() {
		if err := p.DB.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	if p.Conf.Server.DebugHost != "" {
		expvar.NewString("build").Set(p.Conf.Build)
		expvar.NewString("env").Set(p.Conf.Env)

		go func() {
			if err := http.ListenAndServe(p.Conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()
	}

	// =========================================================================
	// Start API Service & Jobs

	server := echoapi.NewServer(&echoapi.Options{
		Conf:           p.Conf,
		Logger:         logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		Metrics:        p.Metrics,
		SignalShutdown: shutdown,
		UserSvc:        p.UserSvc,
		MemberSvc:      p.MemberSvc,
		AccessSvc:      p.AccessSvc,
		PaymentSvc:     p.PaymentSvc,
		PlanSvc:        p.PlanSvc,
		DashboardSvc:   p.DashboardSvc,
	})
	bg := &jobs{conf: p.Conf, logger: logger, members: p.MemberSvc, metrics: p.Metrics}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("API listening", map[string]interface{}{"addr": p.Conf.Server.Host})
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "server error")
		}
		return nil
	})
	g.Go(func() error {
		return bg.run(gctx)
	})

	// =========================================================================
	// Shutdown

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Start shutdown...")

		// give outstanding requests a deadline for completion
		sctx, cancel := context.WithTimeout(context.Background(), p.Conf.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Stop(sctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
		return nil
	})
	return g.Wait()
}
