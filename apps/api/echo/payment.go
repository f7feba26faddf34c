package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/payment"
)

type paymentApi struct {
	conf *core.Config
	svc  payment.Service
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config, svc payment.Service) {
	api := paymentApi{conf: conf, svc: svc}

	pg := g.Group("/payments", jwt)
	pg.GET("", api.history)
	pg.GET("/stats", api.stats)
	pg.GET("/monthly", api.monthly)
	pg.GET("/debts", api.debts)
}

func (api *paymentApi) history(ctx echo.Context) error {
	filter := new(payment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	payments, err := api.svc.History(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying payment history")
	}
	if payments == nil {
		payments = []payment.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *paymentApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), api.conf.Today())
	if err != nil {
		return errors.Wrap(err, "computing payment stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *paymentApi) monthly(ctx echo.Context) error {
	filter := new(payment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	totals, err := api.svc.Monthly(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "summarizing payments")
	}
	return ctx.JSON(http.StatusOK, totals)
}

func (api *paymentApi) debts(ctx echo.Context) error {
	debts, err := api.svc.Debts(ctx.Request().Context(), api.conf.Today())
	if err != nil {
		return errors.Wrap(err, "querying debts")
	}
	return ctx.JSON(http.StatusOK, debts)
}
