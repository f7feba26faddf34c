package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/access"
)

const scanField = "image"

type accessApi struct {
	conf *core.Config
	svc  access.Service
}

func registerAccessAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config, svc access.Service) {
	api := accessApi{conf: conf, svc: svc}

	ag := g.Group("/access", jwt)
	ag.POST("/validate", api.validate)
	ag.POST("/scan", api.scan, uploadLimitMiddleware(conf))
	ag.GET("/logs", api.logs)
}

type ValidateAccessRequest struct {
	DNI string `json:"dni" form:"dni"`
}

func (api *accessApi) validate(ctx echo.Context) error {
	var data ValidateAccessRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ValidateAccessRequest")
	}
	res, err := api.svc.Validate(ctx.Request().Context(), data.DNI)
	if err != nil {
		return errors.Wrap(err, "validating access")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *accessApi) scan(ctx echo.Context) error {
	fh, err := ctx.FormFile(scanField)
	if err != nil {
		return core.NewFieldError(scanField, "este campo es obligatorio")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening scanned image")
	}
	defer func() { _ = f.Close() }()

	res, err := api.svc.Scan(ctx.Request().Context(), f)
	if err != nil {
		return errors.Wrap(err, "scanning access QR code")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *accessApi) logs(ctx echo.Context) error {
	filter := new(access.LogFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to LogFilter")
	}
	var err error
	if filter.Granted, err = queryBool(ctx, "granted"); err != nil {
		return err
	}
	if filter.From, err = queryTime(ctx, "from", api.conf.Location); err != nil {
		return err
	}

	logs, err := api.svc.Logs(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying access logs")
	}
	if logs == nil {
		logs = []access.Log{}
	}
	return ctx.JSON(http.StatusOK, logs)
}
