package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/intigym/backoffice/core/plan"
)

type planApi struct {
	svc      plan.Service
	validate *validator.Validate
}

func registerPlanAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc plan.Service, validate *validator.Validate) {
	api := planApi{svc: svc, validate: validate}

	pg := g.Group("/plans", jwt)
	pg.GET("", api.list)
	pg.PUT("", api.save, adminMiddleware())
}

// SavePlansRequest replaces the whole plan catalog.
// Rows without a name or a positive price are dropped by the service.
type SavePlansRequest struct {
	Plans []PlanRow `json:"plans" validate:"dive"`
}

type PlanRow struct {
	Name   string  `json:"name" validate:"omitempty,plan_name"`
	Price  float64 `json:"price"`
	Months int     `json:"months" validate:"gte=0,lte=120"`
}

func (api *planApi) list(ctx echo.Context) error {
	plans, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing plans")
	}
	return ctx.JSON(http.StatusOK, plans)
}

func (api *planApi) save(ctx echo.Context) error {
	var data SavePlansRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SavePlansRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	plans := make([]plan.Plan, 0, len(data.Plans))
	for _, row := range data.Plans {
		plans = append(plans, plan.Plan{Name: row.Name, Price: row.Price, Months: row.Months})
	}
	plans, err := api.svc.Save(ctx.Request().Context(), plans)
	if err != nil {
		return errors.Wrap(err, "saving plans")
	}
	return ctx.JSON(http.StatusOK, plans)
}
