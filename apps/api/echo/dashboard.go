package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/dashboard"
)

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config, svc dashboard.Service) {
	g.GET("/dashboard", func(ctx echo.Context) error {
		stats, err := svc.Stats(ctx.Request().Context(), conf.Today())
		if err != nil {
			return errors.Wrap(err, "computing dashboard stats")
		}
		return ctx.JSON(http.StatusOK, stats)
	}, jwt)
}

// NavItem is an entry of the back-office menu.
type NavItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Icon  string `json:"icon"`
	Admin bool   `json:"-"`
}

var navItems = []NavItem{
	{Label: "Inicio", Path: "/", Icon: "home"},
	{Label: "Acceso", Path: "/acceso", Icon: "qr-code"},
	{Label: "Clientes", Path: "/clientes", Icon: "users"},
	{Label: "Pagos", Path: "/pagos", Icon: "credit-card"},
	{Label: "Configuración", Path: "/configuracion", Icon: "settings", Admin: true},
}

// registerNavAPI serves the menu of the authenticated user: admin entries are hidden from staff.
func registerNavAPI(g *echo.Group, jwt echo.MiddlewareFunc) {
	g.GET("/nav", func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		items := make([]NavItem, 0, len(navItems))
		for _, item := range navItems {
			if item.Admin && !claims.IsAdmin {
				continue
			}
			items = append(items, item)
		}
		return ctx.JSON(http.StatusOK, items)
	}, jwt)
}
