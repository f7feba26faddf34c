package echoapi

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/member"
)

const (
	photoField = "photo"

	exportCSV  = "csv"
	exportJSON = "json"
	exportYAML = "yaml"
)

var errMemberNotFoundInCtx = errors.New("member object not found in echo.Context")

type memberApi struct {
	conf     *core.Config
	svc      member.Service
	validate *validator.Validate
}

func registerMemberAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config, svc member.Service, validate *validator.Validate) {
	api := memberApi{conf: conf, svc: svc, validate: validate}
	uploadLimit := uploadLimitMiddleware(conf)

	mg := g.Group("/members", jwt)
	mg.GET("", api.query)
	mg.POST("", api.create, uploadLimit)
	mg.DELETE("", api.destroyMultiple, adminMiddleware())
	mg.POST("/validate", api.validateStep)
	mg.GET("/export", api.export)
	mg.GET("/expiring", api.expiring)
	mg.GET("/dni/:dni", api.retrieveByDNI)

	// detail endpoints
	dg := mg.Group("/:id", api.objectMiddleware())
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, uploadLimit)
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/renew", api.renew)
	dg.GET("/qr", api.qrCode)
	dg.PUT("/photo", api.updatePhoto, uploadLimit)
	dg.GET("/reminder", api.reminder)
	dg.GET("/share", api.share)
}

func (api *memberApi) details(members []member.Member) []member.Detail {
	today := api.conf.Today()
	details := make([]member.Detail, 0, len(members))
	for _, m := range members {
		details = append(details, api.svc.Detail(m, today))
	}
	return details
}

func (api *memberApi) bindFilter(ctx echo.Context) (*member.QueryFilter, error) {
	filter := new(member.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	created, err := queryTime(ctx, "created_from", api.conf.Location)
	if err != nil {
		return nil, err
	}
	filter.CreatedFrom = created
	return filter, nil
}

func (api *memberApi) query(ctx echo.Context) error {
	filter, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	members, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	return ctx.JSON(http.StatusOK, api.details(members))
}

func (api *memberApi) create(ctx echo.Context) error {
	var data member.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	photo, closer, err := formPhoto(ctx, photoField)
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	m, err := api.svc.Create(ctx.Request().Context(), data, photo)
	if err != nil {
		return errors.Wrap(err, "creating member")
	}
	return ctx.JSON(http.StatusCreated, api.svc.Detail(m, api.conf.Today()))
}

func (api *memberApi) validateStep(ctx echo.Context) error {
	var data member.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if err := api.svc.ValidateStep(ctx.Request().Context(), ctx.QueryParam("step"), data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "datos válidos"})
}

func (api *memberApi) expiring(ctx echo.Context) error {
	days, err := queryInt(ctx, "days")
	if err != nil {
		return err
	}
	members, err := api.svc.Expiring(ctx.Request().Context(), api.conf.Today(), days)
	if err != nil {
		return errors.Wrap(err, "querying expiring members")
	}
	return ctx.JSON(http.StatusOK, api.details(members))
}

func (api *memberApi) retrieveByDNI(ctx echo.Context) error {
	m, err := api.svc.GetByDNI(ctx.Request().Context(), ctx.Param("dni"))
	if err != nil {
		return errors.Wrap(err, "finding member by DNI")
	}
	return ctx.JSON(http.StatusOK, api.svc.Detail(m, api.conf.Today()))
}

func (api *memberApi) retrieve(ctx echo.Context) error {
	m, ok := ctx.Get("object").(member.Member)
	if !ok {
		return errors.Wrap(errMemberNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, api.svc.Detail(m, api.conf.Today()))
}

func (api *memberApi) update(ctx echo.Context) error {
	m, ok := ctx.Get("object").(member.Member)
	if !ok {
		return errors.Wrap(errMemberNotFoundInCtx, "retrieving object from context")
	}

	var data member.UpdateMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMember")
	}
	photo, closer, err := formPhoto(ctx, photoField)
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	m, err = api.svc.Update(ctx.Request().Context(), m.ID, data, photo)
	if err != nil {
		return errors.Wrap(err, "updating member")
	}
	return ctx.JSON(http.StatusOK, api.svc.Detail(m, api.conf.Today()))
}

func (api *memberApi) updatePhoto(ctx echo.Context) error {
	m, ok := ctx.Get("object").(member.Member)
	if !ok {
		return errors.Wrap(errMemberNotFoundInCtx, "retrieving object from context")
	}
	photo, closer, err := formPhoto(ctx, photoField)
	if err != nil {
		return err
	}
	if photo == nil {
		return core.NewFieldError(photoField, "este campo es obligatorio")
	}
	defer func() { _ = closer.Close() }()

	m, err = api.svc.UpdatePhoto(ctx.Request().Context(), m.ID, *photo)
	if err != nil {
		return errors.Wrap(err, "updating member photo")
	}
	return ctx.JSON(http.StatusOK, api.svc.Detail(m, api.conf.Today()))
}

func (api *memberApi) renew(ctx echo.Context) error {
	m, ok := ctx.Get("object").(member.Member)
	if !ok {
		return errors.Wrap(errMemberNotFoundInCtx, "retrieving object from context")
	}

	var data member.Renewal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Renewal")
	}
	m, err := api.svc.Renew(ctx.Request().Context(), m.ID, data)
	if err != nil {
		return errors.Wrap(err, "renewing membership")
	}
	return ctx.JSON(http.StatusOK, api.svc.Detail(m, api.conf.Today()))
}

func (api *memberApi) destroy(ctx echo.Context) error {
	m, ok := ctx.Get("object").(member.Member)
	if !ok {
		return errors.Wrap(errMemberNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), m.ID); err != nil {
		return errors.Wrap(err, "deleting member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *memberApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting members")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *memberApi) qrCode(ctx echo.Context) error {
	m, ok := ctx.Get("object").(member.Member)
	if !ok {
		return errors.Wrap(errMemberNotFoundInCtx, "retrieving object from context")
	}
	png, filename, err := api.svc.QRCode(ctx.Request().Context(), m.ID)
	if err != nil {
		return errors.Wrap(err, "rendering member QR code")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, "image/png", png)
}

const errNoPhone = "el socio no tiene un teléfono válido"

type reminderResponse struct {
	WhatsAppLink string `json:"whatsapp_link"`
	Message      string `json:"message"`
}

func (api *memberApi) reminder(ctx echo.Context) error {
	m, ok := ctx.Get("object").(member.Member)
	if !ok {
		return errors.Wrap(errMemberNotFoundInCtx, "retrieving object from context")
	}
	link := api.svc.ReminderLink(m)
	if link == "" {
		return core.NewFieldError("phone", errNoPhone)
	}
	return ctx.JSON(http.StatusOK, reminderResponse{
		WhatsAppLink: link,
		Message:      member.ReminderMessage(m.Name, m.ExpirationDate, api.conf.GymName),
	})
}

type shareResponse struct {
	WelcomeLink    string `json:"welcome_link"`
	WelcomeMessage string `json:"welcome_message"`
	QRLink         string `json:"qr_link"`
	QRMessage      string `json:"qr_message"`
}

func (api *memberApi) share(ctx echo.Context) error {
	m, ok := ctx.Get("object").(member.Member)
	if !ok {
		return errors.Wrap(errMemberNotFoundInCtx, "retrieving object from context")
	}
	if core.OnlyDigits(m.Phone) == "" {
		return core.NewFieldError("phone", errNoPhone)
	}
	return ctx.JSON(http.StatusOK, shareResponse{
		WelcomeLink:    member.WelcomeLink(m, api.conf.GymName),
		WelcomeMessage: member.WelcomeMessage(m.Name, m.DNI, m.Plan, api.conf.GymName),
		QRLink:         member.QRShareLink(m, api.conf.GymName),
		QRMessage:      member.QRShareMessage(m.Name, m.DNI, m.Plan, api.conf.GymName),
	})
}

func (api *memberApi) objectMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			m, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding member by ID")
			}
			ctx.Set("object", m)
			return next(ctx)
		}
	}
}

// Export

type exportRow struct {
	Name           string    `json:"nombre" yaml:"nombre"`
	DNI            string    `json:"dni" yaml:"dni"`
	Phone          string    `json:"telefono" yaml:"telefono"`
	Email          string    `json:"email" yaml:"email"`
	Plan           string    `json:"plan" yaml:"plan"`
	StartDate      core.Date `json:"fecha_inicio" yaml:"fecha_inicio"`
	ExpirationDate core.Date `json:"fecha_vencimiento" yaml:"fecha_vencimiento"`
	PaymentStatus  string    `json:"estado_pago" yaml:"estado_pago"`
	AmountPaid     float64   `json:"monto_pagado" yaml:"monto_pagado"`
	PaymentMethod  string    `json:"metodo_pago" yaml:"metodo_pago"`
}

var exportHeader = []string{
	"nombre", "dni", "telefono", "email", "plan",
	"fecha_inicio", "fecha_vencimiento", "estado_pago", "monto_pagado", "metodo_pago",
}

func (r exportRow) record() []string {
	return []string{
		r.Name, r.DNI, r.Phone, r.Email, r.Plan,
		r.StartDate.String(), r.ExpirationDate.String(), r.PaymentStatus,
		strconv.FormatFloat(r.AmountPaid, 'f', 2, 64), r.PaymentMethod,
	}
}

func (api *memberApi) export(ctx echo.Context) error {
	format := core.CleanString(ctx.QueryParam("format"), true /* lower */)
	if format == "" {
		format = exportCSV
	}
	if format != exportCSV && format != exportJSON && format != exportYAML {
		return core.NewFieldError("format", "formato no soportado (csv, json o yaml)")
	}

	filter, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}
	members, err := api.svc.Query(ctx.Request().Context(), filter, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return errors.Wrap(err, "querying members")
	}

	rows := make([]exportRow, 0, len(members))
	for _, m := range members {
		rows = append(rows, exportRow{
			Name:           m.Name,
			DNI:            m.DNI,
			Phone:          m.Phone,
			Email:          m.Email,
			Plan:           m.Plan,
			StartDate:      m.StartDate,
			ExpirationDate: m.ExpirationDate,
			PaymentStatus:  m.PaymentStatus,
			AmountPaid:     m.AmountPaid,
			PaymentMethod:  m.PaymentMethod,
		})
	}

	filename := "socios-" + api.conf.Today().String() + "." + format
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))

	var buf bytes.Buffer
	var contentType string
	switch format {
	case exportCSV:
		contentType = "text/csv; charset=utf-8"
		err = writeCSV(&buf, rows)
	case exportJSON:
		return ctx.JSON(http.StatusOK, rows)
	case exportYAML:
		contentType = "application/yaml; charset=utf-8"
		enc := yaml.NewEncoder(&buf)
		if err = enc.Encode(rows); err == nil {
			err = enc.Close()
		}
	}
	if err != nil {
		return errors.Wrapf(err, "encoding %s export", format)
	}
	return ctx.Blob(http.StatusOK, contentType, buf.Bytes())
}

func writeCSV(w io.Writer, rows []exportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
