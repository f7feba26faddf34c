package echoapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/member"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// queryBool parses an optional boolean query param.
func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewFieldError(name, "valor booleano inválido")
	}
	return &b, nil
}

// queryTime parses an optional RFC 3339 timestamp query param. A plain date means its midnight in loc.
func queryTime(ctx echo.Context, name string, loc *time.Location) (time.Time, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t, nil
	}
	d, err := core.ParseDate(val)
	if err != nil {
		return time.Time{}, core.NewFieldError(name, "fecha inválida")
	}
	return d.Time(loc), nil
}

// queryInt parses an optional integer query param.
func queryInt(ctx echo.Context, name string) (int, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewFieldError(name, "número inválido")
	}
	return n, nil
}

func isMultipart(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// formPhoto returns the uploaded file of field, nil when none was sent.
// The returned closer must be called once the photo has been consumed.
func formPhoto(ctx echo.Context, field string) (*member.Photo, io.Closer, error) {
	if !isMultipart(ctx) {
		return nil, nil, nil
	}
	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Cause(err) == http.ErrMissingFile {
			return nil, nil, nil
		}
		return nil, nil, errors.Wrapf(err, "reading %s upload", field)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s upload", field)
	}
	return &member.Photo{Filename: fh.Filename, Content: f}, f, nil
}
