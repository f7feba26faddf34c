package echoapi_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intigym/backoffice/core/access"
	"github.com/intigym/backoffice/core/member"
	"github.com/intigym/backoffice/testutil"
)

func Test_accessApi(t *testing.T) {
	f := setup(t)
	today := f.conf.Today()
	testutil.CreateMember(t, f.memberRepo, member.Member{
		Name: "Al Día", DNI: "20000001", Plan: "mensual", StartDate: today, ExpirationDate: today.AddMonths(1),
	})
	testutil.CreateMember(t, f.memberRepo, member.Member{
		Name: "Vence Hoy", DNI: "20000002", Plan: "mensual", StartDate: today.AddMonths(-1), ExpirationDate: today,
	})
	testutil.CreateMember(t, f.memberRepo, member.Member{
		Name: "Vencido", DNI: "20000003", Plan: "mensual", StartDate: today.AddMonths(-2), ExpirationDate: today.AddDays(-1),
	})

	validate := func(t *testing.T, dni string) access.Result {
		req, rec := newAuthRequest(http.MethodPost, "/v1/access/validate", f.staffToken, []byte(`{"dni": "`+dni+`"}`))
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res access.Result
		decode(t, rec, &res)
		return res
	}

	t.Run("granted", func(t *testing.T) {
		res := validate(t, "20000001")
		assert.True(t, res.Granted)
		assert.False(t, res.Expired)
		assert.Equal(t, "Al Día", res.Name)
		assert.Equal(t, access.MsgGranted, res.Message)
	})

	t.Run("expires today", func(t *testing.T) {
		res := validate(t, "20000002")
		assert.True(t, res.Granted)
	})

	t.Run("expired", func(t *testing.T) {
		res := validate(t, "20000003")
		assert.False(t, res.Granted)
		assert.True(t, res.Expired)
		assert.Equal(t, access.MsgExpired, res.Message)
	})

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/v1/access/validate", body: []byte(`{"dni": "20000001"}`),
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "invalid DNI", method: http.MethodPost, path: "/v1/access/validate", token: f.staffToken,
			body: []byte(`{"dni": "2000"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "DNI inválido (debe tener 8 dígitos)"}),
		},
		{
			name: "unknown DNI", method: http.MethodPost, path: "/v1/access/validate", token: f.staffToken,
			body: []byte(`{"dni": "29999999"}`), wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "Socio no encontrado"}),
		},
	}
	runHTTPTests(t, f.app, tests)

	t.Run("scan", func(t *testing.T) {
		png, err := f.qr.Encode("20000001", 256)
		require.NoError(t, err)
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/access/scan", f.staffToken, nil, "image", "qr.png", png)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res access.Result
		decode(t, rec, &res)
		assert.True(t, res.Granted)
		assert.Equal(t, "20000001", res.DNI)
	})

	t.Run("scan unreadable", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/access/scan", f.staffToken, nil, "image", "qr.png", []byte("not an image"))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "No se pudo leer el código QR"}),
		}, rec)
	})

	t.Run("logs", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/access/logs?granted=false", f.staffToken)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var logs []access.Log
		decode(t, rec, &logs)
		// expired + unknown
		require.Len(t, logs, 2)
		for _, l := range logs {
			assert.False(t, l.Granted)
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/access/logs?dni=20000001", f.staffToken)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &logs)
		assert.Len(t, logs, 2) // typed + scanned

		req, rec = newAuthRequest(http.MethodGet, "/v1/access/logs?granted=maybe", f.staffToken)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/metrics")
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.True(t, strings.Contains(body, `access_validations_total{outcome="granted"} 3`), body)
		assert.True(t, strings.Contains(body, `access_validations_total{outcome="unreadable"} 1`), body)
	})
}
