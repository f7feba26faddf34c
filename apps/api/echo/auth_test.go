package echoapi_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/intigym/backoffice/apps/api/echo"
	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/user"
	"github.com/intigym/backoffice/testutil"
)

func Test_authApi_login(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.usrRepo, "Ex Staff", "ex@intigym.pe", testPassword, []string{user.RoleStaff}, false)

	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/auth/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "este campo es obligatorio", "password": "este campo es obligatorio"}`),
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/auth/login",
			body:     marshalObj(t, LoginRequest{Email: "nadie@intigym.pe", Password: testPassword}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "correo o contraseña incorrectos"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/auth/login",
			body:     marshalObj(t, LoginRequest{Email: "duena@intigym.pe", Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "correo o contraseña incorrectos"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/auth/login",
			body:     marshalObj(t, LoginRequest{Email: "ex@intigym.pe", Password: testPassword}),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "cuenta desactivada"}),
		},
	}
	runHTTPTests(t, f.app, tests)

	t.Run("success", func(t *testing.T) {
		body := marshalObj(t, LoginRequest{Email: " DUENA@intigym.pe ", Password: testPassword})
		req, rec := newRequest(http.MethodPost, "/v1/auth/login", body)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		decode(t, rec, &resp)
		require.NotEmpty(t, resp.Token)

		req, rec = newAuthRequest(http.MethodGet, "/v1/auth/me", resp.Token)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var me user.User
		decode(t, rec, &me)
		assert.Equal(t, f.admin.ID, me.ID)
		assert.False(t, me.LastLogin.IsZero())
	})
}

func Test_authApi_tokens(t *testing.T) {
	f := setup(t)

	tests := []httpTest{
		{
			name: "me without token", path: "/v1/auth/me",
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "falta el token de autenticación"}),
		},
		{name: "me with garbage token", path: "/v1/auth/me", token: "garbage", wantCode: http.StatusUnauthorized},
		{name: "refresh without token", method: http.MethodPost, path: "/v1/auth/token-refresh", wantCode: http.StatusUnauthorized},
	}
	runHTTPTests(t, f.app, tests)

	t.Run("refresh", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", f.staffToken)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("refresh window over", func(t *testing.T) {
		claims := GetUserClaims(f.conf, f.staff, 1 /* 1970 */)
		token, err := GenerateToken(f.conf, claims)
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", token)
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "la sesión ha expirado"}),
		}, rec)
	})
}

func Test_authApi_passwordReset(t *testing.T) {
	f := setup(t)
	success := []byte(`{"success": "Si el correo pertenece a una cuenta activa, recibirás en breve las instrucciones para restablecer tu contraseña."}`)

	tests := []httpTest{
		{
			name: "invalid email", method: http.MethodPost, path: "/v1/auth/password-reset", body: []byte(`{"email": "nope"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/auth/password-reset",
			body: marshalObj(t, PasswordResetRequest{Email: "nadie@intigym.pe"}), wantCode: http.StatusOK, wantData: success,
		},
	}
	runHTTPTests(t, f.app, tests)
	assert.Empty(t, f.mailSvc.Sent())

	req, rec := newRequest(http.MethodPost, "/v1/auth/password-reset", marshalObj(t, PasswordResetRequest{Email: "recepcion@intigym.pe"}))
	f.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: success}, rec)
	sent := f.mailSvc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "recepcion@intigym.pe", sent[0].To[0].Address)

	t.Run("confirm", func(t *testing.T) {
		token, err := user.MakeResetToken(f.conf, f.staff)
		require.NoError(t, err)
		newPwd := "Nu3va&Clave"

		body := marshalObj(t, user.ResetUserPassword{
			Token: token, UID: user.EncodeUID(f.staff), Password: newPwd, PasswordConfirm: newPwd,
		})
		req, rec := newRequest(http.MethodPost, "/v1/auth/password-reset-confirm", body)
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK, wantData: marshalObj(t, SuccessResponse{Success: "Tu contraseña ha sido restablecida."}),
		}, rec)

		req, rec = newRequest(http.MethodPost, "/v1/auth/login", marshalObj(t, LoginRequest{Email: f.staff.Email, Password: newPwd}))
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func Test_authApi_rateLimit(t *testing.T) {
	f := setup(t, func(conf *core.Config) {
		conf.Server.AuthRateLimit = 0.001
		conf.Server.AuthRateBurst = 2
	})

	body := marshalObj(t, LoginRequest{Email: "nadie@intigym.pe", Password: testPassword})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req, rec := newRequest(http.MethodPost, "/v1/auth/login", body)
		f.app.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)

	req, rec := newRequest(http.MethodGet, "/metrics")
	f.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "rate_limit_denied_total 1"), rec.Body.String())
}
