package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/intigym/backoffice/apps/api/echo"
	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/dashboard"
	"github.com/intigym/backoffice/core/member"
	"github.com/intigym/backoffice/core/plan"
	"github.com/intigym/backoffice/core/user"
	"github.com/intigym/backoffice/testutil"
)

func Test_server_home_health(t *testing.T) {
	f := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bienvenido a la API de Inti-Gym", rec.Body.String())

	req, rec = newRequest(http.MethodGet, "/health")
	f.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	decode(t, rec, &health)
	assert.Equal(t, true, health["success"])
	assert.Equal(t, "Base de datos activa", health["message"])
	assert.NotEmpty(t, health["timestamp"])

	// the DB is gone but the endpoint still answers
	require.NoError(t, f.db.Close())
	req, rec = newRequest(http.MethodGet, "/health")
	f.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &health)
	assert.Equal(t, false, health["success"])
	assert.Equal(t, "no se pudo consultar la base de datos", health["error"])
}

func Test_planApi(t *testing.T) {
	f := setup(t)

	tests := []httpTest{
		{name: "auth required", path: "/v1/plans", wantCode: http.StatusUnauthorized},
		{
			name: "defaults", path: "/v1/plans", token: f.staffToken, wantCode: http.StatusOK,
			wantData: marshalObj(t, plan.Defaults()),
		},
		{
			name: "staff cannot save", method: http.MethodPut, path: "/v1/plans", token: f.staffToken,
			body: []byte(`{"plans": [{"name": "diario", "price": 10, "months": 1}]}`), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permiso denegado"}),
		},
		{
			name: "invalid name", method: http.MethodPut, path: "/v1/plans", token: f.adminToken,
			body: []byte(`{"plans": [{"name": "dia$rio", "price": 10, "months": 1}]}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "no valid plan", method: http.MethodPut, path: "/v1/plans", token: f.adminToken,
			body: []byte(`{"plans": [{"name": "", "price": 10}, {"name": "gratis", "price": 0}]}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "Agrega al menos un plan válido"}),
		},
	}
	runHTTPTests(t, f.app, tests)

	t.Run("save", func(t *testing.T) {
		want := []plan.Plan{
			{Name: "mensual", Price: 130, Months: 1},
			{Name: "plan_familiar", Price: 250, Months: 1},
			{Name: "anual", Price: 1100, Months: 12},
		}
		body := []byte(`{"plans": [
			{"name": "Anual", "price": 1100},
			{"name": "mensual", "price": 130, "months": 1},
			{"name": "Plan Familiar", "price": 250, "months": 1},
			{"name": "", "price": 50}
		]}`)
		req, rec := newAuthRequest(http.MethodPut, "/v1/plans", f.adminToken, body)
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshalObj(t, want)}, rec)

		req, rec = newAuthRequest(http.MethodGet, "/v1/plans", f.staffToken)
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshalObj(t, want)}, rec)
	})
}

func Test_dashboardApi(t *testing.T) {
	f := setup(t)
	today := f.conf.Today()
	testutil.CreateMember(t, f.memberRepo, member.Member{
		Name: "Vencida", DNI: "30000001", StartDate: today.AddMonths(-1), ExpirationDate: today.AddDays(-1),
		AmountPaid: 100, PaymentMethod: core.PaymentYape,
	})
	testutil.CreateMember(t, f.memberRepo, member.Member{
		Name: "Por Vencer", DNI: "30000002", StartDate: today.AddMonths(-1).AddDays(2), ExpirationDate: today.AddDays(2),
	})
	testutil.CreateMember(t, f.memberRepo, member.Member{
		Name: "Al Día", DNI: "30000003", StartDate: today, ExpirationDate: today.AddMonths(1), AmountPaid: 120,
	})

	req, rec := newAuthRequest(http.MethodGet, "/v1/dashboard", f.staffToken)
	f.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stats dashboard.Stats
	decode(t, rec, &stats)
	assert.Equal(t, 3, stats.TotalMembers)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.ExpiringSoon)
	require.Len(t, stats.Expiring, 1)
	assert.Equal(t, "30000002", stats.Expiring[0].DNI)
	assert.Equal(t, 3, stats.NewMembers)
	assert.Equal(t, 340.0, stats.MonthIncome)
	assert.Equal(t, map[string]float64{core.PaymentYape: 100, core.PaymentCash: 240}, stats.IncomeByMethod)

	req, rec = newRequest(http.MethodGet, "/v1/dashboard")
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_navApi(t *testing.T) {
	f := setup(t)

	labels := func(token string) []string {
		req, rec := newAuthRequest(http.MethodGet, "/v1/nav", token)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var items []NavItem
		decode(t, rec, &items)
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, it.Label)
		}
		return out
	}

	assert.Equal(t, []string{"Inicio", "Acceso", "Clientes", "Pagos"}, labels(f.staffToken))
	assert.Equal(t, []string{"Inicio", "Acceso", "Clientes", "Pagos", "Configuración"}, labels(f.adminToken))
}

func Test_userApi(t *testing.T) {
	f := setup(t)

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users?ordering=email", f.adminToken)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var users []user.User
		decode(t, rec, &users)
		require.Len(t, users, 2)
		assert.Equal(t, "duena@intigym.pe", users[0].Email)
		assert.Equal(t, "recepcion@intigym.pe", users[1].Email)
	})

	tests := []httpTest{
		{
			name: "staff cannot list", path: "/v1/users", token: f.staffToken, wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permiso denegado"}),
		},
		{
			name: "staff cannot see another user", path: "/v1/users/" + f.admin.ID, token: f.staffToken,
			wantCode: http.StatusNotFound,
		},
		{
			name: "staff sees itself", path: "/v1/users/" + f.staff.ID, token: f.staffToken,
			wantCode: http.StatusOK,
		},
		{
			name: "staff cannot delete", method: http.MethodDelete, path: "/v1/users/" + f.staff.ID, token: f.staffToken,
			wantCode: http.StatusForbidden,
		},
	}
	runHTTPTests(t, f.app, tests)
}
