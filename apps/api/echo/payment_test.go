package echoapi_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/member"
	"github.com/intigym/backoffice/core/payment"
	sqlxrepos "github.com/intigym/backoffice/storage/database/sqlx"
	"github.com/intigym/backoffice/testutil"
)

func Test_paymentApi(t *testing.T) {
	f := setup(t)
	today := f.conf.Today()
	lastMonth := today.FirstOfMonth().AddDays(-1)

	debtor := testutil.CreateMember(t, f.memberRepo, member.Member{
		Name: "Deudor", DNI: "50000001", Phone: "987654321",
		StartDate: today.AddMonths(-1).AddDays(-3), ExpirationDate: today.AddDays(-3),
	})
	current := testutil.CreateMember(t, f.memberRepo, member.Member{
		Name: "Puntual", DNI: "50000002", StartDate: today, ExpirationDate: today.AddMonths(1),
	})

	payRepo := sqlxrepos.NewPaymentRepository(f.db)
	for _, p := range []payment.Payment{
		{MemberID: current.ID, Amount: 100, Method: core.PaymentYape, Concept: "Pago inicial de membresía", PaidOn: today},
		{MemberID: debtor.ID, Amount: 50, Method: core.PaymentCash, Concept: "Pago inicial de membresía", PaidOn: lastMonth},
	} {
		p.CreatedAt = time.Now()
		_, err := payRepo.CreatePayment(context.Background(), p)
		require.NoError(t, err)
	}

	get := func(t *testing.T, path string, v interface{}) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, f.staffToken)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, v)
	}

	t.Run("history", func(t *testing.T) {
		var payments []payment.Payment
		get(t, "/v1/payments", &payments)
		require.Len(t, payments, 2)
		assert.Equal(t, "Puntual", payments[0].MemberName)
		assert.Equal(t, "Deudor", payments[1].MemberName)

		get(t, "/v1/payments?method=efectivo", &payments)
		require.Len(t, payments, 1)
		assert.Equal(t, debtor.ID, payments[0].MemberID)

		get(t, "/v1/payments?from="+today.FirstOfMonth().String(), &payments)
		require.Len(t, payments, 1)
		assert.Equal(t, current.ID, payments[0].MemberID)
	})

	t.Run("monthly", func(t *testing.T) {
		var totals []payment.MonthlyTotal
		get(t, "/v1/payments/monthly", &totals)
		require.Len(t, totals, 2)
		assert.Equal(t, today.Time(time.UTC).Format(payment.MonthLayout), totals[0].Month)
		assert.Equal(t, 100.0, totals[0].Total)
		assert.Equal(t, map[string]float64{core.PaymentYape: 100}, totals[0].ByMethod)
		assert.Equal(t, lastMonth.Time(time.UTC).Format(payment.MonthLayout), totals[1].Month)
		assert.Equal(t, 1, totals[1].Count)
	})

	t.Run("stats", func(t *testing.T) {
		var stats payment.Stats
		get(t, "/v1/payments/stats", &stats)
		assert.Equal(t, 100.0, stats.MonthTotal)
		assert.Equal(t, 1, stats.Pending)
		assert.Equal(t, 1, stats.Expired)
		assert.Len(t, stats.Recent, 2)
	})

	t.Run("debts", func(t *testing.T) {
		var debts []payment.Debt
		get(t, "/v1/payments/debts", &debts)
		require.Len(t, debts, 1)
		assert.Equal(t, debtor.ID, debts[0].Member.ID)
		assert.Equal(t, member.StatusExpired, debts[0].Member.PaymentStatus)
		assert.Equal(t, 3, debts[0].DaysOverdue)
		assert.True(t, strings.HasPrefix(debts[0].WhatsAppLink, "https://wa.me/51987654321?text="), debts[0].WhatsAppLink)
	})

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/payments/debts")
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
