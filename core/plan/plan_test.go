package plan_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/plan"
	cachesvc "github.com/intigym/backoffice/services/cache"
	logsvc "github.com/intigym/backoffice/services/logger"
	sqlxrepos "github.com/intigym/backoffice/storage/database/sqlx"
	"github.com/intigym/backoffice/testutil"
)

func newService(t *testing.T) (plan.Service, plan.Repository) {
	conf := core.NewTestConfig()
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewSettingRepository(db)
	return plan.NewService(conf, db, repo, cachesvc.NewMemoryCache(), logsvc.NewNopLogger()), repo
}

func TestListDefaults(t *testing.T) {
	svc, _ := newService(t)

	plans, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, plan.Defaults(), plans)

	prices, err := svc.Prices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"mensual": 120, "trimestral": 300, "anual": 1000}, prices)
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	// warm the cache with the defaults
	_, err := svc.List(ctx)
	require.NoError(t, err)

	saved, err := svc.Save(ctx, []plan.Plan{
		{Name: "Anual", Price: 900},
		{Name: "  Pase   Diario ", Price: 15, Months: 0},
		{Name: "vacío", Price: 0},
		{Name: "", Price: 50},
		{Name: "anual", Price: 1},
		{Name: "semestral", Price: 550, Months: 6},
	})
	require.NoError(t, err)
	want := []plan.Plan{
		{Name: "pase_diario", Price: 15, Months: 1},
		{Name: "semestral", Price: 550, Months: 6},
		{Name: "anual", Price: 900, Months: 12},
	}
	assert.Equal(t, want, saved)

	// cache invalidated
	plans, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, plans)

	p, err := svc.Get(ctx, "Pase Diario")
	require.NoError(t, err)
	assert.Equal(t, want[0], p)
	_, err = svc.Get(ctx, "mensual")
	assert.Equal(t, plan.ErrNotFound, err)

	settings, err := repo.QuerySettings(ctx, []string{plan.PricePrefix, plan.MonthsPrefix})
	require.NoError(t, err)
	assert.Len(t, settings, 6)
}

func TestSaveNoValidPlan(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Save(context.Background(), []plan.Plan{{Name: "gratis", Price: 0}, {Name: " ", Price: 10}})
	require.Error(t, err)
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "Agrega al menos un plan válido", verr.Error())
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "pase_diario", plan.NormalizeName("  Pase  DIARIO "))
	assert.Equal(t, 3, plan.DefaultMonths("trimestral"))
	assert.Equal(t, 1, plan.DefaultMonths("vip"))
	assert.Equal(t, 1000.0, plan.DefaultPrice("anual"))
	assert.Zero(t, plan.DefaultPrice("vip"))
}
