package dashboard

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/member"
	"github.com/intigym/backoffice/core/plan"
)

type (
	Stats struct {
		TotalMembers   int                `json:"total_members"`
		Pending        int                `json:"pending"`
		ExpiringSoon   int                `json:"expiring_soon"`
		MonthIncome    float64            `json:"month_income"`
		IncomeByMethod map[string]float64 `json:"income_by_method"`
		NewMembers     int                `json:"new_members"`
		Expiring       []member.Detail    `json:"expiring"`
	}

	Service interface {
		Stats(ctx context.Context, today core.Date) (Stats, error)
	}

	service struct {
		conf    *core.Config
		members member.Service
		plans   plan.Service
	}
)

func NewService(conf *core.Config, members member.Service, plans plan.Service) Service {
	return &service{conf: conf, members: members, plans: plans}
}

func (svc *service) Stats(ctx context.Context, today core.Date) (Stats, error) {
	var (
		stats      Stats
		expiring   []member.Member
		newMembers []member.Member
		prices     map[string]float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalMembers, err = svc.members.Count(gctx, nil)
		return errors.Wrap(err, "counting members")
	})
	g.Go(func() (err error) {
		stats.Pending, err = svc.members.Count(gctx, &member.QueryFilter{ExpiresTo: today.AddDays(-1)})
		return errors.Wrap(err, "counting expired members")
	})
	g.Go(func() (err error) {
		expiring, err = svc.members.Expiring(gctx, today, svc.conf.Membership.ExpiringSoonDays)
		return errors.Wrap(err, "querying expiring members")
	})
	g.Go(func() (err error) {
		filter := &member.QueryFilter{CreatedFrom: today.FirstOfMonth().Time(svc.conf.Location)}
		newMembers, err = svc.members.Query(gctx, filter, nil)
		return errors.Wrap(err, "querying new members")
	})
	g.Go(func() (err error) {
		prices, err = svc.plans.Prices(gctx)
		return errors.Wrap(err, "querying plan prices")
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats.ExpiringSoon = len(expiring)
	stats.Expiring = make([]member.Detail, 0, len(expiring))
	for _, m := range expiring {
		stats.Expiring = append(stats.Expiring, svc.members.Detail(m, today))
	}

	stats.NewMembers = len(newMembers)
	stats.MonthIncome, stats.IncomeByMethod = MonthIncome(newMembers, prices)
	return stats, nil
}

// MonthIncome sums what members paid on registration: amount_paid, or the price of their plan when nothing was recorded.
// Prices missing from prices fall back to the built-in plan prices.
func MonthIncome(members []member.Member, prices map[string]float64) (float64, map[string]float64) {
	var total float64
	byMethod := make(map[string]float64)
	for _, m := range members {
		amount := m.AmountPaid
		if amount <= 0 {
			price, ok := prices[m.Plan]
			if !ok {
				price = plan.DefaultPrice(m.Plan)
			}
			amount = price
		}
		method := m.PaymentMethod
		if method == "" {
			method = core.PaymentCash
		}
		total += amount
		byMethod[method] += amount
	}
	return total, byMethod
}
