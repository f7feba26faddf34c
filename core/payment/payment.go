package payment

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/member"
)

// MonthLayout formats the month of a MonthlyTotal.
const MonthLayout = "2006-01"

type (
	// Payment is an entry of a member's payment history.
	Payment struct {
		ID         string    `json:"id"`
		MemberID   string    `json:"member_id"`
		MemberName string    `json:"member_name,omitempty"`
		MemberDNI  string    `json:"member_dni,omitempty"`
		MemberPlan string    `json:"member_plan,omitempty"`
		Amount     float64   `json:"amount"`
		Method     string    `json:"method"`
		Concept    string    `json:"concept"`
		PaidOn     core.Date `json:"paid_on"`
		CreatedAt  time.Time `json:"created_at"` // UTC
	}

	QueryFilter struct {
		MemberID string    `query:"member_id"`
		Method   string    `query:"method"`
		From     core.Date `query:"from"` // inclusive
		To       core.Date `query:"to"`   // inclusive
		Limit    int       `query:"limit"`
	}

	// MonthlyTotal aggregates the payments of a calendar month.
	MonthlyTotal struct {
		Month    string             `json:"month"` // YYYY-MM
		Total    float64            `json:"total"`
		Count    int                `json:"count"`
		ByMethod map[string]float64 `json:"by_method"`
	}

	// Debt is an expired membership awaiting renewal.
	Debt struct {
		Member       member.Member `json:"member"`
		DaysOverdue  int           `json:"days_overdue"`
		WhatsAppLink string        `json:"whatsapp_link,omitempty"`
	}

	// Stats backs the payments page.
	Stats struct {
		MonthTotal float64   `json:"month_total"`
		Pending    int       `json:"pending"`
		Expired    int       `json:"expired"`
		Recent     []Payment `json:"recent"`
	}

	Repository interface {
		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		// QueryPayments returns payments newest first, joined with their member.
		QueryPayments(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Payment, error)
		SumPayments(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (float64, error)
	}

	Service interface {
		member.PaymentRecorder

		History(ctx context.Context, filter *QueryFilter) ([]Payment, error)
		Monthly(ctx context.Context, filter *QueryFilter) ([]MonthlyTotal, error)
		Debts(ctx context.Context, today core.Date) ([]Debt, error)
		Stats(ctx context.Context, today core.Date) (Stats, error)
	}

	service struct {
		conf    *core.Config
		repo    Repository
		members member.Service
	}
)

var _ Service = (*service)(nil)

// NewService returns the payment Service. members may be nil until SetMembers is called,
// the member service itself records payments through this one.
func NewService(conf *core.Config, repo Repository, members member.Service) *service {
	return &service{conf: conf, repo: repo, members: members}
}

func (svc *service) SetMembers(members member.Service) { svc.members = members }

func (filter *QueryFilter) Clean(defaultLimit int) {
	filter.MemberID = core.CleanString(filter.MemberID)
	filter.Method = core.CleanString(filter.Method, true /* lower */)
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
}

func (svc *service) RecordPayment(ctx context.Context, memberID string, amount float64, method, concept string, paidOn core.Date, exec core.DBExecutor) error {
	if amount < 0 {
		return core.NewFieldError("amount", "el monto no puede ser negativo")
	}
	if paidOn.IsZero() {
		paidOn = svc.conf.Today()
	}
	p := Payment{
		MemberID:  memberID,
		Amount:    amount,
		Method:    method,
		Concept:   concept,
		PaidOn:    paidOn,
		CreatedAt: core.NowFunc().UTC(),
	}
	_, err := svc.repo.CreatePayment(ctx, p, exec)
	return errors.Wrap(err, "recording payment")
}

func (svc *service) History(ctx context.Context, filter *QueryFilter) ([]Payment, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean(svc.conf.Membership.HistoryLimit)
	return svc.repo.QueryPayments(ctx, filter)
}

func (svc *service) Monthly(ctx context.Context, filter *QueryFilter) ([]MonthlyTotal, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean(0)
	payments, err := svc.repo.QueryPayments(ctx, filter)
	if err != nil {
		return nil, err
	}
	return Summarize(payments), nil
}

// Summarize groups payments by calendar month, most recent month first.
func Summarize(payments []Payment) []MonthlyTotal {
	byMonth := make(map[string]*MonthlyTotal)
	for _, p := range payments {
		if p.PaidOn.IsZero() {
			continue
		}
		month := p.PaidOn.Time(time.UTC).Format(MonthLayout)
		mt, ok := byMonth[month]
		if !ok {
			mt = &MonthlyTotal{Month: month, ByMethod: make(map[string]float64)}
			byMonth[month] = mt
		}
		mt.Total += p.Amount
		mt.Count++
		mt.ByMethod[p.Method] += p.Amount
	}

	totals := make([]MonthlyTotal, 0, len(byMonth))
	for _, mt := range byMonth {
		totals = append(totals, *mt)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Month > totals[j].Month })
	return totals
}

func (svc *service) Debts(ctx context.Context, today core.Date) ([]Debt, error) {
	filter := &member.QueryFilter{Status: member.StatusExpired}
	members, err := svc.members.Query(ctx, filter, []core.DBOrdering{{Field: "expiration_date", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying expired members")
	}

	debts := make([]Debt, 0, len(members))
	for _, m := range members {
		debts = append(debts, Debt{
			Member:       m,
			DaysOverdue:  -member.DaysUntilExpiration(m.ExpirationDate, today),
			WhatsAppLink: svc.members.ReminderLink(m),
		})
	}
	return debts, nil
}

func (svc *service) Stats(ctx context.Context, today core.Date) (Stats, error) {
	total, err := svc.repo.SumPayments(ctx, &QueryFilter{From: today.FirstOfMonth(), To: today})
	if err != nil {
		return Stats{}, errors.Wrap(err, "summing month payments")
	}
	if _, err = svc.members.RefreshStatuses(ctx, today); err != nil {
		return Stats{}, errors.Wrap(err, "refreshing payment statuses")
	}
	pending, err := svc.members.Count(ctx, &member.QueryFilter{Status: member.StatusExpired})
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting expired members")
	}
	recent, err := svc.History(ctx, nil)
	if err != nil {
		return Stats{}, err
	}
	return Stats{MonthTotal: total, Pending: pending, Expired: pending, Recent: recent}, nil
}
