package sqlxrepos

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/payment"
)

type paymentRow struct {
	ID         string      `db:"id"`
	MemberID   string      `db:"member_id"`
	MemberName null.String `db:"member_name"`
	MemberDNI  null.String `db:"member_dni"`
	MemberPlan null.String `db:"member_plan"`
	Amount     float64     `db:"amount"`
	Method     string      `db:"method"`
	Concept    string      `db:"concept"`
	PaidOn     core.Date   `db:"paid_on"`
	CreatedAt  time.Time   `db:"created_at"`
}

type paymentRepository struct {
	baseRepository
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(exec core.DBExecutor) *paymentRepository {
	return &paymentRepository{baseRepository{exec: exec}}
}

func (repo paymentRepository) CreatePayment(ctx context.Context, p payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	if !isUUID(p.MemberID) {
		return payment.Payment{}, errors.Errorf("invalid member id %q", p.MemberID)
	}
	p.ID = uuid.New().String()
	p.CreatedAt = p.CreatedAt.UTC()
	row := paymentRow{
		ID:        p.ID,
		MemberID:  p.MemberID,
		Amount:    p.Amount,
		Method:    p.Method,
		Concept:   p.Concept,
		PaidOn:    p.PaidOn,
		CreatedAt: p.CreatedAt,
	}
	q := `INSERT INTO payments (id, member_id, amount, method, concept, paid_on, created_at)
		VALUES (:id, :member_id, :amount, :method, :concept, :paid_on, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func paymentWhere(filter *payment.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if filter.MemberID != "" {
		if !isUUID(filter.MemberID) {
			w.add("1 = 0")
		} else {
			w.add("p.member_id = ?", filter.MemberID)
		}
	}
	if filter.Method != "" {
		w.add("p.method = ?", filter.Method)
	}
	if !filter.From.IsZero() {
		w.add("p.paid_on >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("p.paid_on <= ?", filter.To)
	}
	return w
}

func (repo paymentRepository) QueryPayments(ctx context.Context, filter *payment.QueryFilter, exec ...core.DBExecutor) ([]payment.Payment, error) {
	w := paymentWhere(filter)
	q := `SELECT p.id, p.member_id, m.name AS member_name, m.dni AS member_dni, m.plan AS member_plan,
			p.amount, p.method, p.concept, p.paid_on, p.created_at
		FROM payments p LEFT JOIN members m ON m.id = p.member_id` +
		w.String() + " ORDER BY p.paid_on DESC, p.created_at DESC"
	if filter != nil && filter.Limit > 0 {
		q += " LIMIT " + strconv.Itoa(filter.Limit)
	}

	exe := repo.getExec(exec)
	var rows []paymentRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, payment.Payment{
			ID:         row.ID,
			MemberID:   row.MemberID,
			MemberName: row.MemberName.String,
			MemberDNI:  row.MemberDNI.String,
			MemberPlan: row.MemberPlan.String,
			Amount:     row.Amount,
			Method:     row.Method,
			Concept:    row.Concept,
			PaidOn:     row.PaidOn,
			CreatedAt:  row.CreatedAt.UTC(),
		})
	}
	return payments, nil
}

func (repo paymentRepository) SumPayments(ctx context.Context, filter *payment.QueryFilter, exec ...core.DBExecutor) (float64, error) {
	w := paymentWhere(filter)
	exe := repo.getExec(exec)
	var total float64
	q := "SELECT COALESCE(SUM(p.amount), 0) FROM payments p" + w.String()
	if err := sqlx.GetContext(ctx, exe, &total, exe.Rebind(q), w.args...); err != nil {
		return 0, errors.Wrap(err, "summing payments")
	}
	return total, nil
}
