package sqlxrepos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/member"
)

const memberColumns = `id, name, dni, phone, email, birth_date, plan, start_date, expiration_date,
	payment_status, photo_url, amount_paid, payment_method, reminded_for, created_at, updated_at`

var memberOrderings = map[string]string{
	"name":            "name",
	"dni":             "dni",
	"plan":            "plan",
	"start_date":      "start_date",
	"expiration_date": "expiration_date",
	"payment_status":  "payment_status",
	"created_at":      "created_at",
	"updated_at":      "updated_at",
}

type memberRow struct {
	ID             string      `db:"id"`
	Name           string      `db:"name"`
	DNI            string      `db:"dni"`
	Phone          null.String `db:"phone"`
	Email          null.String `db:"email"`
	BirthDate      core.Date   `db:"birth_date"`
	Plan           string      `db:"plan"`
	StartDate      core.Date   `db:"start_date"`
	ExpirationDate core.Date   `db:"expiration_date"`
	PaymentStatus  string      `db:"payment_status"`
	PhotoURL       null.String `db:"photo_url"`
	AmountPaid     float64     `db:"amount_paid"`
	PaymentMethod  string      `db:"payment_method"`
	RemindedFor    core.Date   `db:"reminded_for"`
	// SearchName is the lower-cased name. sqlite's LOWER() only folds ASCII.
	SearchName string    `db:"search_name"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func memberToRow(m member.Member) memberRow {
	return memberRow{
		ID:             m.ID,
		Name:           m.Name,
		DNI:            m.DNI,
		Phone:          null.NewString(m.Phone, m.Phone != ""),
		Email:          null.NewString(m.Email, m.Email != ""),
		BirthDate:      m.BirthDate,
		Plan:           m.Plan,
		StartDate:      m.StartDate,
		ExpirationDate: m.ExpirationDate,
		PaymentStatus:  m.PaymentStatus,
		PhotoURL:       null.NewString(m.PhotoURL, m.PhotoURL != ""),
		AmountPaid:     m.AmountPaid,
		PaymentMethod:  m.PaymentMethod,
		RemindedFor:    m.RemindedFor,
		SearchName:     strings.ToLower(m.Name),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

func memberFromRow(row memberRow) member.Member {
	return member.Member{
		ID:             row.ID,
		Name:           row.Name,
		DNI:            row.DNI,
		Phone:          row.Phone.String,
		Email:          row.Email.String,
		BirthDate:      row.BirthDate,
		Plan:           row.Plan,
		StartDate:      row.StartDate,
		ExpirationDate: row.ExpirationDate,
		PaymentStatus:  row.PaymentStatus,
		PhotoURL:       row.PhotoURL.String,
		AmountPaid:     row.AmountPaid,
		PaymentMethod:  row.PaymentMethod,
		RemindedFor:    row.RemindedFor,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

type memberRepository struct {
	baseRepository
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(exec core.DBExecutor) *memberRepository {
	return &memberRepository{baseRepository{exec: exec}}
}

func (repo memberRepository) CheckDNIUniqueness(ctx context.Context, dni string, excludedIDs []string, exec ...core.DBExecutor) error {
	var w where
	w.add("dni = ?", dni)
	excluded := make([]string, 0, len(excludedIDs))
	for _, id := range excludedIDs {
		if isUUID(id) {
			excluded = append(excluded, id)
		}
	}
	if len(excluded) > 0 {
		w.add("id NOT IN (?)", excluded)
	}

	query, args, err := sqlx.In("SELECT COUNT(*) FROM members"+w.String(), w.args...)
	if err != nil {
		return errors.Wrap(err, "building DNI uniqueness query")
	}
	exe := repo.getExec(exec)
	var cnt int
	if err = sqlx.GetContext(ctx, exe, &cnt, exe.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking DNI uniqueness")
	}
	if cnt > 0 {
		return member.ErrDNIExists
	}
	return nil
}

func (repo memberRepository) CreateMember(ctx context.Context, m member.Member, exec ...core.DBExecutor) (member.Member, error) {
	m.ID = uuid.New().String()
	row := memberToRow(m)
	q := `INSERT INTO members (` + memberColumns + `, search_name)
		VALUES (:id, :name, :dni, :phone, :email, :birth_date, :plan, :start_date, :expiration_date,
			:payment_status, :photo_url, :amount_paid, :payment_method, :reminded_for, :created_at, :updated_at,
			:search_name)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		return member.Member{}, trapUniqueErr(err, member.ErrDNIExists, "inserting member")
	}
	return memberFromRow(row), nil
}

func memberWhere(filter *member.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	// members with Name or DNI matching the search keyword
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(search_name LIKE ?"+likeEscape+" OR dni LIKE ?"+likeEscape+")", val, val)
	}
	if filter.Status != "" {
		w.add("payment_status = ?", filter.Status)
	}
	if filter.Plan != "" {
		w.add("plan = ?", filter.Plan)
	}
	if !filter.ExpiresFrom.IsZero() {
		w.add("expiration_date >= ?", filter.ExpiresFrom)
	}
	if !filter.ExpiresTo.IsZero() {
		w.add("expiration_date <= ?", filter.ExpiresTo)
	}
	if !filter.CreatedFrom.IsZero() {
		w.add("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if filter.WithEmailOnly {
		w.add("email IS NOT NULL AND email <> ''")
	}
	return w
}

func (repo memberRepository) QueryMembers(ctx context.Context, filter *member.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]member.Member, error) {
	w := memberWhere(filter)
	q := "SELECT " + memberColumns + " FROM members" + w.String() + orderBy(ordering, memberOrderings, "created_at DESC")
	if filter != nil && filter.Limit > 0 {
		q += " LIMIT " + strconv.Itoa(filter.Limit)
	}

	exe := repo.getExec(exec)
	var rows []memberRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying members")
	}
	members := make([]member.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, memberFromRow(row))
	}
	return members, nil
}

func (repo memberRepository) CountMembers(ctx context.Context, filter *member.QueryFilter, exec ...core.DBExecutor) (int, error) {
	w := memberWhere(filter)
	exe := repo.getExec(exec)
	var cnt int
	if err := sqlx.GetContext(ctx, exe, &cnt, exe.Rebind("SELECT COUNT(*) FROM members"+w.String()), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting members")
	}
	return cnt, nil
}

func (repo memberRepository) GetMember(ctx context.Context, filter member.GetFilter, exec ...core.DBExecutor) (member.Member, error) {
	var w where
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return member.Member{}, member.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.DNI != "":
		w.add("dni = ?", filter.DNI)
	default:
		return member.Member{}, member.ErrNotFound
	}

	exe := repo.getExec(exec)
	var row memberRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind("SELECT "+memberColumns+" FROM members"+w.String()), w.args...); err != nil {
		return member.Member{}, trapNoRowsErr(err, member.ErrNotFound, "finding member")
	}
	return memberFromRow(row), nil
}

func (repo memberRepository) UpdateMember(ctx context.Context, m member.Member, exec ...core.DBExecutor) (member.Member, error) {
	if !isUUID(m.ID) {
		return member.Member{}, member.ErrNotFound
	}
	row := memberToRow(m)
	q := `UPDATE members SET name = :name, dni = :dni, phone = :phone, email = :email, birth_date = :birth_date,
		plan = :plan, start_date = :start_date, expiration_date = :expiration_date, payment_status = :payment_status,
		photo_url = :photo_url, amount_paid = :amount_paid, payment_method = :payment_method, updated_at = :updated_at,
		search_name = :search_name
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row)
	if err != nil {
		return member.Member{}, trapUniqueErr(err, member.ErrDNIExists, "updating member")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return member.Member{}, member.ErrNotFound
	}
	return memberFromRow(row), nil
}

func (repo memberRepository) DeleteMembersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In("DELETE FROM members WHERE id IN (?)", valid)
	if err != nil {
		return 0, errors.Wrap(err, "building delete members query")
	}
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting members")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "counting deleted members")
}

func (repo memberRepository) RefreshStatuses(ctx context.Context, today core.Date, exec ...core.DBExecutor) (member.StatusRefresh, error) {
	exe := repo.getExec(exec)
	now := core.NowFunc().UTC()
	var refresh member.StatusRefresh

	q := `UPDATE members SET payment_status = ?, updated_at = ?
		WHERE expiration_date IS NOT NULL AND expiration_date < ? AND payment_status <> ?`
	res, err := exe.ExecContext(ctx, exe.Rebind(q), member.StatusExpired, now, today, member.StatusExpired)
	if err != nil {
		return refresh, errors.Wrap(err, "flagging expired members")
	}
	if n, err := res.RowsAffected(); err == nil {
		refresh.Expired = int(n)
	}

	q = `UPDATE members SET payment_status = ?, updated_at = ?
		WHERE (expiration_date IS NULL OR expiration_date >= ?) AND payment_status <> ?`
	res, err = exe.ExecContext(ctx, exe.Rebind(q), member.StatusCurrent, now, today, member.StatusCurrent)
	if err != nil {
		return refresh, errors.Wrap(err, "flagging current members")
	}
	if n, err := res.RowsAffected(); err == nil {
		refresh.Current = int(n)
	}
	return refresh, nil
}

// MarkReminded records that the members were reminded of their current expiration date.
func (repo memberRepository) MarkReminded(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	query, args, err := sqlx.In("UPDATE members SET reminded_for = expiration_date WHERE id IN (?)", valid)
	if err != nil {
		return errors.Wrap(err, "building mark reminded query")
	}
	exe := repo.getExec(exec)
	if _, err = exe.ExecContext(ctx, exe.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "marking members reminded")
	}
	return nil
}
