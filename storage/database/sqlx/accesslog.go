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
	"github.com/intigym/backoffice/core/access"
)

type accessLogRow struct {
	ID        string      `db:"id"`
	MemberID  null.String `db:"member_id"`
	DNI       string      `db:"dni"`
	Granted   bool        `db:"granted"`
	Reason    string      `db:"reason"`
	CreatedAt time.Time   `db:"created_at"`
}

type accessLogRepository struct {
	baseRepository
}

var _ access.Repository = (*accessLogRepository)(nil) // interface compliance check

func NewAccessLogRepository(exec core.DBExecutor) *accessLogRepository {
	return &accessLogRepository{baseRepository{exec: exec}}
}

func (repo accessLogRepository) CreateLog(ctx context.Context, l access.Log, exec ...core.DBExecutor) (access.Log, error) {
	l.ID = uuid.New().String()
	l.CreatedAt = l.CreatedAt.UTC()
	row := accessLogRow{
		ID:        l.ID,
		MemberID:  null.NewString(l.MemberID, isUUID(l.MemberID)),
		DNI:       l.DNI,
		Granted:   l.Granted,
		Reason:    l.Reason,
		CreatedAt: l.CreatedAt,
	}
	q := `INSERT INTO access_logs (id, member_id, dni, granted, reason, created_at)
		VALUES (:id, :member_id, :dni, :granted, :reason, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		return access.Log{}, errors.Wrap(err, "inserting access log")
	}
	return l, nil
}

func (repo accessLogRepository) QueryLogs(ctx context.Context, filter *access.LogFilter, exec ...core.DBExecutor) ([]access.Log, error) {
	var w where
	var limit int
	if filter != nil {
		if filter.DNI != "" {
			w.add("dni = ?", filter.DNI)
		}
		if filter.Granted != nil {
			w.add("granted = ?", *filter.Granted)
		}
		if !filter.From.IsZero() {
			w.add("created_at >= ?", filter.From.UTC())
		}
		limit = filter.Limit
	}

	q := "SELECT id, member_id, dni, granted, reason, created_at FROM access_logs" + w.String() + " ORDER BY created_at DESC"
	if limit > 0 {
		q += " LIMIT " + strconv.Itoa(limit)
	}
	exe := repo.getExec(exec)
	var rows []accessLogRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying access logs")
	}
	logs := make([]access.Log, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, access.Log{
			ID:        row.ID,
			MemberID:  row.MemberID.String,
			DNI:       row.DNI,
			Granted:   row.Granted,
			Reason:    row.Reason,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return logs, nil
}
