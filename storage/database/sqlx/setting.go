package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/plan"
)

type settingRow struct {
	Key         string    `db:"key"`
	Value       string    `db:"value"`
	Description string    `db:"description"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type settingRepository struct {
	baseRepository
}

var _ plan.Repository = (*settingRepository)(nil) // interface compliance check

func NewSettingRepository(exec core.DBExecutor) *settingRepository {
	return &settingRepository{baseRepository{exec: exec}}
}

func prefixesWhere(prefixes []string) *where {
	w := new(where)
	if len(prefixes) == 0 {
		return w
	}
	conds := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		conds = append(conds, "key LIKE ?"+likeEscape)
		w.args = append(w.args, strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(p)+"%")
	}
	w.conds = append(w.conds, "("+strings.Join(conds, " OR ")+")")
	return w
}

func (repo settingRepository) QuerySettings(ctx context.Context, prefixes []string, exec ...core.DBExecutor) ([]plan.Setting, error) {
	w := prefixesWhere(prefixes)
	exe := repo.getExec(exec)
	var rows []settingRow
	q := "SELECT key, value, description, updated_at FROM settings" + w.String() + " ORDER BY key"
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying settings")
	}

	settings := make([]plan.Setting, 0, len(rows))
	for _, row := range rows {
		settings = append(settings, plan.Setting{
			Key:         row.Key,
			Value:       row.Value,
			Description: row.Description,
			UpdatedAt:   row.UpdatedAt.UTC(),
		})
	}
	return settings, nil
}

func (repo settingRepository) ReplaceSettings(ctx context.Context, prefixes []string, settings []plan.Setting, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	w := prefixesWhere(prefixes)
	if _, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM settings"+w.String()), w.args...); err != nil {
		return errors.Wrap(err, "deleting settings")
	}

	q := "INSERT INTO settings (key, value, description, updated_at) VALUES (:key, :value, :description, :updated_at)"
	for _, s := range settings {
		row := settingRow{Key: s.Key, Value: s.Value, Description: s.Description, UpdatedAt: s.UpdatedAt.UTC()}
		if _, err := sqlx.NamedExecContext(ctx, exe, q, row); err != nil {
			return errors.Wrapf(err, "inserting setting %q", s.Key)
		}
	}
	return nil
}
