package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intigym/backoffice/core/access"
	"github.com/intigym/backoffice/core/member"
	"github.com/intigym/backoffice/testutil"
)

func TestAccessLogRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	memberRepo := NewMemberRepository(db)
	repo := NewAccessLogRepository(db)

	ana := testutil.CreateMember(t, memberRepo, member.Member{Name: "Ana Torres", DNI: "45871236"})
	start := time.Date(2024, time.June, 10, 7, 0, 0, 0, time.UTC)

	l1, err := repo.CreateLog(ctx, access.Log{MemberID: ana.ID, DNI: ana.DNI, Granted: true, Reason: access.MsgGranted, CreatedAt: start})
	require.NoError(t, err)
	l2, err := repo.CreateLog(ctx, access.Log{DNI: "99999999", Reason: "Socio no encontrado", CreatedAt: start.Add(time.Minute)})
	require.NoError(t, err)

	granted := true
	tests := []struct {
		name   string
		filter *access.LogFilter
		want   []access.Log
	}{
		{"all, newest first", nil, []access.Log{l2, l1}},
		{"by dni", &access.LogFilter{DNI: "45871236"}, []access.Log{l1}},
		{"granted", &access.LogFilter{Granted: &granted}, []access.Log{l1}},
		{"from", &access.LogFilter{From: start.Add(30 * time.Second)}, []access.Log{l2}},
		{"limit", &access.LogFilter{Limit: 1}, []access.Log{l2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.QueryLogs(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("member deleted", func(t *testing.T) {
		_, err := memberRepo.DeleteMembersByID(ctx, []string{ana.ID})
		require.NoError(t, err)
		got, err := repo.QueryLogs(ctx, &access.LogFilter{DNI: ana.DNI})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "", got[0].MemberID)
	})
}
