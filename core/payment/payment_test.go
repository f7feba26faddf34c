package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/intigym/backoffice/core"
)

func TestSummarize(t *testing.T) {
	payments := []Payment{
		{Amount: 120, Method: core.PaymentCash, PaidOn: core.NewDate(2024, time.March, 2)},
		{Amount: 300, Method: core.PaymentYape, PaidOn: core.NewDate(2024, time.March, 28)},
		{Amount: 120, Method: core.PaymentCash, PaidOn: core.NewDate(2024, time.March, 30)},
		{Amount: 1000, Method: core.PaymentCard, PaidOn: core.NewDate(2023, time.December, 31)},
		{Amount: 80, Method: core.PaymentTransfer, PaidOn: core.NewDate(2024, time.January, 1)},
		{Amount: 50, Method: core.PaymentCash}, // undated, ignored
	}

	want := []MonthlyTotal{
		{Month: "2024-03", Total: 540, Count: 3, ByMethod: map[string]float64{core.PaymentCash: 240, core.PaymentYape: 300}},
		{Month: "2024-01", Total: 80, Count: 1, ByMethod: map[string]float64{core.PaymentTransfer: 80}},
		{Month: "2023-12", Total: 1000, Count: 1, ByMethod: map[string]float64{core.PaymentCard: 1000}},
	}
	assert.Equal(t, want, Summarize(payments))
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Empty(t, Summarize(nil))
}

func TestQueryFilterClean(t *testing.T) {
	tests := []struct {
		name         string
		filter       QueryFilter
		defaultLimit int
		want         QueryFilter
	}{
		{"default limit", QueryFilter{Method: " YAPE "}, 50, QueryFilter{Method: "yape", Limit: 50}},
		{"explicit limit", QueryFilter{Limit: 10}, 50, QueryFilter{Limit: 10}},
		{"negative limit", QueryFilter{Limit: -1}, 0, QueryFilter{Limit: 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.filter.Clean(tc.defaultLimit)
			assert.Equal(t, tc.want, tc.filter)
		})
	}
}
