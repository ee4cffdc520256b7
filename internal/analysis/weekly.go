// Package analysis buckets transactions into Monday-anchored weeks and flags
// weeks whose spend exceeds a fixed multiple of the weekly average.
package analysis

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/billwatch/internal/domain"
	"github.com/shopspring/decimal"
)

// OverspendRatio is the multiple of the weekly average above which a week
// counts as overspending. A week exactly at the threshold is not flagged.
var OverspendRatio = decimal.RequireFromString("1.2")

// WeekBucket accumulates the spend of one calendar week.
type WeekBucket struct {
	WeekStart civil.Date // always a Monday
	Total     decimal.Decimal
}

// WeeklyAnalysis is computed once per file and not modified afterwards.
type WeeklyAnalysis struct {
	Weeks         []WeekBucket // ascending by WeekStart
	Average       decimal.Decimal
	Overspending  []WeekBucket // subset of Weeks, ascending
	TotalSpending decimal.Decimal
	WeekCount     int
}

// Threshold returns the spend level a week must exceed to be flagged,
// rounded like Average. Use IsOverspending for the comparison itself.
func (a WeeklyAnalysis) Threshold() decimal.Decimal {
	return a.Average.Mul(OverspendRatio)
}

// IsOverspending reports whether total exceeds OverspendRatio times the
// weekly average. The comparison is cross-multiplied so a repeating average
// cannot move the boundary.
func (a WeeklyAnalysis) IsOverspending(total decimal.Decimal) bool {
	if a.WeekCount == 0 {
		return false
	}
	weeks := decimal.NewFromInt(int64(a.WeekCount))
	return total.Mul(weeks).GreaterThan(a.TotalSpending.Mul(OverspendRatio))
}

// WeekStart returns the Monday on or before d.
func WeekStart(d civil.Date) civil.Date {
	// time.Weekday counts from Sunday; shift so Monday is 0.
	offset := (int(d.In(time.UTC).Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// Aggregate groups txs by week. The result depends only on the set of
// transactions, not on their order.
func Aggregate(txs []domain.Transaction) WeeklyAnalysis {
	totals := make(map[civil.Date]decimal.Decimal)
	for _, tx := range txs {
		key := WeekStart(tx.Date)
		if current, ok := totals[key]; ok {
			totals[key] = current.Add(tx.Amount)
		} else {
			totals[key] = tx.Amount
		}
	}

	weeks := make([]WeekBucket, 0, len(totals))
	for start, total := range totals {
		weeks = append(weeks, WeekBucket{WeekStart: start, Total: total})
	}
	sort.Slice(weeks, func(i, j int) bool {
		return weeks[i].WeekStart.Before(weeks[j].WeekStart)
	})

	result := WeeklyAnalysis{
		Weeks:         weeks,
		Average:       decimal.Zero,
		TotalSpending: decimal.Zero,
		WeekCount:     len(weeks),
	}

	for _, w := range weeks {
		result.TotalSpending = result.TotalSpending.Add(w.Total)
	}
	if result.WeekCount > 0 {
		result.Average = result.TotalSpending.Div(decimal.NewFromInt(int64(result.WeekCount)))
	}

	for _, w := range weeks {
		if result.IsOverspending(w.Total) {
			result.Overspending = append(result.Overspending, w)
		}
	}

	return result
}
