// Package report renders a weekly spending analysis as a plain-text alert.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/billwatch/internal/analysis"
	"github.com/shopspring/decimal"
)

const (
	// DefaultTitle is used when no report title is configured.
	DefaultTitle = "BILL ANALYSIS REPORT"

	timestampLayout = "2006-01-02 15:04:05"
	overspendStatus = "OVERSPEND!"
	okStatus        = "OK"
)

var (
	hundred   = decimal.NewFromInt(100)
	thinRule  = strings.Repeat("-", 50)
	thickRule = strings.Repeat("=", 50)
)

// Formatter renders WeeklyAnalysis values. Now is injectable so reports are
// reproducible in tests.
type Formatter struct {
	Title string
	Now   func() time.Time
}

// NewFormatter creates a Formatter using the wall clock.
func NewFormatter(title string) *Formatter {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return &Formatter{Title: title, Now: time.Now}
}

// Format renders the report.
func (f *Formatter) Format(a analysis.WeeklyAnalysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== %s ===\n\n", f.title())
	fmt.Fprintf(&b, "Total Spending: $%s\n", money(a.TotalSpending))
	fmt.Fprintf(&b, "Average per Week: $%s\n", money(a.Average))
	fmt.Fprintf(&b, "Total Weeks: %d\n\n", a.WeekCount)

	b.WriteString("WEEKLY BREAKDOWN:\n")
	b.WriteString(thinRule + "\n")
	for _, w := range a.Weeks {
		pct := Percentage(w.Total, a.Average)
		status := okStatus
		if a.IsOverspending(w.Total) {
			status = overspendStatus
		}
		fmt.Fprintf(&b, "Week of %s: $%s (%s%%) [%s]\n", w.WeekStart, money(w.Total), pct.StringFixed(0), status)
	}

	if len(a.Overspending) > 0 {
		b.WriteString("\n!!! OVERSPENDING DETECTED !!!\n")
		b.WriteString(thinRule + "\n")
		for _, w := range a.Overspending {
			fmt.Fprintf(&b, "Week of %s: $%s\n", w.WeekStart, money(w.Total))
			fmt.Fprintf(&b, "  Excess: $%s above average\n", money(w.Total.Sub(a.Average)))
		}
	} else {
		b.WriteString("\nNo overspending detected. Spending within normal range.\n")
	}

	b.WriteString("\n" + thickRule + "\n")
	fmt.Fprintf(&b, "Report generated: %s\n", f.now().Format(timestampLayout))

	return b.String()
}

// Percentage returns amount as a percentage of average, or zero when the
// average is zero.
func Percentage(amount, average decimal.Decimal) decimal.Decimal {
	if average.IsZero() {
		return decimal.Zero
	}
	return amount.Div(average).Mul(hundred)
}

func (f *Formatter) title() string {
	if f.Title == "" {
		return DefaultTitle
	}
	return f.Title
}

func (f *Formatter) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
