// Package extract turns loosely structured billing text into dated
// transactions. Each line is matched independently: the first date-looking
// token and the last "$" amount on the line form one transaction. Rows whose
// amount is zero are rejected.
package extract

import (
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/billwatch/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	datePattern   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}|\d{1,2}-\d{1,2}-\d{4}`)
	amountPattern = regexp.MustCompile(`\$\s*(?:\d[\d,]*(?:\.\d+)?|\.\d+)`)
)

// DateLayouts are tried in order; the first layout yielding a valid calendar
// date wins. Month-first layouts precede day-first ones, so "03/04/2024" is
// March 4th.
var DateLayouts = []string{
	"2006-01-02", // year-month-day
	"1/2/2006",   // month/day/year
	"1-2-2006",   // month-day-year
	"2/1/2006",   // day/month/year
	"2-1-2006",   // day-month-year
}

// skipMarkers drop header and footer rows wherever they appear.
var skipMarkers = []string{"date", "service"}

// Extract returns every transaction found in text, in input order.
// Rows that fail any step are dropped.
func Extract(text string) []domain.Transaction {
	txs, _ := Scan(text)
	return txs
}

// Scan is Extract plus the list of rejected candidate rows. Empty and header
// rows are not candidates and are not reported.
func Scan(text string) ([]domain.Transaction, []*RowError) {
	var (
		txs      []domain.Transaction
		rejected []*RowError
	)

	for i, line := range strings.Split(text, "\n") {
		if skipLine(line) {
			continue
		}

		tx, rowErr := parseRow(line)
		if rowErr != nil {
			rowErr.Line = i + 1
			rejected = append(rejected, rowErr)
			continue
		}
		txs = append(txs, tx)
	}

	return txs, rejected
}

func skipLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}
	lower := strings.ToLower(line)
	for _, marker := range skipMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func parseRow(line string) (domain.Transaction, *RowError) {
	dateToken := datePattern.FindString(line)
	if dateToken == "" {
		return domain.Transaction{}, &RowError{Reason: ReasonNoDate}
	}

	amounts := amountPattern.FindAllString(line, -1)
	if len(amounts) == 0 {
		return domain.Transaction{}, &RowError{Reason: ReasonNoAmount}
	}
	amountToken := amounts[len(amounts)-1]

	date, ok := ParseDate(dateToken)
	if !ok {
		return domain.Transaction{}, &RowError{Reason: ReasonBadDate, Token: dateToken}
	}

	amount, ok := ParseAmount(amountToken)
	if !ok {
		return domain.Transaction{}, &RowError{Reason: ReasonBadAmount, Token: amountToken}
	}
	if amount.IsZero() {
		return domain.Transaction{}, &RowError{Reason: ReasonZeroAmount, Token: amountToken}
	}

	tx, err := domain.NewTransaction(date, amount)
	if err != nil {
		return domain.Transaction{}, &RowError{Reason: ReasonBadAmount, Token: amountToken}
	}
	return tx, nil
}

// ParseDate parses a whole date token against DateLayouts.
func ParseDate(token string) (civil.Date, bool) {
	token = strings.TrimSpace(token)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, token); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

// ParseAmount converts a currency token such as "$1,234.56", "$ 10" or
// "$.50" into a decimal. Negative values are rejected.
func ParseAmount(token string) (decimal.Decimal, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(token)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero, false
	}
	if strings.HasPrefix(cleaned, ".") {
		cleaned = "0" + cleaned
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil || amount.IsNegative() {
		return decimal.Zero, false
	}
	return amount, true
}
