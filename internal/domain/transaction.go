package domain

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction represents one dated charge extracted from a billing file.
// Values are immutable once produced by the extractor; the aggregator only
// reads them.
type Transaction struct {
	Date   civil.Date      // calendar date, no time component
	Amount decimal.Decimal // non-negative, parsed from a "$"-prefixed token
}

// NewTransaction builds a Transaction, rejecting negative amounts and
// invalid calendar dates.
func NewTransaction(date civil.Date, amount decimal.Decimal) (Transaction, error) {
	if !date.IsValid() {
		return Transaction{}, fmt.Errorf("invalid date %s", date)
	}
	if amount.IsNegative() {
		return Transaction{}, fmt.Errorf("negative amount %s", amount)
	}
	return Transaction{Date: date, Amount: amount}, nil
}

// String renders the transaction as "YYYY-MM-DD $amount".
func (t Transaction) String() string {
	return fmt.Sprintf("%s $%s", t.Date, t.Amount.StringFixed(2))
}

// SumAmounts returns the exact sum of all transaction amounts.
func SumAmounts(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}
