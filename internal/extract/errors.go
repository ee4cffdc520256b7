package extract

import "fmt"

// Reason classifies why a row did not produce a transaction.
type Reason string

const (
	// ReasonNoDate means no date-looking token was found on the line.
	ReasonNoDate Reason = "no_date"
	// ReasonNoAmount means no "$" amount token was found on the line.
	ReasonNoAmount Reason = "no_amount"
	// ReasonBadDate means the date token matched no accepted layout.
	ReasonBadDate Reason = "bad_date"
	// ReasonBadAmount means the amount token could not be converted to a decimal.
	ReasonBadAmount Reason = "bad_amount"
	// ReasonZeroAmount means the amount parsed to zero.
	ReasonZeroAmount Reason = "zero_amount"
)

// RowError describes a rejected row. It is reported by Scan for diagnostics
// and never returned from Extract.
type RowError struct {
	Line   int // 1-based line number in the input
	Reason Reason
	Token  string
}

func (e *RowError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("line %d: %s %q", e.Line, e.Reason, e.Token)
}
