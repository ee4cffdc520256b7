package pipeline

import "net/http"

// Outcome is the externally observable result of a run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeEmpty   Outcome = "empty"
	OutcomeFailure Outcome = "failure"
)

// StatusCode maps the outcome to the status code reported to the invoker.
func (o Outcome) StatusCode() int {
	switch o {
	case OutcomeSuccess:
		return http.StatusOK
	case OutcomeEmpty:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

const (
	// DefaultSubject is the notification subject when none is configured.
	DefaultSubject = "Bill Analysis Report"

	// SuccessBody is the short status message for a delivered report.
	SuccessBody = "Bill analyzed and alert sent"

	// EmptyBody is the short status message for an input without billing rows.
	EmptyBody = "No billing data found"

	// EmptyAlert is the notification sent when no billing rows were extracted.
	EmptyAlert = "No billing data found in file"

	failureAlertPrefix = "Error processing bill: "
)

// FailureAlert is the notification sent when a run fails with err.
func FailureAlert(err error) string {
	return failureAlertPrefix + err.Error()
}

// Result describes a finished run.
type Result struct {
	RunID      string
	Location   string
	Outcome    Outcome
	StatusCode int
	// Body is the short status message; the error text on failure.
	Body string
	// Report is the rendered report, set only on success.
	Report string
	Err    error
}

func newResult(runID, location string, outcome Outcome, body string) Result {
	return Result{
		RunID:      runID,
		Location:   location,
		Outcome:    outcome,
		StatusCode: outcome.StatusCode(),
		Body:       body,
	}
}
