package pipeline_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/billwatch/internal/notify"
	"github.com/dvloznov/billwatch/internal/pipeline"
	"github.com/dvloznov/billwatch/internal/report"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockFetcher is a mock implementation of source.Fetcher for testing.
type MockFetcher struct {
	FetchFunc func(ctx context.Context, location string) ([]byte, error)
}

func (m *MockFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, location)
	}
	return []byte{}, nil
}

type sentMessage struct {
	Subject string
	Body    string
}

// MockNotifier records every notification it receives.
type MockNotifier struct {
	NotifyFunc func(ctx context.Context, subject, body string) error

	mu   sync.Mutex
	Sent []sentMessage
}

func (m *MockNotifier) Notify(ctx context.Context, subject, body string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, sentMessage{Subject: subject, Body: body})
	m.mu.Unlock()
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, subject, body)
	}
	return nil
}

const scenarioBill = `Usage Date,Description,Cost
2024-01-02 compute engine $100.00
2024-01-03 cloud storage $50.00
2024-01-09 compute engine $500.00
`

const literalBill = `Date,Service,Amount
2024-01-01,AWS,$100.00
2024-01-02,AWS,$50.00
2024-01-08,AWS,$500.00
`

var fixedNow = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

func newPipeline(t *testing.T, fetcher *MockFetcher, notifier *MockNotifier) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(pipeline.Config{
		Fetcher:   fetcher,
		Notifier:  notifier,
		Formatter: &report.Formatter{Title: report.DefaultTitle, Now: func() time.Time { return fixedNow }},
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	return p
}

func staticFetcher(content string) *MockFetcher {
	return &MockFetcher{
		FetchFunc: func(ctx context.Context, location string) ([]byte, error) {
			return []byte(content), nil
		},
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := pipeline.New(pipeline.Config{Notifier: &MockNotifier{}})
	assert.Error(t, err)

	_, err = pipeline.New(pipeline.Config{Fetcher: &MockFetcher{}})
	assert.Error(t, err)
}

func TestAnalyze_Scenario(t *testing.T) {
	p := newPipeline(t, &MockFetcher{}, &MockNotifier{})

	tests := []struct {
		name string
		text string
	}{
		{name: "csv export", text: literalBill},
		{name: "free text lines", text: scenarioBill},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Analyze(tt.text)

			require.NoError(t, err)
			require.Len(t, got.Transactions, 3)
			require.Len(t, got.Weekly.Weeks, 2)
			assert.Equal(t, "2024-01-01", got.Weekly.Weeks[0].WeekStart.String())
			assert.Equal(t, "150.00", got.Weekly.Weeks[0].Total.StringFixed(2))
			assert.Equal(t, "2024-01-08", got.Weekly.Weeks[1].WeekStart.String())
			assert.Equal(t, "500.00", got.Weekly.Weeks[1].Total.StringFixed(2))
			assert.Equal(t, "325.00", got.Weekly.Average.StringFixed(2))
			require.Len(t, got.Weekly.Overspending, 1)
			assert.Equal(t, "2024-01-08", got.Weekly.Overspending[0].WeekStart.String())
			assert.Contains(t, got.Report, "Week of 2024-01-08: $500.00 (154%) [OVERSPEND!]")
			assert.Contains(t, got.Report, "Report generated: 2024-01-15 09:30:00")
		})
	}
}

func TestAnalyze_Empty(t *testing.T) {
	p := newPipeline(t, &MockFetcher{}, &MockNotifier{})

	tests := []struct {
		name string
		text string
	}{
		{name: "empty input", text: ""},
		{name: "header only", text: "Usage Date,Service,Cost\n"},
		{name: "no amounts", text: "2024-01-02 compute\n2024-01-03 storage\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Analyze(tt.text)
			assert.ErrorIs(t, err, pipeline.ErrEmptyResult)
		})
	}
}

func TestRun_Success(t *testing.T) {
	notifier := &MockNotifier{}
	p := newPipeline(t, staticFetcher(scenarioBill), notifier)

	res := p.Run(context.Background(), "gs://billing-uploads/2024-01.csv")

	require.NoError(t, res.Err)
	assert.Equal(t, pipeline.OutcomeSuccess, res.Outcome)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, pipeline.SuccessBody, res.Body)
	assert.Equal(t, "gs://billing-uploads/2024-01.csv", res.Location)
	assert.NotEmpty(t, res.RunID)

	require.Len(t, notifier.Sent, 1)
	assert.Equal(t, pipeline.DefaultSubject, notifier.Sent[0].Subject)
	assert.Equal(t, res.Report, notifier.Sent[0].Body)
	assert.True(t, strings.HasPrefix(res.Report, "=== BILL ANALYSIS REPORT ==="))
}

func TestRun_EmptyInput(t *testing.T) {
	notifier := &MockNotifier{}
	p := newPipeline(t, staticFetcher("Date,Service,Cost\n\n"), notifier)

	res := p.Run(context.Background(), "gs://billing-uploads/empty.csv")

	assert.Equal(t, pipeline.OutcomeEmpty, res.Outcome)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, pipeline.EmptyBody, res.Body)
	assert.ErrorIs(t, res.Err, pipeline.ErrEmptyResult)
	require.Len(t, notifier.Sent, 1)
	assert.Equal(t, pipeline.EmptyAlert, notifier.Sent[0].Body)
}

func TestRun_FetchFailure(t *testing.T) {
	notifier := &MockNotifier{}
	cause := errors.New("object not found")
	fetcher := &MockFetcher{
		FetchFunc: func(ctx context.Context, location string) ([]byte, error) {
			return nil, cause
		},
	}
	p := newPipeline(t, fetcher, notifier)

	res := p.Run(context.Background(), "gs://billing-uploads/missing.csv")

	assert.Equal(t, pipeline.OutcomeFailure, res.Outcome)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, cause)

	var fetchErr *pipeline.FetchError
	require.ErrorAs(t, res.Err, &fetchErr)
	assert.Equal(t, "gs://billing-uploads/missing.csv", fetchErr.Location)

	require.Len(t, notifier.Sent, 1)
	assert.True(t, strings.HasPrefix(notifier.Sent[0].Body, "Error processing bill: "))
	assert.Contains(t, notifier.Sent[0].Body, "object not found")
	assert.Equal(t, res.Err.Error(), res.Body)
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	notifier := &MockNotifier{}
	fetcher := &MockFetcher{
		FetchFunc: func(ctx context.Context, location string) ([]byte, error) {
			panic("boom")
		},
	}
	p := newPipeline(t, fetcher, notifier)

	res := p.Run(context.Background(), "gs://billing-uploads/bill.csv")

	assert.Equal(t, pipeline.OutcomeFailure, res.Outcome)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "boom")
	require.Len(t, notifier.Sent, 1)
	assert.Contains(t, notifier.Sent[0].Body, "boom")
}

func TestRun_NotifierFailureIsSwallowed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    pipeline.Outcome
	}{
		{name: "success", content: scenarioBill, want: pipeline.OutcomeSuccess},
		{name: "empty", content: "", want: pipeline.OutcomeEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &MockNotifier{
				NotifyFunc: func(ctx context.Context, subject, body string) error {
					return errors.New("broker unavailable")
				},
			}
			p := newPipeline(t, staticFetcher(tt.content), notifier)

			res := p.Run(context.Background(), "gs://billing-uploads/bill.csv")

			assert.Equal(t, tt.want, res.Outcome)
			assert.Len(t, notifier.Sent, 1)
		})
	}
}

func TestRun_DeadlineStillSendsFailureAlert(t *testing.T) {
	notifier := &MockNotifier{
		NotifyFunc: func(ctx context.Context, subject, body string) error {
			return ctx.Err()
		},
	}
	fetcher := &MockFetcher{
		FetchFunc: func(ctx context.Context, location string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	p, err := pipeline.New(pipeline.Config{
		Fetcher:  fetcher,
		Notifier: notify.NewRetrying(notifier, 3, time.Millisecond, zerolog.Nop()),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := p.Run(ctx, "gs://billing-uploads/slow.csv")

	assert.Equal(t, pipeline.OutcomeFailure, res.Outcome)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	require.Len(t, notifier.Sent, 1)
	assert.True(t, strings.HasPrefix(notifier.Sent[0].Body, "Error processing bill: "))
}

func TestRun_NotifierPanicIsContained(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *MockFetcher
		want    pipeline.Outcome
	}{
		{name: "success", fetcher: staticFetcher(scenarioBill), want: pipeline.OutcomeSuccess},
		{name: "empty", fetcher: staticFetcher(""), want: pipeline.OutcomeEmpty},
		{
			name: "fetch failure",
			fetcher: &MockFetcher{
				FetchFunc: func(ctx context.Context, location string) ([]byte, error) {
					return nil, errors.New("object not found")
				},
			},
			want: pipeline.OutcomeFailure,
		},
		{
			name: "fetcher panic",
			fetcher: &MockFetcher{
				FetchFunc: func(ctx context.Context, location string) ([]byte, error) {
					panic("boom")
				},
			},
			want: pipeline.OutcomeFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &MockNotifier{
				NotifyFunc: func(ctx context.Context, subject, body string) error {
					panic("notifier down")
				},
			}
			p := newPipeline(t, tt.fetcher, notifier)

			var res pipeline.Result
			require.NotPanics(t, func() {
				res = p.Run(context.Background(), "gs://billing-uploads/bill.csv")
			})

			assert.Equal(t, tt.want, res.Outcome)
			assert.Len(t, notifier.Sent, 1)
		})
	}
}

func TestRun_CustomSubject(t *testing.T) {
	notifier := &MockNotifier{}
	p, err := pipeline.New(pipeline.Config{
		Fetcher:  staticFetcher(scenarioBill),
		Notifier: notifier,
		Subject:  "Monthly Cloud Bill",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	p.Run(context.Background(), "bill.csv")

	require.Len(t, notifier.Sent, 1)
	assert.Equal(t, "Monthly Cloud Bill", notifier.Sent[0].Subject)
}

func TestOutcome_StatusCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, pipeline.OutcomeSuccess.StatusCode())
	assert.Equal(t, http.StatusBadRequest, pipeline.OutcomeEmpty.StatusCode())
	assert.Equal(t, http.StatusInternalServerError, pipeline.OutcomeFailure.StatusCode())
}
