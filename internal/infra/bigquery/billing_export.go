package bigquery

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	// BillingScheme prefixes billing export locations: bq://project.dataset.table
	BillingScheme = "bq://"

	// DefaultLookbackDays is used when neither the location nor the fetcher
	// sets a window.
	DefaultLookbackDays = 90
)

var (
	projectPattern = regexp.MustCompile(`^[a-z][a-z0-9:.-]*[a-z0-9]$`)
	namePattern    = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// BillingTable identifies a Cloud Billing export table and the number of
// days of usage to read from it.
type BillingTable struct {
	Project      string
	Dataset      string
	Table        string
	LookbackDays int
}

// DailyCost is one row of the aggregated export.
type DailyCost struct {
	UsageDate civil.Date `bigquery:"usage_date"`
	TotalCost float64    `bigquery:"total_cost"`
}

// ParseBillingLocation parses "bq://project.dataset.table[?days=N]". The
// project may itself contain dots (domain-scoped projects), so the last two
// segments are taken as dataset and table.
func ParseBillingLocation(location string) (BillingTable, error) {
	if !strings.HasPrefix(location, BillingScheme) {
		return BillingTable{}, fmt.Errorf("invalid billing location: %s", location)
	}

	rest := strings.TrimPrefix(location, BillingScheme)
	var rawQuery string
	if idx := strings.Index(rest, "?"); idx >= 0 {
		rest, rawQuery = rest[:idx], rest[idx+1:]
	}

	parts := strings.Split(rest, ".")
	if len(parts) < 3 {
		return BillingTable{}, fmt.Errorf("invalid billing location (want project.dataset.table): %s", location)
	}

	bt := BillingTable{
		Project: strings.Join(parts[:len(parts)-2], "."),
		Dataset: parts[len(parts)-2],
		Table:   parts[len(parts)-1],
	}
	if !projectPattern.MatchString(bt.Project) || !namePattern.MatchString(bt.Dataset) || !namePattern.MatchString(bt.Table) {
		return BillingTable{}, fmt.Errorf("invalid billing table identifier: %s", rest)
	}

	if rawQuery != "" {
		values, err := url.ParseQuery(rawQuery)
		if err != nil {
			return BillingTable{}, fmt.Errorf("invalid billing location query %q: %w", rawQuery, err)
		}
		if days := values.Get("days"); days != "" {
			n, err := strconv.Atoi(days)
			if err != nil || n <= 0 {
				return BillingTable{}, fmt.Errorf("invalid lookback days %q", days)
			}
			bt.LookbackDays = n
		}
	}

	return bt, nil
}

// BillingExportFetcher reads daily cost totals from a Cloud Billing export
// table and renders them as billing text ("YYYY-MM-DD,$12.34" lines).
type BillingExportFetcher struct {
	client       *bigquery.Client
	lookbackDays int
}

// NewBillingExportFetcher creates a fetcher whose query jobs run in projectID.
func NewBillingExportFetcher(ctx context.Context, projectID string, lookbackDays int, opts ...option.ClientOption) (*BillingExportFetcher, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewBillingExportFetcher: creating client: %w", err)
	}
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return &BillingExportFetcher{client: client, lookbackDays: lookbackDays}, nil
}

// Close closes the BigQuery client connection.
func (f *BillingExportFetcher) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Fetch implements source.Fetcher for bq:// locations.
func (f *BillingExportFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	bt, err := ParseBillingLocation(location)
	if err != nil {
		return nil, fmt.Errorf("BillingExportFetcher.Fetch: %w", err)
	}
	if bt.LookbackDays == 0 {
		bt.LookbackDays = f.lookbackDays
	}

	rows, err := f.queryDailyCosts(ctx, bt)
	if err != nil {
		return nil, err
	}

	return []byte(RenderDailyCosts(rows)), nil
}

func (f *BillingExportFetcher) queryDailyCosts(ctx context.Context, bt BillingTable) ([]DailyCost, error) {
	q := f.client.Query(fmt.Sprintf(`
		SELECT
			DATE(usage_start_time) AS usage_date,
			SUM(cost) AS total_cost
		FROM `+"`%s.%s.%s`"+`
		WHERE usage_start_time >= TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL @lookback_days DAY)
		GROUP BY usage_date
		HAVING total_cost > 0
		ORDER BY usage_date
	`, bt.Project, bt.Dataset, bt.Table))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "lookback_days", Value: bt.LookbackDays},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("queryDailyCosts: running query: %w", err)
	}

	var rows []DailyCost
	for {
		var row DailyCost
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("queryDailyCosts: reading row: %w", err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// RenderDailyCosts formats rows as billing text with a header line.
// Non-positive totals are left out.
func RenderDailyCosts(rows []DailyCost) string {
	var b strings.Builder
	b.WriteString("Usage Date,Cost\n")
	for _, r := range rows {
		cost := decimal.NewFromFloat(r.TotalCost)
		if !cost.IsPositive() {
			continue
		}
		fmt.Fprintf(&b, "%s,$%s\n", r.UsageDate, cost.StringFixed(2))
	}
	return b.String()
}
