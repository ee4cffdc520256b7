package bigquery

import (
	"testing"

	"cloud.google.com/go/civil"
)

func TestParseBillingLocation(t *testing.T) {
	tests := []struct {
		name     string
		location string
		want     BillingTable
		wantErr  bool
	}{
		{
			name:     "plain table",
			location: "bq://acme-prod.billing.gcp_billing_export_v1_0123AB_CDEF45_6789GH",
			want:     BillingTable{Project: "acme-prod", Dataset: "billing", Table: "gcp_billing_export_v1_0123AB_CDEF45_6789GH"},
		},
		{
			name:     "lookback override",
			location: "bq://acme-prod.billing.export?days=30",
			want:     BillingTable{Project: "acme-prod", Dataset: "billing", Table: "export", LookbackDays: 30},
		},
		{
			name:     "domain scoped project",
			location: "bq://example.com:acme.billing.export",
			want:     BillingTable{Project: "example.com:acme", Dataset: "billing", Table: "export"},
		},
		{name: "wrong scheme", location: "gs://bucket/file.csv", wantErr: true},
		{name: "missing table", location: "bq://acme-prod.billing", wantErr: true},
		{name: "injection attempt", location: "bq://acme-prod.billing.export` WHERE 1=1 --", wantErr: true},
		{name: "bad days", location: "bq://acme-prod.billing.export?days=-4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBillingLocation(tt.location)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBillingLocation() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseBillingLocation() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRenderDailyCosts(t *testing.T) {
	rows := []DailyCost{
		{UsageDate: civil.Date{Year: 2024, Month: 1, Day: 1}, TotalCost: 12.345},
		{UsageDate: civil.Date{Year: 2024, Month: 1, Day: 2}, TotalCost: 0},
		{UsageDate: civil.Date{Year: 2024, Month: 1, Day: 3}, TotalCost: 1000.1},
	}

	got := RenderDailyCosts(rows)

	want := "Usage Date,Cost\n2024-01-01,$12.35\n2024-01-03,$1000.10\n"
	if got != want {
		t.Errorf("RenderDailyCosts() = %q, want %q", got, want)
	}
}
