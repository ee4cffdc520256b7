package gcs

import (
	"context"
	"testing"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "nested object",
			uri:        "gs://bills/2024/01/aws.csv",
			wantBucket: "bills",
			wantObject: "2024/01/aws.csv",
		},
		{
			name:       "top level object",
			uri:        "gs://bills/aws.txt",
			wantBucket: "bills",
			wantObject: "aws.txt",
		},
		{name: "wrong scheme", uri: "s3://bills/aws.csv", wantErr: true},
		{name: "bucket only", uri: "gs://bills", wantErr: true},
		{name: "empty object", uri: "gs://bills/", wantErr: true},
		{name: "empty bucket", uri: "gs:///aws.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestBuildURI(t *testing.T) {
	if got := BuildURI("bills", "/2024/aws.csv"); got != "gs://bills/2024/aws.csv" {
		t.Errorf("BuildURI() = %q", got)
	}
}

func TestExtractFilenameFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/folder/file.csv", "file.csv"},
		{"gs://bucket/file.txt", "file.txt"},
		{"gs://bucket", "bucket"},
	}

	for _, tt := range tests {
		if got := ExtractFilenameFromURI(tt.uri); got != tt.want {
			t.Errorf("ExtractFilenameFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestFetch_InvalidURI(t *testing.T) {
	s := &Service{}

	if _, err := s.Fetch(context.Background(), "https://example.com/bill.csv"); err == nil {
		t.Error("Expected error for non-gs URI, got nil")
	}
}
