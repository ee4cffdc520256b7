package gcs

import (
	"fmt"
	"path"
	"strings"
)

// Scheme is the URI scheme for Cloud Storage objects.
const Scheme = "gs://"

// ParseURI splits "gs://bucket/path/to/object" into bucket and object name.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, Scheme) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	trimmed := strings.TrimPrefix(uri, Scheme)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}

	return parts[0], parts[1], nil
}

// BuildURI is the inverse of ParseURI.
func BuildURI(bucket, object string) string {
	return Scheme + bucket + "/" + strings.TrimPrefix(object, "/")
}

// ExtractFilenameFromURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/file.csv" → "file.csv"
func ExtractFilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, Scheme)

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}
