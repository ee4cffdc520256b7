// Package source resolves an opaque location identifier to the raw bytes of
// a billing file.
package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Fetcher returns the raw content stored at location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, location string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, location string) ([]byte, error) {
	return f(ctx, location)
}

// Router dispatches to a Fetcher by URI scheme. Locations without a scheme
// are treated as "file".
type Router struct {
	fetchers map[string]Fetcher
}

// NewRouter creates a Router with the local file fetcher registered.
func NewRouter() *Router {
	r := &Router{fetchers: make(map[string]Fetcher)}
	r.Register("file", FileFetcher{})
	return r
}

// Register binds scheme (e.g. "gs", "bq") to f, replacing any previous binding.
func (r *Router) Register(scheme string, f Fetcher) {
	r.fetchers[strings.ToLower(scheme)] = f
}

// Schemes lists the registered schemes.
func (r *Router) Schemes() []string {
	schemes := make([]string, 0, len(r.fetchers))
	for s := range r.fetchers {
		schemes = append(schemes, s)
	}
	return schemes
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, location string) ([]byte, error) {
	scheme := Scheme(location)
	f, ok := r.fetchers[scheme]
	if !ok {
		return nil, fmt.Errorf("Router.Fetch: no fetcher for scheme %q in %q", scheme, location)
	}
	return f.Fetch(ctx, location)
}

// Scheme returns the lower-cased scheme of location, or "file" if it has none.
func Scheme(location string) string {
	idx := strings.Index(location, "://")
	if idx <= 0 {
		return "file"
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" {
		return strings.ToLower(location[:idx])
	}
	return strings.ToLower(u.Scheme)
}

// FileFetcher reads files from the local filesystem.
type FileFetcher struct{}

// Fetch reads "file://path" or a bare path.
func (FileFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(location, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("FileFetcher.Fetch: reading %q: %w", path, err)
	}
	return data, nil
}
