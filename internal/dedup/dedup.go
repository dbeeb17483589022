// Package dedup decides whether a posting has been seen before.
package dedup

import (
	"context"
	"fmt"
	"strings"
)

// NormalizeURL trims surrounding spaces, drops the query string and removes one
// trailing slash. Nothing else is touched, so two different listings never collapse
// into the same key.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if idx := strings.Index(u, "?"); idx != -1 {
		u = u[:idx]
	}
	return strings.TrimSuffix(u, "/")
}

type lookup interface {
	PostingExists(ctx context.Context, url string) (bool, error)
}

// Gate checks normalized urls against the record store.
type Gate struct {
	store lookup
}

func NewGate(store lookup) *Gate {
	return &Gate{store: store}
}

// Exists performs a single point lookup by normalized url.
func (g *Gate) Exists(ctx context.Context, url string) (bool, error) {
	key := NormalizeURL(url)
	if key == "" {
		return false, fmt.Errorf("empty url")
	}

	exists, err := g.store.PostingExists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("dedup lookup %q: %w", key, err)
	}
	return exists, nil
}

// LooseMatch finds the first candidate url that matches url after normalization,
// either exactly or as a substring in either direction. It serves lookups coming
// from a browser page, where the address often carries extra path segments.
// Ingestion never uses it.
func LooseMatch(url string, candidates []string) (string, bool) {
	needle := NormalizeURL(url)
	if needle == "" {
		return "", false
	}

	for _, candidate := range candidates {
		if NormalizeURL(candidate) == needle {
			return candidate, true
		}
	}

	for _, candidate := range candidates {
		normalized := NormalizeURL(candidate)
		if normalized == "" {
			continue
		}
		if strings.Contains(needle, normalized) || strings.Contains(normalized, needle) {
			return candidate, true
		}
	}
	return "", false
}
