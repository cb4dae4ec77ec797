package cache

import (
	"strings"

	"trip-assignment-service/internal/domain"
)

// sqliteChunk keeps row-value lookups well under SQLite's bind limit.
const sqliteChunk = 400

func uniqPairs(keys []domain.PairKey) []domain.PairKey {
	seen := make(map[domain.PairKey]struct{}, len(keys))
	out := make([]domain.PairKey, 0, len(keys))
	for _, k := range keys {
		if k.From == "" || k.To == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func uniqCodes(codes []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func chunks[T any](xs []T, n int) [][]T {
	var out [][]T
	for start := 0; start < len(xs); start += n {
		out = append(out, xs[start:min(start+n, len(xs))])
	}
	return out
}

func validProvenance(p domain.Provenance) bool {
	return p == domain.ProvenanceMeasured || p == domain.ProvenanceEstimated
}
