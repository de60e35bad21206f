// Package batch collapses repeated external IDs and splits them into bounded lookup batches.
package batch

import "strings"

// Dedupe returns the distinct, non-empty IDs of ids. Callers may only rely on
// uniqueness; the current implementation happens to keep first-seen order.
func Dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Split partitions ids into ceil(len(ids)/size) batches of at most size entries.
// The last batch may be short. A non-positive size yields a single batch.
func Split(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	if size <= 0 || size >= len(ids) {
		return [][]string{ids}
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end:end])
	}
	return out
}
