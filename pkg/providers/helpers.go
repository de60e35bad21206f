package providers

import (
	"context"
	"strings"
)

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

// filterSeen drops IDs already ingested by an earlier run. Cache failures are logged and
// treated as "not seen" so a broken cache never hides new videos.
func filterSeen(ctx context.Context, seen SeenFunc, ids []string, log Logger) (pending []string, cached int) {
	if seen == nil {
		return ids, 0
	}
	pending = make([]string, 0, len(ids))
	for _, id := range ids {
		ok, err := seen(ctx, id)
		if err != nil {
			log.WarnObj("seen cache lookup failed", "error", map[string]any{"external_id": id, "error": err.Error()})
		}
		if ok && err == nil {
			cached++
			continue
		}
		pending = append(pending, id)
	}
	return pending, cached
}
