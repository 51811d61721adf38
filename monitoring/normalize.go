package monitoring

// Upstream responses are opaque JSON; these helpers defensively extract the
// fields the loop cares about and ignore anything else, tolerating whatever
// shape a given Download daemon happens to use.

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	if m, ok := v.(map[string]any); ok {
		for _, key := range []string{"items", "slots", "queue", "history"} {
			if inner, ok := m[key]; ok {
				return asSlice(inner)
			}
		}
	}
	return nil
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func num(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// normalizeQueue converts a getQueue payload into DownloadItems.
func normalizeQueue(payload any) []DownloadItem {
	raw := asSlice(payload)
	items := make([]DownloadItem, 0, len(raw))
	for _, e := range raw {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, DownloadItem{
			ID:             str(m, "id"),
			Name:           str(m, "name"),
			Status:         DownloadStatus(str(m, "status")),
			ProgressPct:    num(m, "progressPct"),
			SizeBytes:      int64(num(m, "sizeBytes")),
			RemainingBytes: int64(num(m, "remainingBytes")),
			ETASeconds:     int64(num(m, "etaSeconds")),
			Category:       str(m, "category"),
		})
	}
	return items
}

// normalizeHistory converts a getHistory payload into failed-status slots.
func normalizeHistory(payload any) []FailedDownload {
	raw := asSlice(payload)
	failures := make([]FailedDownload, 0)
	for _, e := range raw {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if DownloadStatus(str(m, "status")) != StatusFailed {
			continue
		}
		failures = append(failures, FailedDownload{
			ID:              str(m, "id"),
			Name:            str(m, "name"),
			FailureMessage:  str(m, "failureMessage"),
			Category:        str(m, "category"),
			CompletedAtUnix: int64(num(m, "completedAtUnix")),
		})
	}
	return failures
}
