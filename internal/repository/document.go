package repository

import (
	"time"

	"github.com/mesa-ayuda/helpdesk-service/internal/store"
)

// legacyDateLayout is the es-AR short date written by earlier revisions.
const legacyDateLayout = "2/1/2006"

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime accepts RFC 3339 and legacy short dates. Unparseable values
// yield the zero time.
func parseTime(item store.Item, attr string) time.Time {
	raw := item.String(attr)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, legacyDateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseTimePtr(item store.Item, attr string) *time.Time {
	t := parseTime(item, attr)
	if t.IsZero() {
		return nil
	}
	return &t
}

func boolAttr(item store.Item, attr string, fallback bool) bool {
	v, ok := item[attr].(bool)
	if !ok {
		return fallback
	}
	return v
}
