package telemetry

import (
	"context"
	"maps"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelOperation = "operation"
	ProfilingLabelSyncKind  = "sync_kind"
	ProfilingLabelTrigger   = "trigger"
	ProfilingLabelScope     = "scope"
)

// MaxLabelValueLength caps label values to keep profile series bounded
const MaxLabelValueLength = 128

// highCardinalityLabels are dropped from profiling labels. Per-ID values
// belong in traces and logs, not in profile series.
var highCardinalityLabels = map[string]bool{
	"request_id":     true,
	"job_id":         true,
	"supplier_id":    true,
	"reservation_id": true,
	"trace_id":       true,
	"span_id":        true,
}

// WithProfilingLabels runs fn with pprof labels attached so Pyroscope can
// slice CPU and allocation profiles by them. labels is copied.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(maps.Clone(labels))
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// SyncJobLabels labels a sync job. scope is "all" for a fan-out across
// every active supplier and "supplier" for a single one.
func SyncJobLabels(kind, trigger string, allSuppliers bool) map[string]string {
	scope := "supplier"
	if allSuppliers {
		scope = "all"
	}
	return map[string]string{
		ProfilingLabelOperation: "supply_sync",
		ProfilingLabelSyncKind:  kind,
		ProfilingLabelTrigger:   trigger,
		ProfilingLabelScope:     scope,
	}
}

// sanitizeLabels returns sorted key/value pairs with empty, oversized and
// high-cardinality entries handled
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || highCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		sanitized := sanitizeLabelKey(key)
		if sanitized == "" {
			continue
		}
		pairs = append(pairs, sanitized, value)
	}
	return pairs
}

// sanitizeLabelKey lowercases key and keeps only [a-z0-9_]
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)

	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
