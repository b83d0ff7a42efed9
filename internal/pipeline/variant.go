// Package pipeline derives everything the dashboard renders from an
// analytics snapshot and the current filter controls. All functions are pure:
// they never mutate the snapshot and keep no state between calls.
package pipeline

import "fmt"

// Variant selects which of the two dashboard configurations is being served.
// Both share the data model but differ in small, deliberate ways.
type Variant string

const (
	// VariantConsolidated is the filterable dashboard: one video list derived
	// from topVideos with sort/platform/pagination controls.
	VariantConsolidated Variant = "consolidated"
	// VariantSecondary renders topVideos and topEngagement as two independently
	// truncated lists with no filtering.
	VariantSecondary Variant = "secondary"
)

// ErrorPolicy decides what happens to the displayed snapshot when a refresh fails.
type ErrorPolicy string

const (
	// KeepStale leaves the previous snapshot in place.
	KeepStale ErrorPolicy = "keep_stale"
	// ClearOnError drops the snapshot so the error replaces the content.
	ClearOnError ErrorPolicy = "clear"
)

// ParseVariant validates a configured variant name.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantConsolidated:
		return VariantConsolidated, nil
	case VariantSecondary:
		return VariantSecondary, nil
	}
	return "", fmt.Errorf("unknown dashboard variant %q", s)
}

// ParseErrorPolicy validates a configured error policy. An empty value means
// the variant's default.
func ParseErrorPolicy(s string, v Variant) (ErrorPolicy, error) {
	switch ErrorPolicy(s) {
	case "":
		return v.DefaultErrorPolicy(), nil
	case KeepStale, ClearOnError:
		return ErrorPolicy(s), nil
	}
	return "", fmt.Errorf("unknown error policy %q", s)
}

// HasMinutesTier reports whether relative ages below one hour are reported in
// minutes. The consolidated dashboard jumps straight from hours to "just now".
func (v Variant) HasMinutesTier() bool {
	return v == VariantSecondary
}

// DefaultErrorPolicy mirrors how each dashboard behaved on a failed load.
func (v Variant) DefaultErrorPolicy() ErrorPolicy {
	if v == VariantSecondary {
		return ClearOnError
	}
	return KeepStale
}
