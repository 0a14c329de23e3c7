// Package types defines the core data types shared across treeline packages:
// input records, per-row results, and the structured errors that flow from
// validation and bulk submission back to the caller.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Field names with special meaning in input records.
const (
	// FieldUID is the caller-supplied temporary identifier used for
	// cross-referencing rows within one submission. It is a control field
	// and is never sent to Jira.
	FieldUID = "uid"

	// FieldParent holds a parent reference: either another row's uid or a
	// real issue key (e.g. "PROJ-123").
	FieldParent = "parent"
)

// Record is one input row: a mapping of human-level field names to values.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// UID returns the record's temporary identifier, if present.
// Only string and number values count; anything else is treated as absent,
// as is an empty-after-trim string.
func (r Record) UID() (string, bool) {
	return stringish(r[FieldUID])
}

// Parent returns the record's parent reference, if present.
func (r Record) Parent() (string, bool) {
	return stringish(r[FieldParent])
}

// stringish coerces string and numeric field values into a trimmed string.
func stringish(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case int:
		return fmt.Sprintf("%d", t), true
	case int64:
		return fmt.Sprintf("%d", t), true
	case uint:
		return fmt.Sprintf("%d", t), true
	case uint64:
		// YAML decoders use uint64 for integers past the int64 range.
		return fmt.Sprintf("%d", t), true
	case float32:
		if t == float32(int64(t)) {
			return fmt.Sprintf("%d", int64(t)), true
		}
		return fmt.Sprintf("%v", t), true
	case float64:
		// JSON numbers decode as float64. Render integers without a
		// fractional part so uid "7" round-trips.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t)), true
		}
		return fmt.Sprintf("%v", t), true
	default:
		return "", false
	}
}

// RowError is the structured failure detail for a single row: an HTTP-ish
// status plus per-field error messages, mirroring what Jira returns for a
// rejected bulk element.
type RowError struct {
	Status   int               `json:"status"`
	Errors   map[string]string `json:"errors,omitempty"`
	Messages []string          `json:"messages,omitempty"`
}

func (e *RowError) Error() string {
	parts := append([]string(nil), e.Messages...)
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Errors[k]))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("row failed with status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, strings.Join(parts, "; "))
}

// ValidationError reports a row that failed local validation before any
// network call. Keys map to human-level input field names.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// RowError converts the validation failure into the uniform per-row error
// shape used in manifests and summaries.
func (e *ValidationError) RowError() *RowError {
	return &RowError{Status: 400, Errors: e.Fields}
}

// RowResult is one entry of a run summary: the outcome of a single original
// row, either a created issue key or a structured error.
type RowResult struct {
	Index   int       `json:"index"`
	Success bool      `json:"success"`
	Key     string    `json:"key,omitempty"`
	Err     *RowError `json:"error,omitempty"`
}
