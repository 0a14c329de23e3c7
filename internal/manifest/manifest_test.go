package manifest

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/treeline-dev/treeline/internal/types"
)

func TestApplyRetry(t *testing.T) {
	// total:3, succeeded:[0,2], failed:[1]; retry brings row 1 to success.
	m := New("run-x", 3)
	m.RecordSuccess(0, "P-1")
	m.RecordFailure(1, &types.RowError{Status: 400, Errors: map[string]string{"summary": "required"}})
	m.RecordSuccess(2, "P-3")
	m.Normalize()
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}

	update := New("run-x", 3)
	update.RecordSuccess(1, "P-9")
	update.UIDMap["t1"] = "P-9"

	m.ApplyRetry(update)

	if want := []int{0, 1, 2}; !reflect.DeepEqual(m.Succeeded, want) {
		t.Errorf("Succeeded = %v, want %v", m.Succeeded, want)
	}
	if len(m.Failed) != 0 {
		t.Errorf("Failed = %v, want empty", m.Failed)
	}
	if m.Created[1] != "P-9" {
		t.Errorf("Created[1] = %q, want P-9", m.Created[1])
	}
	if _, ok := m.Errors[1]; ok {
		t.Error("error entry for newly-succeeded row 1 not pruned")
	}
	if m.UIDMap["t1"] != "P-9" {
		t.Errorf("UIDMap[t1] = %q, want P-9", m.UIDMap["t1"])
	}
	if err := m.Validate(); err != nil {
		t.Errorf("manifest invalid after retry merge: %v", err)
	}
}

func TestApplyRetryPartial(t *testing.T) {
	m := New("run-y", 4)
	m.RecordSuccess(0, "P-1")
	m.RecordFailure(1, &types.RowError{Status: 500})
	m.RecordFailure(2, &types.RowError{Status: 500})
	m.RecordFailure(3, &types.RowError{Status: 500})
	m.Normalize()

	// Retry fixes rows 1 and 3; row 2 fails again with fresh detail.
	update := New("run-y", 4)
	update.RecordSuccess(1, "P-5")
	update.RecordFailure(2, &types.RowError{Status: 400, Errors: map[string]string{"issuetype": "unknown"}})
	update.RecordSuccess(3, "P-6")

	m.ApplyRetry(update)

	if want := []int{0, 1, 3}; !reflect.DeepEqual(m.Succeeded, want) {
		t.Errorf("Succeeded = %v, want %v", m.Succeeded, want)
	}
	if want := []int{2}; !reflect.DeepEqual(m.Failed, want) {
		t.Errorf("Failed = %v, want %v", m.Failed, want)
	}
	if m.Errors[2].Status != 400 {
		t.Errorf("Errors[2].Status = %d, want refreshed 400", m.Errors[2].Status)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("manifest invalid after partial retry: %v", err)
	}
}

func TestApplyRetryIdempotentSuccesses(t *testing.T) {
	// A row already succeeded must never be duplicated or flipped back.
	m := New("run-z", 2)
	m.RecordSuccess(0, "P-1")
	m.RecordFailure(1, &types.RowError{Status: 500})
	m.Normalize()

	update := New("run-z", 2)
	update.RecordSuccess(0, "P-1") // redundant
	update.ApplyRetry(update)      // self-merge must be harmless too
	update.RecordFailure(1, &types.RowError{Status: 502})

	m.ApplyRetry(update)

	if want := []int{0}; !reflect.DeepEqual(m.Succeeded, want) {
		t.Errorf("Succeeded = %v, want %v", m.Succeeded, want)
	}
	if m.Errors[1].Status != 502 {
		t.Errorf("Errors[1].Status = %d, want 502", m.Errors[1].Status)
	}
}

func TestApplyRetryAfterJSONRoundTrip(t *testing.T) {
	// A run whose level-0 bulk call transport-failed stores a manifest with
	// no uid mappings; uid_map is omitted from the JSON, so loading it back
	// yields a nil UIDMap. Merging a retry that did record mappings must
	// still work.
	m := New("run-rt", 2)
	m.RecordFailure(0, &types.RowError{Status: 502, Messages: []string{"bulk call failed"}})
	m.RecordFailure(1, &types.RowError{Status: 502, Messages: []string{"bulk call failed"}})
	m.Normalize()

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var loaded Manifest
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.UIDMap != nil {
		t.Fatalf("precondition lost: UIDMap = %v, want nil after round trip", loaded.UIDMap)
	}

	update := New("run-rt", 2)
	update.RecordSuccess(0, "P-1")
	update.RecordSuccess(1, "P-2")
	update.UIDMap["e1"] = "P-1"
	update.Normalize()

	loaded.ApplyRetry(update)

	if loaded.UIDMap["e1"] != "P-1" {
		t.Errorf("UIDMap = %v, want merged e1 mapping", loaded.UIDMap)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("manifest invalid after merge: %v", err)
	}
}

func TestResults(t *testing.T) {
	m := New("run-r", 3)
	m.RecordFailure(1, &types.RowError{Status: 400})
	m.RecordSuccess(2, "P-3")
	m.RecordSuccess(0, "P-1")
	m.Normalize()

	results := m.Results()
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("results[%d].Index = %d, want sorted ascending", i, r.Index)
		}
	}
	if !results[0].Success || results[0].Key != "P-1" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Success || results[1].Err == nil {
		t.Errorf("results[1] = %+v", results[1])
	}
}

func TestValidateRejectsCorruption(t *testing.T) {
	m := New("run-bad", 2)
	m.Succeeded = []int{0}
	// No Created entry for index 0.
	if err := m.Validate(); err == nil {
		t.Error("expected invariant violation for succeeded row without key")
	}

	m2 := New("run-bad2", 2)
	m2.RecordSuccess(0, "P-1")
	m2.Failed = []int{0}
	m2.Errors[0] = &types.RowError{Status: 500}
	if err := m2.Validate(); err == nil {
		t.Error("expected invariant violation for overlapping sets")
	}
}

func TestNewRunID(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	if a == b {
		t.Fatalf("two run IDs collided: %s", a)
	}
	for _, id := range []string{a, b} {
		if len(id) != len("run-")+runIDLength {
			t.Errorf("id %q has unexpected length", id)
		}
		for _, r := range id[4:] {
			if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z') {
				t.Errorf("id %q contains non-base36 rune %q", id, r)
			}
		}
	}
}
