package hierarchy

import (
	"testing"

	"github.com/treeline-dev/treeline/internal/types"
)

// levelIndexes flattens a level into its original row indices.
func levelIndexes(l Level) []int {
	out := make([]int, len(l))
	for i, row := range l {
		out[i] = row.Index
	}
	return out
}

func TestBuildLevels(t *testing.T) {
	tests := []struct {
		name    string
		records []types.Record
		want    [][]int
	}{
		{
			name: "flat when no uids",
			records: []types.Record{
				{"summary": "a"},
				{"summary": "b"},
				{"summary": "c"},
			},
			want: [][]int{{0, 1, 2}},
		},
		{
			name: "two level parent child",
			records: []types.Record{
				{"summary": "epic", "uid": "e1"},
				{"summary": "task", "uid": "t1", "parent": "e1"},
			},
			want: [][]int{{0}, {1}},
		},
		{
			name: "unresolvable parent is a root",
			records: []types.Record{
				{"summary": "a", "uid": "e1"},
				{"summary": "b", "uid": "t1", "parent": "PROJ-123"},
				{"summary": "c", "uid": "s1", "parent": "t1"},
			},
			want: [][]int{{0, 1}, {2}},
		},
		{
			name: "depth three with interleaved input order",
			records: []types.Record{
				{"summary": "grandchild", "uid": "g", "parent": "c"},
				{"summary": "root", "uid": "r"},
				{"summary": "child", "uid": "c", "parent": "r"},
				{"summary": "second root", "uid": "r2"},
			},
			want: [][]int{{1, 3}, {2}, {0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs := mustRefs(t, tt.records)
			if err := DetectCycle(tt.records, refs); err != nil {
				t.Fatal(err)
			}
			levels, err := BuildLevels(tt.records, refs)
			if err != nil {
				t.Fatal(err)
			}
			if len(levels) != len(tt.want) {
				t.Fatalf("got %d levels, want %d", len(levels), len(tt.want))
			}
			for d, want := range tt.want {
				got := levelIndexes(levels[d])
				if len(got) != len(want) {
					t.Fatalf("level %d = %v, want %v", d, got, want)
				}
				for i := range want {
					if got[i] != want[i] {
						t.Errorf("level %d = %v, want %v", d, got, want)
						break
					}
				}
			}
		})
	}
}

func TestBuildLevelsOrderingProperty(t *testing.T) {
	// Every child's level index must be strictly greater than its parent's.
	records := []types.Record{
		{"summary": "r", "uid": "r"},
		{"summary": "a", "uid": "a", "parent": "r"},
		{"summary": "b", "uid": "b", "parent": "a"},
		{"summary": "c", "uid": "c", "parent": "r"},
		{"summary": "d", "uid": "d", "parent": "b"},
	}
	refs := mustRefs(t, records)
	if err := DetectCycle(records, refs); err != nil {
		t.Fatal(err)
	}
	levels, err := BuildLevels(records, refs)
	if err != nil {
		t.Fatal(err)
	}

	levelOf := make(map[int]int)
	for d, level := range levels {
		for _, row := range level {
			levelOf[row.Index] = d
		}
	}
	for i, rec := range records {
		parent, ok := refs.ParentUID(rec)
		if !ok {
			continue
		}
		pIdx := refs.ByUID[parent]
		if levelOf[i] <= levelOf[pIdx] {
			t.Errorf("row %d at level %d not after parent row %d at level %d",
				i, levelOf[i], pIdx, levelOf[pIdx])
		}
	}
}

func TestBuildLevelsStripsUID(t *testing.T) {
	records := []types.Record{
		{"summary": "epic", "uid": "e1"},
		{"summary": "task", "uid": "t1", "parent": "e1"},
	}
	refs := mustRefs(t, records)
	levels, err := BuildLevels(records, refs)
	if err != nil {
		t.Fatal(err)
	}
	for d, level := range levels {
		for _, row := range level {
			if _, ok := row.Record[types.FieldUID]; ok {
				t.Errorf("level %d row %d still carries uid", d, row.Index)
			}
		}
	}
	// The originals must be untouched.
	if _, ok := records[0]["uid"]; !ok {
		t.Error("input record mutated: uid removed from original")
	}
}

func TestTrackerSubstitution(t *testing.T) {
	tr := NewTracker()
	tr.RecordCreation("e1", "PROJ-1")

	rec := types.Record{"summary": "task", "parent": "e1"}
	got := tr.ReplaceUIDs(rec)
	if got[types.FieldParent] != "PROJ-1" {
		t.Errorf("parent = %v, want PROJ-1", got[types.FieldParent])
	}
	// Original untouched.
	if rec[types.FieldParent] != "e1" {
		t.Errorf("input record mutated: parent = %v", rec[types.FieldParent])
	}

	// Unknown token and real keys pass through.
	passthrough := types.Record{"summary": "x", "parent": "PROJ-77"}
	if got := tr.ReplaceUIDs(passthrough); got[types.FieldParent] != "PROJ-77" {
		t.Errorf("real key rewritten to %v", got[types.FieldParent])
	}
	noParent := types.Record{"summary": "y"}
	if got := tr.ReplaceUIDs(noParent); len(got) != 1 {
		t.Errorf("record without parent changed: %v", got)
	}
}

func TestTrackerLoadExisting(t *testing.T) {
	tr := NewTracker()
	tr.LoadExisting(map[string]string{"e1": "PROJ-1", "t1": "PROJ-2"})
	tr.RecordCreation("s1", "PROJ-3")

	m := tr.Mappings()
	want := map[string]string{"e1": "PROJ-1", "t1": "PROJ-2", "s1": "PROJ-3"}
	if len(m) != len(want) {
		t.Fatalf("mappings = %v, want %v", m, want)
	}
	for uid, key := range want {
		if m[uid] != key {
			t.Errorf("mappings[%q] = %q, want %q", uid, m[uid], key)
		}
	}

	// Mutating the copy must not leak back into the tracker.
	m["evil"] = "X-1"
	if _, ok := tr.Mappings()["evil"]; ok {
		t.Error("Mappings() returned live internal map")
	}
}
