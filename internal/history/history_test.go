package history

import (
	"testing"
	"time"

	"github.com/JonMunkholm/LeadSync/internal/core"
	"github.com/JonMunkholm/LeadSync/internal/storage"
)

func openKV(t *testing.T) *storage.KV {
	t.Helper()
	kv, err := storage.Open(storage.InMemoryConfig())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func jobIDs(sums []core.Summary) []string {
	ids := make([]string, len(sums))
	for i, s := range sums {
		ids[i] = s.JobID
	}
	return ids
}

func TestStore_RecordAndList(t *testing.T) {
	s := New(openKV(t))
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"job-a", "job-b", "job-c"} {
		err := s.Record(&core.Summary{
			JobID:     id,
			FileName:  "leads.csv",
			Total:     3,
			Succeeded: i,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Errors:    []core.RowError{{Line: 3, Reason: "required field missing: name or email"}},
		})
		if err != nil {
			t.Fatalf("Record %s: %v", id, err)
		}
	}

	tests := []struct {
		name  string
		list  func() ([]core.Summary, error)
		want  []string
	}{
		{"all", func() ([]core.Summary, error) { return s.List(0) }, []string{"job-c", "job-b", "job-a"}},
		{"limited", func() ([]core.Summary, error) { return s.List(2) }, []string{"job-c", "job-b"}},
		{"since", func() ([]core.Summary, error) { return s.Since(base.Add(30 * time.Minute)) }, []string{"job-c", "job-b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.list()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			ids := jobIDs(got)
			if len(ids) != len(tt.want) {
				t.Fatalf("got %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("got %v, want %v", ids, tt.want)
					break
				}
			}
			if got[0].Errors[0].Line != 3 {
				t.Errorf("error line = %d, want 3", got[0].Errors[0].Line)
			}
		})
	}
}

func TestStore_ListEmpty(t *testing.T) {
	got, err := New(openKV(t)).List(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d summaries, want 0", len(got))
	}
}
