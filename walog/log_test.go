package walog

import "testing"

type memSecondary struct {
	m map[int]string
}

func newMemSecondary() *memSecondary { return &memSecondary{m: make(map[int]string)} }

func (s *memSecondary) Put(k int, v string) error { s.m[k] = v; return nil }
func (s *memSecondary) Get(k int) (string, bool, error) {
	v, ok := s.m[k]
	return v, ok, nil
}
func (s *memSecondary) Remove(k int) error { delete(s.m, k); return nil }
func (s *memSecondary) Clear() error       { s.m = make(map[int]string); return nil }
func (s *memSecondary) Iter(fn func(int, string) bool) error {
	for k, v := range s.m {
		if !fn(k, v) {
			return nil
		}
	}
	return nil
}

func TestLogPutGetRemove(t *testing.T) {
	l := New[int, string](0, nil)
	l.Put(1, "a")
	v, ok, err := l.Get(1)
	if err != nil || !ok || v != "a" {
		t.Fatalf("expected to read back staged entry, got %q ok=%v err=%v", v, ok, err)
	}
	l.Remove(1)
	if _, ok, _ := l.Get(1); ok {
		t.Fatalf("expected entry to be gone after Remove")
	}
}

func TestLogToSecondaryFlushesAndBoundsMemory(t *testing.T) {
	sec := newMemSecondary()
	l := New[int, string](2, sec)
	l.Put(1, "a")
	l.Put(2, "b")
	l.Put(3, "c")
	if !l.OverThreshold() {
		t.Fatalf("expected threshold of 2 to be exceeded by 3 entries")
	}
	if err := l.ToSecondary(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("expected memory to be empty after ToSecondary, got %d entries", l.Len())
	}
	v, ok, err := l.Get(1)
	if err != nil || !ok || v != "a" {
		t.Fatalf("expected Get to fall back to the secondary store, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestLogRemoveShadowsSecondaryEntry(t *testing.T) {
	sec := newMemSecondary()
	sec.m[1] = "stale"
	l := New[int, string](0, sec)
	l.Remove(1)
	if _, ok, _ := l.Get(1); ok {
		t.Fatalf("a Remove recorded in this log must shadow a stale secondary entry")
	}
}

func TestLogIterMergesSecondaryAndMemory(t *testing.T) {
	sec := newMemSecondary()
	sec.m[1] = "from-disk"
	sec.m[2] = "overwritten-on-disk"
	l := New[int, string](0, sec)
	l.Put(2, "from-memory")
	l.Put(3, "new-in-memory")

	seen := map[int]string{}
	if err := l.Iter(func(k int, v string) bool {
		seen[k] = v
		return true
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[int]string{1: "from-disk", 2: "from-memory", 3: "new-in-memory"}
	if len(seen) != len(want) {
		t.Fatalf("expected %d merged entries, got %d: %v", len(want), len(seen), seen)
	}
	for k, v := range want {
		if seen[k] != v {
			t.Fatalf("key %d: expected %q, got %q", k, v, seen[k])
		}
	}
}

func TestLogClearDeletesMemoryAndSecondary(t *testing.T) {
	sec := newMemSecondary()
	l := New[int, string](0, sec)
	l.Put(1, "a")
	if err := l.ToSecondary(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Put(2, "b")
	if err := l.Clear(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("expected memory cleared")
	}
	if _, ok, _ := l.Get(1); ok {
		t.Fatalf("expected secondary store cleared too")
	}
}
