package ingest

import (
	"testing"
)

type entry struct {
	key   string
	value int
}

func newEntryBucket() *Bucket[entry] {
	return NewBucket(func(e entry) string { return e.key })
}

func TestBucketAdd(t *testing.T) {
	t.Run("keeps one item per key", func(t *testing.T) {
		b := newEntryBucket()
		b.Add(entry{key: "a", value: 1})
		b.Add(entry{key: "b", value: 2})
		b.Add(entry{key: "a", value: 3})

		if b.Len() != 2 {
			t.Fatalf("Len() = %d, want 2", b.Len())
		}
		got, ok := b.Get("a")
		if !ok || got.value != 3 {
			t.Errorf("Get(a) = %+v, %v, want value 3", got, ok)
		}
	})

	t.Run("preserves first-insertion order across replacement", func(t *testing.T) {
		b := newEntryBucket()
		b.Add(entry{key: "a", value: 1})
		b.Add(entry{key: "b", value: 2})
		b.Add(entry{key: "c", value: 3})
		b.Add(entry{key: "a", value: 9})

		items := b.Items()
		keys := make([]string, len(items))
		for i, item := range items {
			keys[i] = item.key
		}
		want := []string{"a", "b", "c"}
		for i := range want {
			if keys[i] != want[i] {
				t.Fatalf("Items() order = %v, want %v", keys, want)
			}
		}
	})
}

func TestBucketRemove(t *testing.T) {
	b := newEntryBucket()
	b.Add(entry{key: "a", value: 1})
	b.Add(entry{key: "b", value: 2})

	b.Remove(entry{key: "a"})
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}
	if _, ok := b.Get("a"); ok {
		t.Error("removed key still present")
	}

	// Removing a missing key is a no-op.
	b.Remove(entry{key: "missing"})
	if b.Len() != 1 {
		t.Errorf("Len() = %d after no-op remove, want 1", b.Len())
	}
}

func TestBucketClear(t *testing.T) {
	b := newEntryBucket()
	b.Add(entry{key: "a", value: 1})
	b.Add(entry{key: "b", value: 2})

	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("Len() = %d after Clear, want 0", b.Len())
	}
	if items := b.Items(); len(items) != 0 {
		t.Errorf("Items() = %v after Clear, want empty", items)
	}

	b.Add(entry{key: "c", value: 3})
	if b.Len() != 1 {
		t.Errorf("Len() = %d after re-add, want 1", b.Len())
	}
}
