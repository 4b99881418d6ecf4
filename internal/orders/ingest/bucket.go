package ingest

// Bucket is a keyed collection holding at most one item per key while
// preserving first-insertion order. Re-adding a logically equal item replaces
// the stored instance in place.
type Bucket[T any] struct {
	key   func(T) string
	order []string
	items map[string]T
}

// NewBucket builds a bucket keyed by the supplied extraction function.
func NewBucket[T any](key func(T) string) *Bucket[T] {
	return &Bucket[T]{key: key, items: make(map[string]T)}
}

// Add upserts the item under its key.
func (b *Bucket[T]) Add(item T) {
	k := b.key(item)
	if _, exists := b.items[k]; !exists {
		b.order = append(b.order, k)
	}
	b.items[k] = item
}

// Remove drops the item with a matching key, if present.
func (b *Bucket[T]) Remove(item T) {
	k := b.key(item)
	if _, exists := b.items[k]; !exists {
		return
	}
	delete(b.items, k)
	for i, existing := range b.order {
		if existing == k {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Clear empties the bucket.
func (b *Bucket[T]) Clear() {
	b.order = b.order[:0]
	clear(b.items)
}

// Items returns the current values in insertion order.
func (b *Bucket[T]) Items() []T {
	out := make([]T, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, b.items[k])
	}
	return out
}

// Get looks an item up by key.
func (b *Bucket[T]) Get(key string) (T, bool) {
	item, ok := b.items[key]
	return item, ok
}

// Len reports the number of stored items.
func (b *Bucket[T]) Len() int {
	return len(b.items)
}
