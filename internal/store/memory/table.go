package memory

// table is a versioned key-indexed collection. Every put bumps the row
// version, which makes stale reads detectable by callers that care. It does
// no locking of its own - the Ledger serializes access to all its tables
// under a single lock so that multi-table transitions stay atomic.
type table[K comparable, V any] struct {
	rows map[K]*row[V]
}

type row[V any] struct {
	value   V
	version uint64
}

func newTable[K comparable, V any]() *table[K, V] {
	return &table[K, V]{
		rows: make(map[K]*row[V]),
	}
}

// get returns the value for key, if present.
func (t *table[K, V]) get(key K) (V, bool) {
	r, ok := t.rows[key]
	if !ok {
		var zero V
		return zero, false
	}
	return r.value, true
}

// put inserts or replaces the value for key, bumping the row version.
func (t *table[K, V]) put(key K, value V) {
	if r, ok := t.rows[key]; ok {
		r.value = value
		r.version++
		return
	}
	t.rows[key] = &row[V]{value: value, version: 1}
}

// remove deletes the row for key, reporting whether it existed.
func (t *table[K, V]) remove(key K) bool {
	if _, ok := t.rows[key]; !ok {
		return false
	}
	delete(t.rows, key)
	return true
}

// has reports whether a row exists for key.
func (t *table[K, V]) has(key K) bool {
	_, ok := t.rows[key]
	return ok
}

// version returns the current row version for key, zero if absent.
func (t *table[K, V]) version(key K) uint64 {
	r, ok := t.rows[key]
	if !ok {
		return 0
	}
	return r.version
}

// each calls fn for every row in the table, in unspecified order.
func (t *table[K, V]) each(fn func(key K, value V)) {
	for k, r := range t.rows {
		fn(k, r.value)
	}
}

// size returns the number of rows in the table.
func (t *table[K, V]) size() int {
	return len(t.rows)
}
