package runtime

import (
	"sync"

	"firestige.xyz/visionflow/internal/compiler"
	"firestige.xyz/visionflow/internal/metrics"
)

// scopeKey names one active aggregation window: a scope plus the prefix
// identifying which invocation of the scope-owning producer opened it.
type scopeKey struct {
	scope  compiler.ScopeID
	prefix string
}

// scopeTable is the per-Run aggregation scope reference-count table: a
// concurrent counted map keyed by an opaque composite key, mutated from
// many worker goroutines, drained to zero to signal closure — the same
// shape as the teacher's flow_registry.go, generalized from "flow state
// keyed by 5-tuple" to "live invocation count keyed by (scope, prefix)".
//
// Unlike flow_registry.go's sync.Map, closing a window requires an atomic
// "decrement, and if this reached zero, fire the waiting callback" step;
// sync.Map has no such compound operation, so this table uses a plain
// mutex-guarded map instead.
type scopeTable struct {
	mu      sync.Mutex
	counts  map[scopeKey]int64
	waiters map[scopeKey]func()
}

func newScopeTable() *scopeTable {
	return &scopeTable{
		counts:  make(map[scopeKey]int64),
		waiters: make(map[scopeKey]func()),
	}
}

// enter records that one new invocation was created inside scope/prefix —
// spec.md §4.3's "incremented when a value enters the scope".
func (t *scopeTable) enter(scope compiler.ScopeID, prefix string) {
	t.mu.Lock()
	key := scopeKey{scope, prefix}
	_, existed := t.counts[key]
	t.counts[key]++
	t.mu.Unlock()
	if !existed {
		metrics.ScopesActive.Inc()
	}
}

// leave records that an invocation inside scope/prefix finished — "the
// invocation that would have produced further values finishes". If the
// count reaches zero, any registered waiter fires immediately, inline.
func (t *scopeTable) leave(scope compiler.ScopeID, prefix string) error {
	t.mu.Lock()
	key := scopeKey{scope, prefix}
	t.counts[key]--
	n := t.counts[key]
	if n < 0 {
		t.mu.Unlock()
		return ErrScopeUnderflow
	}
	if n > 0 {
		t.mu.Unlock()
		return nil
	}
	delete(t.counts, key)
	waiter := t.waiters[key]
	delete(t.waiters, key)
	t.mu.Unlock()

	metrics.ScopesActive.Dec()
	if waiter != nil {
		waiter()
	}
	return nil
}

// onDrain registers fn to run as soon as scope/prefix's count reaches zero.
// If it is already at zero (or never entered), fn runs immediately.
func (t *scopeTable) onDrain(scope compiler.ScopeID, prefix string, fn func()) {
	t.mu.Lock()
	key := scopeKey{scope, prefix}
	if t.counts[key] <= 0 {
		delete(t.counts, key)
		t.mu.Unlock()
		fn()
		return
	}
	t.waiters[key] = fn
	t.mu.Unlock()
}

// size reports the number of currently-open scopes; a run only retires
// once this is zero.
func (t *scopeTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.counts)
}
