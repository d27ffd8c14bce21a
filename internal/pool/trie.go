package pool

import (
	"sync"

	"github.com/armon/go-radix"
)

// internedTrie is a typed wrapper around *radix.Tree, generalizing the
// teacher's deducerTrie (gps/typed_radix.go) from string->pathDeducer to
// string->StringID. It backs the Pool's forward string->id lookup; the
// reverse id->string lookup is a plain growable slice, since radix trees
// buy nothing when the key is already a dense integer.
type internedTrie struct {
	mu sync.RWMutex
	t  *radix.Tree
}

func newInternedTrie() *internedTrie {
	return &internedTrie{t: radix.New()}
}

func (t *internedTrie) get(s string) (StringID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.t.Get(s)
	if !ok {
		return NoString, false
	}
	return v.(StringID), true
}

func (t *internedTrie) insert(s string, id StringID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.t.Insert(s, id)
}

func (t *internedTrie) delete(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.t.Delete(s)
}

func (t *internedTrie) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.t.Len()
}
