package model

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// NumericIDGen hands out monotonically increasing numeric ids for Entries
// and Prompts. It is seeded once at startup from max(id)+1 observed in the
// store and never re-reads the store afterward — the invariant it upholds
// is "never reuse an id", not "always be contiguous".
type NumericIDGen struct {
	next atomic.Int64
}

// NewNumericIDGen seeds the generator so the first call to Next returns
// seedMax+1.
func NewNumericIDGen(seedMax int64) *NumericIDGen {
	g := &NumericIDGen{}
	g.next.Store(seedMax)
	return g
}

// Next returns the next unused id.
func (g *NumericIDGen) Next() int64 {
	return g.next.Add(1)
}

// Observe advances the generator past id if id is not already behind it.
// Used when a caller-provided id (e.g. an import) is higher than anything
// the generator has seen.
func (g *NumericIDGen) Observe(id int64) {
	for {
		cur := g.next.Load()
		if id <= cur {
			return
		}
		if g.next.CompareAndSwap(cur, id) {
			return
		}
	}
}

// NewOpaqueID returns a locally generated unique token for entities whose
// id is caller-provided or an opaque string (Event, TerminalCommand,
// ContextSnapshot's owner record, Todo, TodoEvent): a kind-prefixed UUIDv4,
// e.g. "evt-3f9a1c2b-...".
func NewOpaqueID(kind string) string {
	return fmt.Sprintf("%s-%s", kind, uuid.NewString())
}
