// Package pool implements the session-scoped string intern table.
//
// Every component that references text (sheet names, cell text, formula
// source, query names) holds a dense ID into one Pool rather than the string
// itself. IDs are stable for the lifetime of a session and are serialized
// alongside the ops that borrow them.
package pool

// ID is a dense handle into a Pool. ID 0 is always the empty string.
type ID uint32

// Pool is an insertion-ordered intern table. Intern is idempotent: the same
// string always yields the same ID within a session, and IDs are never
// reused or reordered.
//
// Only the diff orchestrator may call Intern; workers receive the pool for
// Resolve-only access.
type Pool struct {
	strings []string
	index   map[string]ID
}

// New returns a pool with the empty string pre-interned as ID 0.
func New() *Pool {
	p := &Pool{
		strings: make([]string, 0, 16),
		index:   make(map[string]ID),
	}
	p.Intern("")
	return p
}

// Intern returns the ID for s, adding it to the table if unseen.
func (p *Pool) Intern(s string) ID {
	if id, ok := p.index[s]; ok {
		return id
	}
	id := ID(len(p.strings))
	p.strings = append(p.strings, s)
	p.index[s] = id
	return id
}

// Lookup returns the ID for s without interning. The second result reports
// whether s was present.
func (p *Pool) Lookup(s string) (ID, bool) {
	id, ok := p.index[s]
	return id, ok
}

// Resolve returns the string for id. Resolving an ID that was never handed
// out is a caller bug; it returns the empty string.
func (p *Pool) Resolve(id ID) string {
	if int(id) >= len(p.strings) {
		return ""
	}
	return p.strings[id]
}

// Strings returns the backing table in insertion order. The slice must not
// be mutated; it is snapshotted by sinks when writing stream headers.
func (p *Pool) Strings() []string {
	return p.strings
}

// Len returns the number of interned strings, including the empty string.
func (p *Pool) Len() int {
	return len(p.strings)
}
