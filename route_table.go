package modhost

import (
	"fmt"
	"sort"
)

// RouteTable is an ordered, matchable route index. During the lifecycle
// phases each module runtime owns a private slice of entries; after the
// Require/Ready barrier the Distributor merges them into one table and
// freezes it. A frozen table is immutable and safe to match against for
// the rest of the site's life.
type RouteTable struct {
	entries []*RouteEntry
	frozen  bool
	seq     int
}

// NewRouteTable returns an empty, unfrozen table.
func NewRouteTable() *RouteTable {
	return &RouteTable{}
}

func (t *RouteTable) add(e *RouteEntry) {
	if t.frozen {
		panic("modhost: route added to frozen table")
	}
	t.seq++
	e.seq = t.seq
	t.entries = append(t.entries, e)
}

// freeze orders the table for matching: depth descending, then literal
// segment count descending (an exact literal outranks a token pattern of
// equal depth), then registration order. The sort is stable so equal
// entries keep their declaration order.
func (t *RouteTable) freeze() {
	sort.SliceStable(t.entries, func(i, j int) bool {
		a, b := t.entries[i], t.entries[j]
		if a.Depth != b.Depth {
			return a.Depth > b.Depth
		}
		if a.literalSegs != b.literalSegs {
			return a.literalSegs > b.literalSegs
		}
		return a.seq < b.seq
	})
	t.frozen = true
}

// Entries returns the entries in match-priority order. The slice is
// shared; callers must not mutate it.
func (t *RouteTable) Entries() []*RouteEntry {
	return t.entries
}

// Match is one matched route entry plus its captured token values.
type Match struct {
	Entry  *RouteEntry
	Params map[string]string
}

// Match resolves a path and verb against the table. The winner is the
// highest-priority entry whose pattern matches the path and whose method
// set accepts the verb. A pattern match with a rejected verb does not
// silently fall through: if no acceptable entry exists the result is
// ErrMethodNotAllowed rather than ErrRouteNotFound.
func (t *RouteTable) Match(path, method string) (*Match, error) {
	if !t.frozen {
		return nil, ErrSiteNotReady
	}
	path = normalizePath(path)
	verbRejected := false
	for _, e := range t.entries {
		params, ok := e.matcher.match(path)
		if !ok {
			continue
		}
		if !e.Methods.Allows(method) {
			verbRejected = true
			continue
		}
		return &Match{Entry: e, Params: params}, nil
	}
	if verbRejected {
		return nil, fmt.Errorf("%w: %s %s", ErrMethodNotAllowed, method, path)
	}
	return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, path)
}
