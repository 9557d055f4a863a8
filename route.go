package modhost

import (
	"sort"
	"strings"
)

// Handler is an executable unit resolved from a matched route, an API
// command binding or an event listener. Handlers receive the dispatch
// request and return an opaque result for the host program.
type Handler func(r *Request) (any, error)

// Route wraps a literal handler payload so a route can bind a closure
// directly instead of referencing a path in the module's handler
// namespace.
type Route struct {
	Handler Handler
}

// MethodSet is a set of accepted HTTP verbs. A nil or empty set accepts
// any verb.
type MethodSet map[string]struct{}

// ParseMethods parses a "GET|POST" style method list. An empty string
// or the verb "ANY" yields the any-verb set, so "ANY" round-trips with
// MethodSet.String and lets a lazy-key prefix widen an inherited
// restricted set back to any-verb.
func ParseMethods(spec string) MethodSet {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	ms := make(MethodSet)
	for _, m := range strings.Split(spec, "|") {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "ANY" {
			return nil
		}
		if m != "" {
			ms[m] = struct{}{}
		}
	}
	if len(ms) == 0 {
		return nil
	}
	return ms
}

// Allows reports whether the set accepts the given verb.
func (ms MethodSet) Allows(method string) bool {
	if len(ms) == 0 {
		return true
	}
	_, ok := ms[strings.ToUpper(method)]
	return ok
}

// Any reports whether the set accepts every verb.
func (ms MethodSet) Any() bool { return len(ms) == 0 }

func (ms MethodSet) String() string {
	if len(ms) == 0 {
		return "ANY"
	}
	verbs := make([]string, 0, len(ms))
	for m := range ms {
		verbs = append(verbs, m)
	}
	sort.Strings(verbs)
	return strings.Join(verbs, "|")
}

// RouteEntry is one compiled, matchable route. Entries are produced by
// the route compiler from standard, lazy and shadow declarations and
// matched deepest-first (see RouteTable).
type RouteEntry struct {
	// Pattern is the declared pattern, kept for inspection output.
	Pattern string
	// Methods is the accepted verb set; nil accepts any verb.
	Methods MethodSet
	// Ref is a path into the owning module's handler namespace. Empty
	// when Direct carries a literal payload.
	Ref string
	// Direct is a literal handler payload bound via a Route wrapper.
	Direct *Route
	// TargetModule and TargetRef are set on shadow entries: the match
	// resolves to TargetRef inside the named module, which also becomes
	// the execution context.
	TargetModule string
	TargetRef    string
	// Depth is the path segment count, the primary match priority.
	Depth int

	owner       *ModuleRuntime
	matcher     *segmentMatcher
	literalSegs int
	seq         int
}

// Shadow reports whether the entry proxies into another module.
func (e *RouteEntry) Shadow() bool { return e.TargetModule != "" }

// Owner returns the module runtime that registered the entry.
func (e *RouteEntry) Owner() *ModuleRuntime { return e.owner }

// Regex returns the compiled pattern in regular-expression form, for
// inspection tooling.
func (e *RouteEntry) Regex() string {
	if e.matcher == nil {
		return ""
	}
	return e.matcher.source
}
