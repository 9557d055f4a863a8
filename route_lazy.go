package modhost

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lazy is an ordered nested route declaration. Each key is either a path
// segment, a method-prefixed segment ("GET|POST admin"), or the reserved
// key "@self" binding a handler at the current tree depth. A method
// prefix applies to the key's entire subtree unless a descendant key
// carries its own prefix, which overrides it for that branch only.
//
//	modhost.Lazy{
//		{"GET|POST users", modhost.Lazy{
//			{"@self", "users/index"},
//			{"(id:d)", "users/edit"},
//			{"DELETE (id:d)/purge", "users/purge"},
//		}},
//	}
type Lazy []LazyPair

// LazyPair is one key/value pair of a Lazy tree. The value is a nested
// Lazy (or map), a handler reference string, or a *Route literal.
type LazyPair struct {
	Key   string
	Value any
}

type lazyLeaf struct {
	pattern string
	methods MethodSet
	ref     string
	direct  *Route
}

// compileLazy walks a lazy tree depth-first, concatenating segments and
// propagating the active method set downward, and returns one leaf per
// handler binding in declaration order.
func compileLazy(base string, methods MethodSet, tree any, out *[]lazyLeaf) error {
	pairs, err := lazyPairs(tree)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		seg, ms, isSelf, err := parseLazyKey(p.Key, methods)
		if err != nil {
			return err
		}
		if isSelf {
			if err := emitLazyLeaf(base, ms, p.Value, out); err != nil {
				return err
			}
			continue
		}
		path := base + "/" + seg
		switch v := p.Value.(type) {
		case string, *Route, Handler, func(*Request) (any, error):
			if err := emitLazyLeaf(path, ms, v, out); err != nil {
				return err
			}
		default:
			if err := compileLazy(path, ms, p.Value, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func emitLazyLeaf(pattern string, ms MethodSet, value any, out *[]lazyLeaf) error {
	leaf := lazyLeaf{pattern: normalizePath(pattern), methods: ms}
	switch v := value.(type) {
	case string:
		if v == "" {
			return fmt.Errorf("%w: at %q", ErrEmptyHandlerRef, pattern)
		}
		leaf.ref = v
	case *Route:
		leaf.direct = v
	case Handler:
		leaf.direct = &Route{Handler: v}
	case func(*Request) (any, error):
		leaf.direct = &Route{Handler: v}
	default:
		return fmt.Errorf("%w: leaf at %q has unsupported value %T", ErrInvalidLazyRoute, pattern, value)
	}
	*out = append(*out, leaf)
	return nil
}

// parseLazyKey splits an optional method prefix from the segment part of
// a lazy key. The inherited method set is returned unchanged when the key
// carries no prefix of its own.
func parseLazyKey(key string, inherited MethodSet) (seg string, ms MethodSet, isSelf bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil, false, fmt.Errorf("%w: empty key", ErrInvalidLazyRoute)
	}
	ms = inherited
	if i := strings.IndexByte(key, ' '); i >= 0 {
		prefix, rest := key[:i], strings.TrimSpace(key[i+1:])
		if !isMethodPrefix(prefix) {
			return "", nil, false, fmt.Errorf("%w: key %q: %q is not a method prefix", ErrInvalidLazyRoute, key, prefix)
		}
		ms = ParseMethods(prefix)
		key = rest
	}
	if key == "@self" {
		return "", ms, true, nil
	}
	if strings.HasPrefix(key, "@") {
		return "", nil, false, fmt.Errorf("%w: unknown directive %q", ErrInvalidLazyRoute, key)
	}
	return strings.Trim(key, "/"), ms, false, nil
}

func isMethodPrefix(s string) bool {
	for _, part := range strings.Split(s, "|") {
		switch strings.ToUpper(strings.TrimSpace(part)) {
		case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS", "ANY":
		default:
			return false
		}
	}
	return true
}

// lazyPairs normalizes the supported tree node representations into an
// ordered pair slice. Go maps have no declaration order, so their keys
// are walked in sorted order; use the Lazy type or a YAML mapping when
// registration order must break match-priority ties.
func lazyPairs(tree any) ([]LazyPair, error) {
	switch t := tree.(type) {
	case Lazy:
		return t, nil
	case []LazyPair:
		return t, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]LazyPair, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, LazyPair{Key: k, Value: t[k]})
		}
		return pairs, nil
	case *yaml.Node:
		return lazyPairsFromYAML(t)
	case yaml.Node:
		return lazyPairsFromYAML(&t)
	default:
		return nil, fmt.Errorf("%w: unsupported tree node %T", ErrInvalidLazyRoute, tree)
	}
}

// lazyPairsFromYAML converts a YAML mapping node into ordered pairs.
// YAML mappings preserve declaration order, so trees parsed from module
// declaration files keep their tie-break order exactly.
func lazyPairsFromYAML(n *yaml.Node) ([]LazyPair, error) {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: expected mapping, got yaml kind %d", ErrInvalidLazyRoute, n.Kind)
	}
	pairs := make([]LazyPair, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		switch v.Kind {
		case yaml.ScalarNode:
			pairs = append(pairs, LazyPair{Key: k.Value, Value: v.Value})
		case yaml.MappingNode:
			pairs = append(pairs, LazyPair{Key: k.Value, Value: v})
		default:
			return nil, fmt.Errorf("%w: key %q has unsupported yaml value", ErrInvalidLazyRoute, k.Value)
		}
	}
	return pairs, nil
}
