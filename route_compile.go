package modhost

import (
	"fmt"
	"regexp"
	"strings"
)

// Token grammar for standard route patterns. A token occupies one path
// segment and has the form
//
//	(name:class count)  e.g.  (id:d)  (:w)  (slug:w16)  (:[a-f0-9]8)  (:a)
//
// classes: d = digits, w = word characters, a = catch-all (may span
// segments), [..] = custom character class. The optional count fixes the
// repetition length. The optional name becomes the capture name; unnamed
// tokens are captured as t1, t2, ... in declaration order.
var tokenPattern = regexp.MustCompile(`^\(([a-z][a-z0-9_]*)?:(d|w|a|\[[^\]]+\])([1-9][0-9]*)?\)$`)

// segmentMatcher matches a normalized request path against one compiled
// pattern. Literal patterns skip the regexp engine entirely.
type segmentMatcher struct {
	source  string
	literal string
	rx      *regexp.Regexp
}

func (m *segmentMatcher) match(path string) (map[string]string, bool) {
	if m.rx == nil {
		if path == m.literal {
			return nil, true
		}
		return nil, false
	}
	sub := m.rx.FindStringSubmatch(path)
	if sub == nil {
		return nil, false
	}
	names := m.rx.SubexpNames()
	params := make(map[string]string, len(names))
	for i, name := range names {
		if i == 0 || name == "" {
			continue
		}
		params[name] = sub[i]
	}
	return params, true
}

// compileRoute turns a declared pattern into a matcher plus its priority
// metadata: depth (segment count, tokens count as one segment) and the
// literal segment count used for the literal-beats-token tie-break.
func compileRoute(pattern string) (*segmentMatcher, int, int, error) {
	path := normalizePath(pattern)
	if path == "" {
		return nil, 0, 0, fmt.Errorf("%w: empty pattern", ErrInvalidRoute)
	}
	segs := splitPath(path)
	depth := len(segs)

	var sb strings.Builder
	sb.WriteString("^")
	tokenCount := 0
	literalSegs := 0
	hasToken := false
	for _, seg := range segs {
		sb.WriteString("/")
		tok := tokenPattern.FindStringSubmatch(seg)
		if tok == nil {
			if strings.ContainsAny(seg, "()") {
				return nil, 0, 0, fmt.Errorf("%w: malformed token in segment %q", ErrInvalidRoute, seg)
			}
			literalSegs++
			sb.WriteString(regexp.QuoteMeta(seg))
			continue
		}
		hasToken = true
		name, class, count := tok[1], tok[2], tok[3]
		if name == "" {
			tokenCount++
			name = fmt.Sprintf("t%d", tokenCount)
		} else {
			tokenCount++
		}
		sb.WriteString("(?P<" + name + ">")
		sb.WriteString(tokenClass(class))
		if count != "" {
			sb.WriteString("{" + count + "}")
		} else {
			sb.WriteString("+")
		}
		sb.WriteString(")")
	}
	sb.WriteString("$")

	m := &segmentMatcher{source: sb.String()}
	if !hasToken {
		m.literal = path
		return m, depth, literalSegs, nil
	}
	rx, err := regexp.Compile(m.source)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %q: %v", ErrInvalidRoute, pattern, err)
	}
	m.rx = rx
	return m, depth, literalSegs, nil
}

func tokenClass(class string) string {
	switch class {
	case "d":
		return "[0-9]"
	case "w":
		return "[A-Za-z0-9_-]"
	case "a":
		return "[^\\x00]" // catch-all, may cross segment boundaries
	default:
		return class
	}
}

// normalizePath forces a leading slash and strips a trailing slash from
// non-root paths. Query strings are not part of the routable path.
func normalizePath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

func splitPath(p string) []string {
	if p == "/" {
		return []string{""}
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}
