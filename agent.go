package modhost

import (
	"fmt"
	"strings"
)

// Agent is the configuration surface handed to a module's controller
// during the Init and Load phases. All registration operations are
// sealed once the Load barrier completes; calling one afterwards is a
// lifecycle invariant violation and panics. Read-only operations
// (Handshake, Logger) stay valid for the life of the site.
type Agent struct {
	d      *Distributor
	rt     *ModuleRuntime
	sealed bool
}

func (a *Agent) ensureOpen(op string) {
	if a.sealed {
		panic(fmt.Sprintf("modhost: %s called on sealed agent of %s", op, a.rt.Code()))
	}
}

// Module returns the runtime the agent configures.
func (a *Agent) Module() *ModuleRuntime { return a.rt }

// Logger returns the site logger.
func (a *Agent) Logger() Logger { return a.d.log }

// AddRoute registers a standard route. The methods spec is a "GET|POST"
// style list; empty accepts any verb. The handler is a reference path
// into the module's handler namespace or a *Route literal.
func (a *Agent) AddRoute(pattern, methods string, handler any) error {
	a.ensureOpen("AddRoute")
	e, err := a.buildEntry(pattern, ParseMethods(methods), handler)
	if err != nil {
		return err
	}
	a.rt.routes = append(a.rt.routes, e)
	return nil
}

// AddLazyRoute compiles a nested route tree rooted at base and registers
// every resulting entry. Method prefixes on tree keys propagate to their
// subtree unless overridden by a descendant key.
func (a *Agent) AddLazyRoute(base string, tree any) error {
	a.ensureOpen("AddLazyRoute")
	var leaves []lazyLeaf
	if err := compileLazy(strings.TrimRight(base, "/"), nil, tree, &leaves); err != nil {
		return err
	}
	entries := make([]*RouteEntry, 0, len(leaves))
	for _, leaf := range leaves {
		var handler any
		if leaf.direct != nil {
			handler = leaf.direct
		} else {
			handler = leaf.ref
		}
		e, err := a.buildEntry(leaf.pattern, leaf.methods, handler)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	a.rt.routes = append(a.rt.routes, entries...)
	return nil
}

// AddScript registers a non-HTTP, command-line-style route. Scripts are
// matched separately from web routes, with an implicit any-verb set.
func (a *Agent) AddScript(pattern string, handler any) error {
	a.ensureOpen("AddScript")
	e, err := a.buildEntry(pattern, nil, handler)
	if err != nil {
		return err
	}
	a.rt.scripts = append(a.rt.scripts, e)
	return nil
}

// AddShadowRoute registers a path in this module that resolves to a
// handler owned by a different, named module. At dispatch time the
// proxied handler executes with the target module as context. A module
// cannot shadow itself.
func (a *Agent) AddShadowRoute(pattern, targetModule, targetRef string) error {
	a.ensureOpen("AddShadowRoute")
	if targetModule == a.rt.Code() {
		return fmt.Errorf("%w: %s", ErrSelfShadow, targetModule)
	}
	if targetRef == "" {
		return fmt.Errorf("%w: shadow at %q", ErrEmptyHandlerRef, pattern)
	}
	matcher, depth, lits, err := compileRoute(pattern)
	if err != nil {
		return err
	}
	a.rt.routes = append(a.rt.routes, &RouteEntry{
		Pattern:      normalizePath(pattern),
		TargetModule: targetModule,
		TargetRef:    targetRef,
		Depth:        depth,
		owner:        a.rt,
		matcher:      matcher,
		literalSegs:  lits,
	})
	return nil
}

// AddAPICommand registers a named API command. A leading "#" on the name
// additionally binds the command as a direct call on the module itself;
// the prefix is declaration syntax only and both bindings are explicit
// map entries.
func (a *Agent) AddAPICommand(declared string, h APIHandler) error {
	a.ensureOpen("AddAPICommand")
	name, internal := parseCommandName(declared)
	if name == "" {
		return fmt.Errorf("%w: empty command name", ErrUnknownCommand)
	}
	if _, exists := a.rt.commands[name]; exists {
		return fmt.Errorf("%w: %s on %s", ErrDuplicateCommand, name, a.rt.Code())
	}
	cmd := &APICommand{Name: name, Handler: h, Internal: internal}
	a.rt.commands[name] = cmd
	if internal {
		a.rt.self[name] = cmd
	}
	return nil
}

// Listen registers an event listener. Registration always succeeds; the
// return value reports whether the event's owning module (the code
// before the ":" in the event name) is currently loaded. Events without
// an owner prefix report true.
func (a *Agent) Listen(event string, handler any) bool {
	a.ensureOpen("Listen")
	reg := listenerReg{}
	switch h := handler.(type) {
	case string:
		reg.ref = h
	case *Route:
		reg.direct = h
	case Handler:
		reg.direct = &Route{Handler: h}
	case func(*Request) (any, error):
		reg.direct = &Route{Handler: h}
	default:
		panic(fmt.Sprintf("modhost: Listen handler must be a reference or Route, got %T", handler))
	}
	a.rt.listeners[event] = append(a.rt.listeners[event], reg)

	owner, _, hasOwner := strings.Cut(event, ":")
	if !hasOwner {
		return true
	}
	return a.d.Handshake(owner)
}

// Await enqueues a callback on the site's dependency coordinator. The
// callback fires once, after every module completes the Load phase, in
// FIFO registration order, whether or not the target module loaded.
func (a *Agent) Await(target string, cb AwaitCallback) {
	a.ensureOpen("Await")
	a.d.coord.EnqueueAwait(target, cb)
}

// Handshake reports whether a named module is currently loaded. Valid
// at any time, including after the agent is sealed.
func (a *Agent) Handshake(code string) bool {
	return a.d.Handshake(code)
}

func (a *Agent) buildEntry(pattern string, ms MethodSet, handler any) (*RouteEntry, error) {
	matcher, depth, lits, err := compileRoute(pattern)
	if err != nil {
		return nil, err
	}
	e := &RouteEntry{
		Pattern:     normalizePath(pattern),
		Methods:     ms,
		Depth:       depth,
		owner:       a.rt,
		matcher:     matcher,
		literalSegs: lits,
	}
	switch h := handler.(type) {
	case string:
		if h == "" {
			return nil, fmt.Errorf("%w: at %q", ErrEmptyHandlerRef, pattern)
		}
		e.Ref = h
	case *Route:
		e.Direct = h
	case Handler:
		e.Direct = &Route{Handler: h}
	case func(*Request) (any, error):
		e.Direct = &Route{Handler: h}
	default:
		return nil, fmt.Errorf("%w: handler for %q has unsupported type %T", ErrInvalidRoute, pattern, handler)
	}
	return e, nil
}
