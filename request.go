package modhost

import (
	"fmt"
)

// Request is the execution context handed to a dispatched handler. The
// module it carries is the one whose state and bindings apply: for
// shadow routes that is the target module, not the registering one.
type Request struct {
	// ID is a unique identifier for this dispatch.
	ID string
	// Site is the owning site's identifier.
	Site string
	// Path and Method are the dispatched query. Both are empty for API
	// command and event-listener invocations.
	Path   string
	Method string
	// Params holds the named token captures of the matched route.
	Params map[string]string
	// Args holds script arguments for script dispatches.
	Args []string
	// Event is set when the handler runs as an event listener.
	Event *Event

	mod *ModuleRuntime
	d   *Distributor
}

// Module returns the runtime the handler executes in.
func (r *Request) Module() *ModuleRuntime { return r.mod }

// Descriptor returns the executing module's metadata.
func (r *Request) Descriptor() *Descriptor { return r.mod.descriptor }

// Param returns one captured token value, or "".
func (r *Request) Param(name string) string { return r.Params[name] }

// Handshake reports whether a named module is currently loaded.
func (r *Request) Handshake(code string) bool { return r.d.Handshake(code) }

// Emitter returns a handle for firing a named event from this handler.
func (r *Request) Emitter(event string) *Emitter { return r.d.Emitter(event) }

// API returns a proxy for calling another module's API commands. The
// argument is a module code or a registered api name.
func (r *Request) API(module string) (*APIProxy, error) { return r.d.APIProxy(module) }

// Self invokes one of the executing module's own internally bound
// commands (those declared with the "#" prefix).
func (r *Request) Self(name string, args ...any) (any, error) {
	cmd, ok := r.mod.SelfCommand(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not self-callable on %s", ErrUnknownCommand, name, r.mod.Code())
	}
	return cmd.Handler(r, args...)
}

// Result is the outcome of one dispatch.
type Result struct {
	// Value is the handler's opaque return value.
	Value any
	// RequestID is the dispatch identifier.
	RequestID string
	// Module is the code of the module that executed the handler.
	Module string
}
