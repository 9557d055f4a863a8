package modhost

import (
	"fmt"
	"strings"
)

// APIHandler is one callable API command exposed by a module.
type APIHandler func(r *Request, args ...any) (any, error)

// APICommand is a named operation a module exposes for other modules.
// Internal commands are additionally bound as direct calls on the owning
// module (see Request.Self).
type APICommand struct {
	Name     string
	Handler  APIHandler
	Internal bool
}

// APIProxy is a thin handle letting a dispatched handler call into
// another module's API commands. The proxy does not gate on readiness by
// itself; callers that need a guarantee should check Ready first, the
// same discipline await callbacks follow.
type APIProxy struct {
	d      *Distributor
	target *ModuleRuntime
}

// Ready reports whether the target module is currently loaded.
func (p *APIProxy) Ready() bool {
	return p.target.Loaded()
}

// Module returns the target module's code.
func (p *APIProxy) Module() string {
	return p.target.Code()
}

// Call invokes a named API command on the target module. The command
// executes with the target module as context.
func (p *APIProxy) Call(name string, args ...any) (any, error) {
	if !p.target.Loaded() {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotReady, p.target.Code())
	}
	cmd, ok := p.target.Command(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownCommand, name, p.target.Code())
	}
	req := p.d.newRequest("", "", nil, p.target)
	return cmd.Handler(req, args...)
}

// parseCommandName splits the internal-binding prefix from a declared
// command name. A leading "#" marks the command for double registration:
// once in the API command map, once in the self-callable map.
func parseCommandName(declared string) (name string, internal bool) {
	if strings.HasPrefix(declared, "#") {
		return declared[1:], true
	}
	return declared, false
}
