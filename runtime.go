package modhost

// listenerReg is one event-listener registration. Listeners resolve and
// fire in registration order.
type listenerReg struct {
	ref    string
	direct *Route
}

// ModuleRuntime is one loaded instance of a module within a site. It
// owns the module's compiled routes, API command maps, event listener
// registrations and handler cache. Runtimes are created and mutated only
// by their owning Distributor during lifecycle execution.
type ModuleRuntime struct {
	descriptor *Descriptor
	controller Controller
	status     ModuleStatus
	failure    error

	routes  []*RouteEntry
	scripts []*RouteEntry

	// commands holds API commands callable by other modules; self holds
	// the subset double-bound for direct calls on the owning module.
	// The "#" declaration prefix registers into both maps explicitly.
	commands map[string]*APICommand
	self     map[string]*APICommand

	listeners map[string][]listenerReg

	// boundClosures caches resolved handlers per reference path.
	boundClosures map[string]Handler
}

func newModuleRuntime(d *Descriptor, c Controller) *ModuleRuntime {
	return &ModuleRuntime{
		descriptor:    d,
		controller:    c,
		status:        StatusPending,
		commands:      make(map[string]*APICommand),
		self:          make(map[string]*APICommand),
		listeners:     make(map[string][]listenerReg),
		boundClosures: make(map[string]Handler),
	}
}

// Descriptor returns the module's immutable metadata.
func (rt *ModuleRuntime) Descriptor() *Descriptor { return rt.descriptor }

// Code returns the module's unique code.
func (rt *ModuleRuntime) Code() string { return rt.descriptor.Code }

// Status returns the module's current lifecycle status.
func (rt *ModuleRuntime) Status() ModuleStatus { return rt.status }

// Failure returns the error that moved the module to StatusFailed, or
// nil.
func (rt *ModuleRuntime) Failure() error { return rt.failure }

// Loaded reports whether the module is part of the routable surface.
func (rt *ModuleRuntime) Loaded() bool { return rt.status == StatusLoaded }

func (rt *ModuleRuntime) fail(err error) {
	rt.status = StatusFailed
	rt.failure = err
}

// Command looks up an API command exposed to other modules.
func (rt *ModuleRuntime) Command(name string) (*APICommand, bool) {
	c, ok := rt.commands[name]
	return c, ok
}

// SelfCommand looks up a command double-bound for direct calls on the
// owning module.
func (rt *ModuleRuntime) SelfCommand(name string) (*APICommand, bool) {
	c, ok := rt.self[name]
	return c, ok
}

// Commands returns the names of all exposed API commands.
func (rt *ModuleRuntime) Commands() []string {
	names := make([]string, 0, len(rt.commands))
	for n := range rt.commands {
		names = append(names, n)
	}
	return names
}
