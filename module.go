// Package modhost is the request-routing and module-lifecycle core of a
// multi-tenant application host. It resolves an incoming host and path to
// an installed module's handler, after driving every module of the bound
// site through a multi-phase initialization protocol with inter-module
// dependency ordering and deferred-dependency awaits.
//
// A module is an installable, versioned unit contributing routes, API
// commands and event listeners to a site. Modules are described by on-disk
// declarations (see Descriptor) and given behavior by a Controller. The
// Distributor owns all module runtimes of one site; the DomainRegistry
// maps external host names to Distributors.
//
// Basic usage:
//
//	reg := modhost.NewDomainRegistry(store, factory, logger)
//	if err := reg.Load(); err != nil {
//		log.Fatal(err)
//	}
//	res, err := reg.Resolve("example.com", "/user/42", "GET")
package modhost

// Controller gives behavior to a declared module. The Init hook is called
// during the site's Init phase; it is where the module registers its
// routes, API commands, event listeners and awaits through the Agent.
//
// Returning an error marks the module Failed and excludes it from all
// further phases and from the routable surface. Siblings continue.
type Controller interface {
	// Init performs first-stage initialization. The Agent passed here is
	// valid for registration calls until the end of the Load phase.
	Init(a *Agent) error
}

// Loadable is an optional interface for controllers that need a second
// initialization stage, after every module of the site has run Init.
// Typical use is reacting to sibling registrations.
type Loadable interface {
	Load(a *Agent) error
}

// Readyable is an optional interface for controllers that want a hook
// after dependency validation has passed. The Agent is sealed for
// registration at this point; read-only operations such as Handshake
// remain available.
type Readyable interface {
	Ready(a *Agent) error
}

// HandlerProvider is an optional interface resolving handler references
// declared in routes, API commands and listeners. The map key is the
// handler reference path (for example "users/edit"); the value is the
// executable handler.
//
// Controllers that do not implement HandlerProvider can still register
// literal Route wrappers; referenced handlers then resolve through a
// custom ControllerLoader.
type HandlerProvider interface {
	Handlers() map[string]Handler
}

// ControllerFactory constructs a fresh controller instance for one
// module runtime. Factories run once per site, during Discover.
type ControllerFactory func() Controller

// ControllerRegistry maps module codes to controller factories. It is an
// explicitly constructed service injected into the Distributor at
// startup; there is no process-wide registry.
type ControllerRegistry map[string]ControllerFactory

// ModuleStatus is the lifecycle state of one module runtime.
type ModuleStatus int

const (
	// StatusPending marks a module that has been discovered but not yet
	// ordered for initialization.
	StatusPending ModuleStatus = iota
	// StatusInQueue marks a module ordered and waiting for its hooks.
	StatusInQueue
	// StatusProcessing marks a module whose lifecycle hook is executing.
	StatusProcessing
	// StatusLoaded marks a module that completed the Load phase and is
	// part of the routable surface.
	StatusLoaded
	// StatusFailed marks a module excluded from the routable surface.
	StatusFailed
)

func (s ModuleStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInQueue:
		return "inqueue"
	case StatusProcessing:
		return "processing"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}
