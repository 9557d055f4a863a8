package modhost

// ControllerLoader resolves a handler reference path against a module's
// handler namespace. It is an external collaborator: the core treats a
// nil handler with a nil error as "handler missing", which surfaces as
// ErrHandlerNotFound when a matched route's target cannot be resolved.
type ControllerLoader interface {
	Resolve(rt *ModuleRuntime, ref string) (Handler, error)
}

// providerLoader is the default loader. It resolves references against
// the handler map of controllers implementing HandlerProvider.
type providerLoader struct{}

// NewProviderLoader returns the default controller loader.
func NewProviderLoader() ControllerLoader {
	return providerLoader{}
}

func (providerLoader) Resolve(rt *ModuleRuntime, ref string) (Handler, error) {
	hp, ok := rt.controller.(HandlerProvider)
	if !ok {
		return nil, nil
	}
	h, ok := hp.Handlers()[ref]
	if !ok {
		return nil, nil
	}
	return h, nil
}
