package modhost

import (
	"fmt"
)

// NewHost wires a configuration, a controller registry and a logger into
// a ready DomainRegistry. Site Distributors are constructed lazily on
// first resolution: the factory scans the site's declaration directory
// and runs the full lifecycle.
func NewHost(cfg *Config, controllers ControllerRegistry, log Logger) (*DomainRegistry, error) {
	if log == nil {
		log = NewSlogLogger(nil)
	}
	store := NewBindingStore(cfg.Bindings)

	factory := func(site string) (*Distributor, error) {
		sc, ok := cfg.Sites[site]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSite, site)
		}
		decls, err := ScanDeclarations(sc.Declarations)
		if err != nil {
			// Invalid declarations fail at the module level; the site
			// continues with its valid siblings.
			log.Warn("Declaration scan reported problems", "site", site, "error", err)
		}
		d := NewDistributor(site, WithLogger(log), WithControllers(controllers))
		if err := d.Initialize(decls); err != nil {
			return nil, err
		}
		return d, nil
	}

	reg := NewDomainRegistry(store, factory, log)
	if err := reg.Load(); err != nil {
		return nil, err
	}
	return reg, nil
}
