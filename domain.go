package modhost

import (
	"fmt"
	"strings"
	"sync"
)

// DomainBinding maps one host pattern to sites by path prefix. Host is
// an exact name, a single-level wildcard ("*.example.com") or the
// default "*"; Aliases are additional exact names resolving to the same
// binding.
type DomainBinding struct {
	Host    string            `yaml:"host"`
	Aliases []string          `yaml:"aliases,omitempty"`
	Sites   map[string]string `yaml:"sites"`
}

// SiteFor returns the site identifier bound to the longest matching
// path prefix.
func (b *DomainBinding) SiteFor(path string) (string, bool) {
	path = normalizePath(path)
	bestLen := -1
	var best string
	for prefix, site := range b.Sites {
		prefix = normalizePath(prefix)
		if prefix != "/" && path != prefix && !strings.HasPrefix(path, prefix+"/") {
			continue
		}
		if len(prefix) > bestLen {
			bestLen = len(prefix)
			best = site
		}
	}
	return best, bestLen >= 0
}

func (b *DomainBinding) wildcard() bool {
	return strings.HasPrefix(b.Host, "*.")
}

func (b *DomainBinding) matchesWildcard(host string) bool {
	suffix := b.Host[1:] // ".example.com"
	if !strings.HasSuffix(host, suffix) {
		return false
	}
	// Single-level: the part replacing "*" must not contain a dot.
	level := host[:len(host)-len(suffix)]
	return level != "" && !strings.Contains(level, ".")
}

// SiteFactory lazily constructs the Distributor for a bound site. The
// factory is injected at registry creation; the registry never reaches
// into process-wide state.
type SiteFactory func(site string) (*Distributor, error)

// DomainRegistry maps external host names to per-site Distributors and
// owns the persisted binding table. The binding table follows a
// single-writer discipline: reads hold the lock shared for the duration
// of a resolution, administrative mutations hold it exclusively, so no
// configuration write lands mid-request.
type DomainRegistry struct {
	mu       sync.RWMutex
	store    *BindingStore
	bindings []*DomainBinding
	factory  SiteFactory
	log      Logger

	sitesMu sync.Mutex
	sites   map[string]*Distributor
}

// NewDomainRegistry creates a registry over a persisted binding store.
func NewDomainRegistry(store *BindingStore, factory SiteFactory, log Logger) *DomainRegistry {
	if log == nil {
		log = NewSlogLogger(nil)
	}
	return &DomainRegistry{
		store:   store,
		factory: factory,
		log:     log,
		sites:   make(map[string]*Distributor),
	}
}

// Load reads and validates the persisted binding table, replacing the
// in-memory table on success.
func (r *DomainRegistry) Load() error {
	bindings, err := r.store.Load()
	if err != nil {
		return err
	}
	if err := validateBindings(bindings); err != nil {
		return err
	}
	r.mu.Lock()
	r.bindings = bindings
	r.mu.Unlock()
	r.log.Debug("Domain bindings loaded", "count", len(bindings))
	return nil
}

// Save persists the current binding table. The store writes atomically;
// a failed write leaves the previous persisted state intact.
func (r *DomainRegistry) Save() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Save(r.bindings)
}

// Validate checks the in-memory binding table.
func (r *DomainRegistry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return validateBindings(r.bindings)
}

// Lock takes the binding table exclusively, blocking until no request
// is being served. Unlock releases it. Administrative operations use
// the pair around multi-step mutations.
func (r *DomainRegistry) Lock()   { r.mu.Lock() }
func (r *DomainRegistry) Unlock() { r.mu.Unlock() }

// Bindings returns a copy of the binding table for inspection.
func (r *DomainRegistry) Bindings() []*DomainBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*DomainBinding, len(r.bindings))
	copy(out, r.bindings)
	return out
}

// SetBinding adds or replaces the binding for a host and persists the
// table. On a failed write the in-memory table is rolled back.
func (r *DomainRegistry) SetBinding(b *DomainBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.bindings
	next := make([]*DomainBinding, 0, len(prev)+1)
	replaced := false
	for _, existing := range prev {
		if existing.Host == b.Host {
			next = append(next, b)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, b)
	}
	if err := validateBindings(next); err != nil {
		return err
	}
	r.bindings = next
	if err := r.store.Save(next); err != nil {
		r.bindings = prev
		return err
	}
	return nil
}

// RemoveBinding deletes the binding for a host and persists the table.
func (r *DomainRegistry) RemoveBinding(host string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.bindings
	next := make([]*DomainBinding, 0, len(prev))
	for _, existing := range prev {
		if existing.Host != host {
			next = append(next, existing)
		}
	}
	if len(next) == len(prev) {
		return fmt.Errorf("%w: %s", ErrNoMatch, host)
	}
	r.bindings = next
	if err := r.store.Save(next); err != nil {
		r.bindings = prev
		return err
	}
	return nil
}

// Bind selects the best binding for a host: exact name first, then
// alias, then single-level wildcard, then the "*" default.
func (r *DomainRegistry) Bind(host string) (*DomainBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bindLocked(host)
}

func (r *DomainRegistry) bindLocked(host string) (*DomainBinding, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	var alias, wildcard, def *DomainBinding
	for _, b := range r.bindings {
		switch {
		case b.Host == host:
			return b, nil
		case b.Host == "*":
			if def == nil {
				def = b
			}
		case b.wildcard():
			if wildcard == nil && b.matchesWildcard(host) {
				wildcard = b
			}
		}
		if alias == nil {
			for _, a := range b.Aliases {
				if a == host {
					alias = b
					break
				}
			}
		}
	}
	switch {
	case alias != nil:
		return alias, nil
	case wildcard != nil:
		return wildcard, nil
	case def != nil:
		return def, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoMatch, host)
}

// Resolve binds a host, selects the site for the path and delegates to
// the site's dispatch. The binding table stays read-locked for the full
// request-serving window. The site's Distributor is constructed lazily
// and cached on first resolution.
func (r *DomainRegistry) Resolve(host, path, method string) (*Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, err := r.bindLocked(host)
	if err != nil {
		return nil, err
	}
	site, ok := b.SiteFor(path)
	if !ok {
		return nil, fmt.Errorf("%w: no site bound for %s on %s", ErrNoMatch, path, b.Host)
	}
	d, err := r.site(site)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(path, method)
}

// Site returns the cached Distributor for a site identifier,
// constructing it on first use.
func (r *DomainRegistry) Site(site string) (*Distributor, error) {
	return r.site(site)
}

func (r *DomainRegistry) site(site string) (*Distributor, error) {
	r.sitesMu.Lock()
	defer r.sitesMu.Unlock()
	if d, ok := r.sites[site]; ok {
		return d, nil
	}
	d, err := r.factory(site)
	if err != nil {
		return nil, fmt.Errorf("constructing site %s: %w", site, err)
	}
	r.sites[site] = d
	return d, nil
}

func validateBindings(bindings []*DomainBinding) error {
	hosts := make(map[string]bool, len(bindings))
	for _, b := range bindings {
		if b.Host == "" {
			return fmt.Errorf("%w: empty host", ErrBindingInvalid)
		}
		if strings.Contains(b.Host, "*") && b.Host != "*" && !strings.HasPrefix(b.Host, "*.") {
			return fmt.Errorf("%w: %q is not a single-level wildcard", ErrBindingInvalid, b.Host)
		}
		if len(b.Sites) == 0 {
			return fmt.Errorf("%w: %s binds no sites", ErrBindingInvalid, b.Host)
		}
		// Prefixes that normalize to the same path would tie in SiteFor
		// with a map-order-dependent winner.
		prefixes := make(map[string]bool, len(b.Sites))
		for p := range b.Sites {
			np := normalizePath(p)
			if prefixes[np] {
				return fmt.Errorf("%w: %s declares path %q twice", ErrBindingInvalid, b.Host, np)
			}
			prefixes[np] = true
		}
		if hosts[b.Host] {
			return fmt.Errorf("%w: %s", ErrDuplicateHost, b.Host)
		}
		hosts[b.Host] = true
		for _, a := range b.Aliases {
			if a == "" || strings.Contains(a, "*") {
				return fmt.Errorf("%w: alias %q of %s", ErrBindingInvalid, a, b.Host)
			}
		}
	}
	return nil
}
