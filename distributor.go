package modhost

import (
	"fmt"
	"sort"
	"sync"
)

// Distributor is the per-site orchestrator. It owns the module runtimes
// of one site, drives them through the lifecycle phases in dependency
// order, merges their route tables into one resolvable surface and
// performs request dispatch.
//
// The concurrency model is single-threaded cooperative per site: one
// mutex serializes initialization and dispatch, so a site processes
// exactly one request to completion before starting the next. Distinct
// sites share no mutable state and may run concurrently.
type Distributor struct {
	site        string
	log         Logger
	loader      ControllerLoader
	controllers ControllerRegistry
	coord       *Coordinator

	runtimes map[string]*ModuleRuntime
	order    []string
	agents   map[string]*Agent
	apiNames map[string]string
	rejected []ModuleInfo

	table       *RouteTable
	scriptTable *RouteTable

	mu          sync.Mutex
	initialized bool
}

// DistributorOption configures a Distributor at construction.
type DistributorOption func(*Distributor)

// WithLogger injects the site logger.
func WithLogger(l Logger) DistributorOption {
	return func(d *Distributor) { d.log = l }
}

// WithControllerLoader injects the handler reference resolver.
func WithControllerLoader(l ControllerLoader) DistributorOption {
	return func(d *Distributor) { d.loader = l }
}

// WithControllers injects the controller registry mapping module codes
// to factories. Registries are explicitly constructed services scoped
// to the orchestrator; there is no process-wide registry.
func WithControllers(reg ControllerRegistry) DistributorOption {
	return func(d *Distributor) { d.controllers = reg }
}

// NewDistributor creates the orchestrator for one site.
func NewDistributor(site string, opts ...DistributorOption) *Distributor {
	d := &Distributor{
		site:        site,
		log:         NewSlogLogger(nil),
		loader:      NewProviderLoader(),
		controllers: ControllerRegistry{},
		coord:       NewCoordinator(),
		runtimes:    make(map[string]*ModuleRuntime),
		agents:      make(map[string]*Agent),
		apiNames:    make(map[string]string),
		table:       NewRouteTable(),
		scriptTable: NewRouteTable(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Site returns the site identifier.
func (d *Distributor) Site() string { return d.site }

// Coordinator exposes the site's dependency coordinator.
func (d *Distributor) Coordinator() *Coordinator { return d.coord }

// Initialize drives every declared module through the lifecycle phases
// with barrier semantics: all modules complete a phase before any module
// enters the next. Configuration errors are fatal to the affected module
// only; Initialize fails outright only when every declared module
// failed.
func (d *Distributor) Initialize(decls []*Declaration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, d.site)
	}

	declsByCode := d.discover(decls)
	d.initPhase(declsByCode)
	d.loadPhase()

	// Registration closes with the Load barrier; awaits then fire on
	// this same call stack.
	for _, a := range d.agents {
		a.sealed = true
	}
	d.coord.FlushAwaits()

	d.readyPhase()
	d.mergeTables()
	d.initialized = true

	loaded := 0
	for _, rt := range d.runtimes {
		if rt.Loaded() {
			loaded++
		}
	}
	d.log.Info("Site initialized", "site", d.site, "modules", len(d.runtimes), "loaded", loaded)
	if len(decls) > 0 && loaded == 0 {
		return fmt.Errorf("%w: site %s", ErrAllModulesFailed, d.site)
	}
	return nil
}

// discover builds runtimes from declarations, rejects duplicates and
// computes the dependency order. Cycle members fail before Init runs for
// any of them.
func (d *Distributor) discover(decls []*Declaration) map[string]*Declaration {
	declsByCode := make(map[string]*Declaration, len(decls))
	var codes []string

	for _, decl := range decls {
		code := decl.Descriptor.Code
		if _, exists := d.runtimes[code]; exists {
			d.log.Error("Duplicate module declaration", "site", d.site, "module", code)
			d.rejected = append(d.rejected, ModuleInfo{
				Code:    code,
				Version: decl.Descriptor.Version,
				Status:  StatusFailed.String(),
				Error:   fmt.Errorf("%w: %s", ErrDuplicateModule, code).Error(),
			})
			continue
		}
		var ctrl Controller
		if factory, ok := d.controllers[code]; ok {
			ctrl = factory()
		}
		rt := newModuleRuntime(decl.Descriptor, ctrl)
		d.runtimes[code] = rt
		declsByCode[code] = decl
		codes = append(codes, code)

		if api := decl.Descriptor.APIName; api != "" {
			if owner, taken := d.apiNames[api]; taken {
				rt.fail(fmt.Errorf("%w: %q already registered by %s", ErrDuplicateAPIName, api, owner))
				d.log.Error("Module failed", "site", d.site, "module", code, "error", rt.failure)
			} else {
				d.apiNames[api] = code
			}
		}
	}

	// Missing requirements fail before graph construction so the graph
	// only carries resolvable edges.
	var healthy []string
	for _, code := range codes {
		rt := d.runtimes[code]
		if rt.status == StatusFailed {
			continue
		}
		for _, req := range rt.descriptor.Requires {
			if _, ok := d.runtimes[req.Code]; !ok {
				rt.fail(fmt.Errorf("%w: %s requires %s", ErrMissingDependency, code, req.Code))
				d.log.Error("Module failed", "site", d.site, "module", code, "error", rt.failure)
				break
			}
		}
		if rt.status != StatusFailed {
			healthy = append(healthy, code)
		}
	}

	g := newDepGraph(healthy)
	for _, code := range healthy {
		for _, req := range d.runtimes[code].descriptor.Requires {
			if g.has(req.Code) {
				g.addDependency(code, req.Code)
			}
		}
	}
	ordered, leftover := g.order()
	if len(leftover) > 0 {
		cyclic := g.onCycle(leftover)
		for _, code := range leftover {
			rt := d.runtimes[code]
			if cyclic[code] {
				rt.fail(fmt.Errorf("%w: %s", ErrCyclicDependency, code))
			} else {
				rt.fail(fmt.Errorf("%w: %s depends on a dependency cycle", ErrUnsatisfiedDependency, code))
			}
			d.log.Error("Module failed", "site", d.site, "module", code, "error", rt.failure)
		}
	}

	d.order = ordered
	for _, code := range ordered {
		d.runtimes[code].status = StatusInQueue
		d.coord.MarkPhaseComplete(code, PhaseDiscover)
	}
	d.log.Debug("Module initialization order", "site", d.site, "order", ordered)
	return declsByCode
}

// initPhase runs the Init hook of every ordered module. Declared routes
// and scripts register through the module's own agent first, so a
// declaration-only module needs no controller.
func (d *Distributor) initPhase(declsByCode map[string]*Declaration) {
	for _, code := range d.order {
		rt := d.runtimes[code]
		if rt.status == StatusFailed {
			continue
		}
		agent := &Agent{d: d, rt: rt}
		d.agents[code] = agent
		rt.status = StatusProcessing

		if err := d.registerDeclared(agent, declsByCode[code]); err != nil {
			rt.fail(err)
			d.log.Error("Module failed", "site", d.site, "module", code, "phase", PhaseInit, "error", err)
			continue
		}
		if rt.controller != nil {
			if err := rt.controller.Init(agent); err != nil {
				rt.fail(fmt.Errorf("init hook: %w", err))
				d.log.Error("Module failed", "site", d.site, "module", code, "phase", PhaseInit, "error", err)
				continue
			}
		}
		rt.status = StatusInQueue
		d.coord.MarkPhaseComplete(code, PhaseInit)
		d.log.Debug("Module initialized", "site", d.site, "module", code)
	}
}

func (d *Distributor) registerDeclared(agent *Agent, decl *Declaration) error {
	if decl == nil {
		return nil
	}
	if decl.routes != nil {
		if err := agent.AddLazyRoute("", decl.routes); err != nil {
			return err
		}
	}
	if len(decl.scripts) > 0 {
		paths := make([]string, 0, len(decl.scripts))
		for p := range decl.scripts {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			if err := agent.AddScript(p, decl.scripts[p]); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadPhase runs the second-stage Load hook. A module completing Load
// becomes part of the routable surface and answers handshakes.
func (d *Distributor) loadPhase() {
	for _, code := range d.order {
		rt := d.runtimes[code]
		if rt.status == StatusFailed || !d.coord.PhaseComplete(code, PhaseInit) {
			continue
		}
		if loadable, ok := rt.controller.(Loadable); ok {
			rt.status = StatusProcessing
			if err := loadable.Load(d.agents[code]); err != nil {
				rt.fail(fmt.Errorf("load hook: %w", err))
				d.log.Error("Module failed", "site", d.site, "module", code, "phase", PhaseLoad, "error", err)
				continue
			}
		}
		rt.status = StatusLoaded
		d.coord.markReady(code, true)
		d.coord.MarkPhaseComplete(code, PhaseLoad)
	}
}

// readyPhase validates declared requirements against loaded siblings and
// runs the Ready hook. Modules run in dependency order, so a dependency
// failing here is observed by its dependents in the same pass.
func (d *Distributor) readyPhase() {
	for _, code := range d.order {
		rt := d.runtimes[code]
		if !rt.Loaded() {
			continue
		}
		if err := d.validateRequires(rt); err != nil {
			rt.fail(err)
			d.coord.markReady(code, false)
			d.log.Error("Module failed", "site", d.site, "module", code, "phase", PhaseReady, "error", err)
			continue
		}
		if readyable, ok := rt.controller.(Readyable); ok {
			if err := readyable.Ready(d.agents[code]); err != nil {
				rt.fail(fmt.Errorf("ready hook: %w", err))
				d.coord.markReady(code, false)
				d.log.Error("Module failed", "site", d.site, "module", code, "phase", PhaseReady, "error", err)
				continue
			}
		}
		d.coord.MarkPhaseComplete(code, PhaseReady)
	}
}

func (d *Distributor) validateRequires(rt *ModuleRuntime) error {
	for _, req := range rt.descriptor.Requires {
		dep, ok := d.runtimes[req.Code]
		if !ok || !dep.Loaded() {
			return fmt.Errorf("%w: %s requires %s, which is not loaded",
				ErrUnsatisfiedDependency, rt.Code(), req.Code)
		}
		if !dep.descriptor.Satisfies(req.Constraint) {
			return fmt.Errorf("%w: %s requires %s %s, found %s",
				ErrUnsatisfiedDependency, rt.Code(), req.Code, req.Constraint, dep.descriptor.Version)
		}
	}
	return nil
}

// mergeTables merges the route slices of every loaded module into the
// site tables and freezes them. Merge order is initialization order,
// preserving per-module registration order for tie-breaks.
func (d *Distributor) mergeTables() {
	for _, code := range d.order {
		rt := d.runtimes[code]
		if !rt.Loaded() {
			continue
		}
		for _, e := range rt.routes {
			d.table.add(e)
		}
		for _, e := range rt.scripts {
			d.scriptTable.add(e)
		}
	}
	d.table.freeze()
	d.scriptTable.freeze()
}

// Dispatch resolves a path and verb against the frozen route table,
// executes the winning handler with its owning module (or, for shadow
// entries, the target module) as context and returns its result.
func (d *Distributor) Dispatch(path, method string) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return nil, fmt.Errorf("%w: %s", ErrSiteNotReady, d.site)
	}
	m, err := d.table.Match(path, method)
	if err != nil {
		return nil, err
	}
	return d.execute(m, path, method, nil)
}

// DispatchScript resolves a script path against the script table.
// Scripts are matched with the same depth rules as web routes and an
// implicit any-verb set.
func (d *Distributor) DispatchScript(path string, args ...string) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return nil, fmt.Errorf("%w: %s", ErrSiteNotReady, d.site)
	}
	m, err := d.scriptTable.Match(path, "")
	if err != nil {
		return nil, err
	}
	return d.execute(m, path, "", args)
}

func (d *Distributor) execute(m *Match, path, method string, args []string) (*Result, error) {
	e := m.Entry
	rt := e.owner
	ref := e.Ref
	if e.Shadow() {
		target, ok := d.runtimes[e.TargetModule]
		if !ok {
			return nil, fmt.Errorf("%w: shadow target %s", ErrUnknownModule, e.TargetModule)
		}
		if !target.Loaded() {
			return nil, fmt.Errorf("%w: shadow target %s", ErrModuleNotReady, e.TargetModule)
		}
		rt = target
		ref = e.TargetRef
	}

	var handler Handler
	if e.Direct != nil {
		handler = e.Direct.Handler
	} else {
		var err error
		handler, err = d.resolveHandler(rt, ref)
		if err != nil {
			return nil, err
		}
	}

	req := d.newRequest(path, method, m.Params, rt)
	req.Args = args
	d.log.Debug("Dispatching", "site", d.site, "request", req.ID, "path", path, "module", rt.Code(), "pattern", e.Pattern)
	value, err := handler(req)
	if err != nil {
		return nil, fmt.Errorf("handler %s on %s: %w", e.Pattern, rt.Code(), err)
	}
	return &Result{Value: value, RequestID: req.ID, Module: rt.Code()}, nil
}

// resolveHandler resolves a reference through the controller loader,
// caching the bound closure on the runtime. A nil resolution on a
// matched route is a handler-missing condition, distinct from
// route-not-found.
func (d *Distributor) resolveHandler(rt *ModuleRuntime, ref string) (Handler, error) {
	if h, ok := rt.boundClosures[ref]; ok {
		return h, nil
	}
	h, err := d.loader.Resolve(rt, ref)
	if err != nil {
		return nil, fmt.Errorf("resolving %q on %s: %w", ref, rt.Code(), err)
	}
	if h == nil {
		return nil, fmt.Errorf("%w: %q on %s", ErrHandlerNotFound, ref, rt.Code())
	}
	rt.boundClosures[ref] = h
	return h, nil
}

func (d *Distributor) listenerHandler(rt *ModuleRuntime, reg listenerReg) (Handler, error) {
	if reg.direct != nil {
		return reg.direct.Handler, nil
	}
	return d.resolveHandler(rt, reg.ref)
}

func (d *Distributor) newRequest(path, method string, params map[string]string, rt *ModuleRuntime) *Request {
	return &Request{
		ID:     newEventID(),
		Site:   d.site,
		Path:   path,
		Method: method,
		Params: params,
		mod:    rt,
		d:      d,
	}
}

// Handshake reports whether a named module is currently loaded.
func (d *Distributor) Handshake(code string) bool {
	return d.coord.Handshake(code)
}

// Emitter returns a handle for firing a named event into the site.
func (d *Distributor) Emitter(event string) *Emitter {
	return &Emitter{d: d, event: event}
}

// APIProxy returns a handle for calling a module's API commands. The
// argument is a module code or a registered api name.
func (d *Distributor) APIProxy(module string) (*APIProxy, error) {
	rt, ok := d.runtimes[module]
	if !ok {
		if code, named := d.apiNames[module]; named {
			rt = d.runtimes[code]
			ok = rt != nil
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}
	return &APIProxy{d: d, target: rt}, nil
}

// Runtime returns a module runtime by code.
func (d *Distributor) Runtime(code string) (*ModuleRuntime, bool) {
	rt, ok := d.runtimes[code]
	return rt, ok
}

// RouteInfo is the read-only inspection view of one compiled entry.
type RouteInfo struct {
	Module  string
	Pattern string
	Regex   string
	Methods string
	Ref     string
	Target  string
	Depth   int
	Script  bool
}

// Routes lists the merged, frozen route table in match-priority order,
// web routes first, then scripts.
func (d *Distributor) Routes() []RouteInfo {
	var infos []RouteInfo
	for _, e := range d.table.Entries() {
		infos = append(infos, routeInfo(e, false))
	}
	for _, e := range d.scriptTable.Entries() {
		infos = append(infos, routeInfo(e, true))
	}
	return infos
}

func routeInfo(e *RouteEntry, script bool) RouteInfo {
	info := RouteInfo{
		Module:  e.owner.Code(),
		Pattern: e.Pattern,
		Regex:   e.Regex(),
		Methods: e.Methods.String(),
		Ref:     e.Ref,
		Depth:   e.Depth,
		Script:  script,
	}
	if e.Shadow() {
		info.Target = e.TargetModule
		info.Ref = e.TargetRef
	}
	return info
}

// ModuleInfo is the read-only inspection view of one module.
type ModuleInfo struct {
	Code     string
	Version  string
	Author   string
	APIName  string
	Status   string
	Error    string
	Commands []string
}

// LoadedModulesInfo lists every declared module, including failed and
// rejected declarations, in initialization order followed by failures.
func (d *Distributor) LoadedModulesInfo() []ModuleInfo {
	var infos []ModuleInfo
	seen := make(map[string]bool, len(d.runtimes))
	appendInfo := func(rt *ModuleRuntime) {
		info := ModuleInfo{
			Code:     rt.descriptor.Code,
			Version:  rt.descriptor.Version,
			Author:   rt.descriptor.Author,
			APIName:  rt.descriptor.APIName,
			Status:   rt.status.String(),
			Commands: rt.Commands(),
		}
		sort.Strings(info.Commands)
		if rt.failure != nil {
			info.Error = rt.failure.Error()
		}
		infos = append(infos, info)
	}
	for _, code := range d.order {
		appendInfo(d.runtimes[code])
		seen[code] = true
	}
	var failed []string
	for code := range d.runtimes {
		if !seen[code] {
			failed = append(failed, code)
		}
	}
	sort.Strings(failed)
	for _, code := range failed {
		appendInfo(d.runtimes[code])
	}
	infos = append(infos, d.rejected...)
	return infos
}
