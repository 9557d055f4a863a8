package modhost

// Phase is one step of the site lifecycle. Phases run as barriers:
// every module completes a phase before any module enters the next.
type Phase int

const (
	PhaseDiscover Phase = iota
	PhaseInit
	PhaseLoad
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseDiscover:
		return "discover"
	case PhaseInit:
		return "init"
	case PhaseLoad:
		return "load"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// AwaitCallback runs once after the Load barrier. The loaded argument
// reports whether the awaited module reached the routable surface; the
// callback body is responsible for branching on it, since awaits fire
// even when their target never loaded.
type AwaitCallback func(loaded bool)

type awaitRequest struct {
	target string
	cb     AwaitCallback
}

// Coordinator tracks which modules completed each lifecycle phase,
// queues await requests and answers handshake queries. It is pure
// bookkeeping owned by one Distributor and is not safe for concurrent
// use; the Distributor's site lock serializes access.
type Coordinator struct {
	done     map[Phase]map[string]bool
	ready    map[string]bool
	awaits   []awaitRequest
	flushing bool
	flushed  bool
}

// NewCoordinator returns an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		done:  make(map[Phase]map[string]bool),
		ready: make(map[string]bool),
	}
}

// MarkPhaseComplete records that a module finished a phase.
func (c *Coordinator) MarkPhaseComplete(code string, p Phase) {
	m := c.done[p]
	if m == nil {
		m = make(map[string]bool)
		c.done[p] = m
	}
	m[code] = true
}

// PhaseComplete reports whether a module finished a phase.
func (c *Coordinator) PhaseComplete(code string, p Phase) bool {
	return c.done[p][code]
}

// AllComplete is the barrier check: every given module finished the
// phase.
func (c *Coordinator) AllComplete(p Phase, codes []string) bool {
	for _, code := range codes {
		if !c.done[p][code] {
			return false
		}
	}
	return true
}

// EnqueueAwait queues a callback to run after the Load barrier.
// Callbacks fire at most once, in FIFO registration order.
func (c *Coordinator) EnqueueAwait(target string, cb AwaitCallback) {
	if c.flushed || c.flushing {
		panic("modhost: await registered after the load barrier")
	}
	c.awaits = append(c.awaits, awaitRequest{target: target, cb: cb})
}

// markReady records that a module is (or no longer is) part of the
// routable surface. Called by the Distributor as statuses change.
func (c *Coordinator) markReady(code string, ready bool) {
	c.ready[code] = ready
}

// Handshake is a synchronous, side-effect-free readiness query for a
// named module. Valid at any time after initialization, including from
// within a dispatched handler.
func (c *Coordinator) Handshake(code string) bool {
	return c.ready[code]
}

// FlushAwaits fires every queued await in FIFO order. It runs exactly
// once per site, on the call stack that completes the Load barrier.
// Re-entry is a lifecycle invariant violation and panics.
func (c *Coordinator) FlushAwaits() {
	if c.flushing {
		panic("modhost: re-entrant await flush")
	}
	if c.flushed {
		panic("modhost: await flush ran twice")
	}
	c.flushing = true
	for _, req := range c.awaits {
		req.cb(c.ready[req.target])
	}
	c.awaits = nil
	c.flushing = false
	c.flushed = true
}
