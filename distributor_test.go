package modhost

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubController implements every optional hook through function fields,
// leaving unset hooks as no-ops.
type stubController struct {
	init     func(*Agent) error
	load     func(*Agent) error
	ready    func(*Agent) error
	handlers map[string]Handler
}

func (s *stubController) Init(a *Agent) error {
	if s.init != nil {
		return s.init(a)
	}
	return nil
}

func (s *stubController) Load(a *Agent) error {
	if s.load != nil {
		return s.load(a)
	}
	return nil
}

func (s *stubController) Ready(a *Agent) error {
	if s.ready != nil {
		return s.ready(a)
	}
	return nil
}

func (s *stubController) Handlers() map[string]Handler { return s.handlers }

func decl(t *testing.T, code, version string, reqs ...Requirement) *Declaration {
	t.Helper()
	desc, err := newDescriptor(descriptorFile{Code: code, Version: version, Requires: reqs})
	require.NoError(t, err)
	return &Declaration{Descriptor: desc}
}

func declWithAPI(t *testing.T, code, version, api string) *Declaration {
	t.Helper()
	desc, err := newDescriptor(descriptorFile{Code: code, Version: version, API: api})
	require.NoError(t, err)
	return &Declaration{Descriptor: desc}
}

func requires(code, constraint string) Requirement {
	return Requirement{Code: code, Constraint: constraint}
}

func TestInitializeRunsHooksInDependencyOrder(t *testing.T) {
	var trace []string
	record := func(step string) func(*Agent) error {
		return func(*Agent) error {
			trace = append(trace, step)
			return nil
		}
	}

	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/web": func() Controller {
			return &stubController{init: record("web.init"), load: record("web.load"), ready: record("web.ready")}
		},
		"acme/core": func() Controller {
			return &stubController{init: record("core.init"), load: record("core.load"), ready: record("core.ready")}
		},
	}))

	err := d.Initialize([]*Declaration{
		decl(t, "acme/web", "1", requires("acme/core", "")),
		decl(t, "acme/core", "1"),
	})
	require.NoError(t, err)

	// Barrier semantics: both inits precede any load, both loads precede
	// any ready, and within a phase dependencies go first.
	assert.Equal(t, []string{
		"core.init", "web.init",
		"core.load", "web.load",
		"core.ready", "web.ready",
	}, trace)

	rt, ok := d.Runtime("acme/web")
	require.True(t, ok)
	assert.Equal(t, StatusLoaded, rt.Status())
}

func TestDispatchResolvesHandlerReference(t *testing.T) {
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/users": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					return a.AddRoute("/user/(id:d)", "GET", "users/view")
				},
				handlers: map[string]Handler{
					"users/view": func(r *Request) (any, error) {
						return "user-" + r.Param("id"), nil
					},
				},
			}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{decl(t, "acme/users", "1")}))

	res, err := d.Dispatch("/user/42", "GET")
	require.NoError(t, err)
	assert.Equal(t, "user-42", res.Value)
	assert.Equal(t, "acme/users", res.Module)
	assert.NotEmpty(t, res.RequestID)

	_, err = d.Dispatch("/user/42", "POST")
	assert.ErrorIs(t, err, ErrMethodNotAllowed)
	_, err = d.Dispatch("/nope", "GET")
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestDispatchUnresolvableReference(t *testing.T) {
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/broken": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					return a.AddRoute("/x", "", "missing/handler")
				},
			}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{decl(t, "acme/broken", "1")}))

	_, err := d.Dispatch("/x", "GET")
	assert.ErrorIs(t, err, ErrHandlerNotFound)
}

func TestDispatchBeforeInitialize(t *testing.T) {
	d := NewDistributor("main")
	_, err := d.Dispatch("/x", "GET")
	assert.ErrorIs(t, err, ErrSiteNotReady)
}

func TestInitializeTwice(t *testing.T) {
	d := NewDistributor("main")
	require.NoError(t, d.Initialize(nil))
	assert.ErrorIs(t, d.Initialize(nil), ErrAlreadyInitialized)
}

func TestMissingDependencyFailsModuleOnly(t *testing.T) {
	d := NewDistributor("main")
	err := d.Initialize([]*Declaration{
		decl(t, "acme/orphan", "1", requires("acme/ghost", "")),
		decl(t, "acme/solid", "1"),
	})
	require.NoError(t, err)

	orphan, _ := d.Runtime("acme/orphan")
	assert.Equal(t, StatusFailed, orphan.Status())
	assert.ErrorIs(t, orphan.Failure(), ErrMissingDependency)

	solid, _ := d.Runtime("acme/solid")
	assert.True(t, solid.Loaded())
}

func TestDuplicateDeclarationRejected(t *testing.T) {
	d := NewDistributor("main")
	require.NoError(t, d.Initialize([]*Declaration{
		decl(t, "acme/dup", "1"),
		decl(t, "acme/dup", "2"),
	}))

	// First declaration wins; the duplicate shows up in the info list.
	rt, _ := d.Runtime("acme/dup")
	assert.Equal(t, "1", rt.Descriptor().Version)

	infos := d.LoadedModulesInfo()
	require.Len(t, infos, 2)
	assert.Equal(t, StatusLoaded.String(), infos[0].Status)
	assert.Contains(t, infos[1].Error, "duplicate module")
}

func TestCyclicDependencyClassification(t *testing.T) {
	d := NewDistributor("main")
	err := d.Initialize([]*Declaration{
		decl(t, "acme/a", "1", requires("acme/b", "")),
		decl(t, "acme/b", "1", requires("acme/a", "")),
		decl(t, "acme/c", "1", requires("acme/a", "")),
		decl(t, "acme/d", "1"),
	})
	require.NoError(t, err)

	a, _ := d.Runtime("acme/a")
	b, _ := d.Runtime("acme/b")
	c, _ := d.Runtime("acme/c")
	assert.ErrorIs(t, a.Failure(), ErrCyclicDependency)
	assert.ErrorIs(t, b.Failure(), ErrCyclicDependency)
	assert.ErrorIs(t, c.Failure(), ErrUnsatisfiedDependency)

	free, _ := d.Runtime("acme/d")
	assert.True(t, free.Loaded())
}

func TestAllModulesFailed(t *testing.T) {
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/doomed": func() Controller {
			return &stubController{init: func(*Agent) error { return errors.New("boom") }}
		},
	}))
	err := d.Initialize([]*Declaration{decl(t, "acme/doomed", "1")})
	assert.ErrorIs(t, err, ErrAllModulesFailed)
}

func TestVersionConstraintCheckedAtReady(t *testing.T) {
	d := NewDistributor("main")
	require.NoError(t, d.Initialize([]*Declaration{
		decl(t, "acme/new", "1", requires("acme/old", "2")),
		decl(t, "acme/old", "1.9"),
	}))

	newMod, _ := d.Runtime("acme/new")
	assert.Equal(t, StatusFailed, newMod.Status())
	assert.ErrorIs(t, newMod.Failure(), ErrUnsatisfiedDependency)
	assert.False(t, d.Handshake("acme/new"))
	assert.True(t, d.Handshake("acme/old"))
}

func TestReadyFailureCascadesToDependents(t *testing.T) {
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/base": func() Controller {
			return &stubController{ready: func(*Agent) error { return errors.New("not after all") }}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{
		decl(t, "acme/base", "1"),
		decl(t, "acme/top", "1", requires("acme/base", "")),
	}))

	base, _ := d.Runtime("acme/base")
	assert.Equal(t, StatusFailed, base.Status())
	assert.False(t, d.Handshake("acme/base"))

	// The dependent runs later in the same pass and observes the demotion.
	top, _ := d.Runtime("acme/top")
	assert.ErrorIs(t, top.Failure(), ErrUnsatisfiedDependency)
}

func TestShadowRouteExecutesInTargetContext(t *testing.T) {
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/theme": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					return a.AddShadowRoute("/storefront/search", "acme/search", "search/run")
				},
			}
		},
		"acme/search": func() Controller {
			return &stubController{
				handlers: map[string]Handler{
					"search/run": func(r *Request) (any, error) {
						return r.Module().Code(), nil
					},
				},
			}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{
		decl(t, "acme/theme", "1"),
		decl(t, "acme/search", "1"),
	}))

	res, err := d.Dispatch("/storefront/search", "GET")
	require.NoError(t, err)
	assert.Equal(t, "acme/search", res.Value)
	assert.Equal(t, "acme/search", res.Module)
}

func TestShadowRouteToUnknownTarget(t *testing.T) {
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/theme": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					return a.AddShadowRoute("/broken", "acme/void", "x")
				},
			}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{decl(t, "acme/theme", "1")}))

	_, err := d.Dispatch("/broken", "GET")
	assert.ErrorIs(t, err, ErrUnknownModule)
}

func TestShadowRouteToFailedTarget(t *testing.T) {
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/theme": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					return a.AddShadowRoute("/half", "acme/flaky", "x")
				},
			}
		},
		"acme/flaky": func() Controller {
			return &stubController{init: func(*Agent) error { return errors.New("nope") }}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{
		decl(t, "acme/theme", "1"),
		decl(t, "acme/flaky", "1"),
	}))

	_, err := d.Dispatch("/half", "GET")
	assert.ErrorIs(t, err, ErrModuleNotReady)
}

func TestSelfShadowRejected(t *testing.T) {
	var regErr error
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/vain": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					regErr = a.AddShadowRoute("/me", "acme/vain", "x")
					return nil
				},
			}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{decl(t, "acme/vain", "1")}))
	assert.ErrorIs(t, regErr, ErrSelfShadow)
}

func TestAgentSealedAfterLoadBarrier(t *testing.T) {
	var captured *Agent
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/m": func() Controller {
			return &stubController{init: func(a *Agent) error {
				captured = a
				return nil
			}}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{decl(t, "acme/m", "1")}))

	require.NotNil(t, captured)
	assert.Panics(t, func() { _ = captured.AddRoute("/late", "", "h") })
	assert.Panics(t, func() { captured.Await("acme/m", func(bool) {}) })

	// Read-only operations stay valid.
	assert.True(t, captured.Handshake("acme/m"))
}

func TestAwaitFiresAfterLoadBarrier(t *testing.T) {
	var sawLoaded, sawMissing, flushedAfterLoads bool
	loads := 0

	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/a": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					a.Await("acme/b", func(ok bool) {
						sawLoaded = ok
						flushedAfterLoads = loads == 2
					})
					a.Await("acme/ghost", func(ok bool) { sawMissing = ok })
					return nil
				},
				load: func(*Agent) error { loads++; return nil },
			}
		},
		"acme/b": func() Controller {
			return &stubController{load: func(*Agent) error { loads++; return nil }}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{
		decl(t, "acme/a", "1"),
		decl(t, "acme/b", "1"),
	}))

	assert.True(t, sawLoaded)
	assert.False(t, sawMissing)
	assert.True(t, flushedAfterLoads, "awaits must fire only after every Load completed")
}

func TestAPICommandDualRegistration(t *testing.T) {
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/index": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					if err := a.AddAPICommand("#rebuild", func(r *Request, args ...any) (any, error) {
						return "rebuilt by " + r.Module().Code(), nil
					}); err != nil {
						return err
					}
					if err := a.AddAPICommand("stats", func(*Request, ...any) (any, error) {
						return 7, nil
					}); err != nil {
						return err
					}
					return a.AddRoute("/admin/reindex", "POST", func(r *Request) (any, error) {
						return r.Self("rebuild")
					})
				},
			}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{decl(t, "acme/index", "1")}))

	// "#" binds the command both for external calls and self-calls.
	proxy, err := d.APIProxy("acme/index")
	require.NoError(t, err)
	out, err := proxy.Call("rebuild")
	require.NoError(t, err)
	assert.Equal(t, "rebuilt by acme/index", out)

	res, err := d.Dispatch("/admin/reindex", "POST")
	require.NoError(t, err)
	assert.Equal(t, "rebuilt by acme/index", res.Value)

	// Without the prefix the command is not self-callable.
	rt, _ := d.Runtime("acme/index")
	_, selfBound := rt.SelfCommand("stats")
	assert.False(t, selfBound)
	_, externBound := rt.Command("stats")
	assert.True(t, externBound)
}

func TestAPIProxyByAPIName(t *testing.T) {
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/catalog": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					return a.AddAPICommand("count", func(*Request, ...any) (any, error) {
						return 3, nil
					})
				},
			}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{declWithAPI(t, "acme/catalog", "1", "catalog")}))

	proxy, err := d.APIProxy("catalog")
	require.NoError(t, err)
	assert.Equal(t, "acme/catalog", proxy.Module())
	assert.True(t, proxy.Ready())

	out, err := proxy.Call("count")
	require.NoError(t, err)
	assert.Equal(t, 3, out)

	_, err = proxy.Call("absent")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = d.APIProxy("nothing")
	assert.ErrorIs(t, err, ErrUnknownModule)
}

func TestDuplicateAPINameFailsLaterModule(t *testing.T) {
	d := NewDistributor("main")
	require.NoError(t, d.Initialize([]*Declaration{
		declWithAPI(t, "acme/first", "1", "shared"),
		declWithAPI(t, "acme/second", "1", "shared"),
	}))

	first, _ := d.Runtime("acme/first")
	assert.True(t, first.Loaded())
	second, _ := d.Runtime("acme/second")
	assert.ErrorIs(t, second.Failure(), ErrDuplicateAPIName)
}

func TestEventFanOut(t *testing.T) {
	var got []string
	listener := func(tag string) Handler {
		return func(r *Request) (any, error) {
			if r.Event == nil {
				return nil, errors.New("listener invoked without event")
			}
			got = append(got, tag+":"+r.Event.Type())
			return nil, nil
		}
	}

	var ownerLoadedAtListen bool
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/audit": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					ownerLoadedAtListen = a.Listen("acme/orders:placed", listener("audit"))
					return nil
				},
			}
		},
		"acme/orders": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					a.Listen("acme/orders:placed", listener("orders"))
					return nil
				},
			}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{
		decl(t, "acme/audit", "1", requires("acme/orders", "")),
		decl(t, "acme/orders", "1"),
	}))

	// The owner had not loaded yet when the listener registered.
	assert.False(t, ownerLoadedAtListen)

	require.NoError(t, d.Emitter("acme/orders:placed").Emit(map[string]any{"id": 1}))
	// Delivery follows initialization order: orders before audit.
	assert.Equal(t, []string{"orders:acme/orders:placed", "audit:acme/orders:placed"}, got)
}

func TestEventListenerErrorsJoined(t *testing.T) {
	failure := errors.New("listener exploded")
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/a": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					a.Listen("tick", func(*Request) (any, error) { return nil, failure })
					a.Listen("tick", func(*Request) (any, error) { return "ok", nil })
					return nil
				},
			}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{decl(t, "acme/a", "1")}))

	err := d.Emitter("tick").Emit(nil)
	assert.ErrorIs(t, err, failure)
}

func TestScriptDispatch(t *testing.T) {
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/tools": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					return a.AddScript("/cache/flush/(scope:w)", func(r *Request) (any, error) {
						return r.Param("scope") + " " + r.Args[0], nil
					})
				},
			}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{decl(t, "acme/tools", "1")}))

	res, err := d.DispatchScript("/cache/flush/pages", "--force")
	require.NoError(t, err)
	assert.Equal(t, "pages --force", res.Value)

	// Scripts do not leak into the web surface.
	_, err = d.Dispatch("/cache/flush/pages", "GET")
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestDeclaredRoutesRegisterWithoutController(t *testing.T) {
	decl, err := ParseDeclaration([]byte(`
code: acme/pages
version: "1"
routes:
  "GET about": "pages/about"
`))
	require.NoError(t, err)

	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/pages": func() Controller {
			return &stubController{handlers: map[string]Handler{
				"pages/about": func(*Request) (any, error) { return "about", nil },
			}}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{decl}))

	res, err := d.Dispatch("/about", "GET")
	require.NoError(t, err)
	assert.Equal(t, "about", res.Value)
}

func TestLoadedModulesInfoOrdering(t *testing.T) {
	d := NewDistributor("main")
	require.NoError(t, d.Initialize([]*Declaration{
		decl(t, "acme/web", "1", requires("acme/core", "")),
		decl(t, "acme/core", "1"),
		decl(t, "acme/lost", "1", requires("acme/ghost", "")),
	}))

	infos := d.LoadedModulesInfo()
	require.Len(t, infos, 3)
	assert.Equal(t, "acme/core", infos[0].Code)
	assert.Equal(t, "acme/web", infos[1].Code)
	assert.Equal(t, "acme/lost", infos[2].Code)
	assert.Equal(t, StatusFailed.String(), infos[2].Status)
}

func TestRoutesInspection(t *testing.T) {
	d := NewDistributor("main", WithControllers(ControllerRegistry{
		"acme/m": func() Controller {
			return &stubController{
				init: func(a *Agent) error {
					if err := a.AddRoute("/user/(id:d)", "GET", "users/view"); err != nil {
						return err
					}
					return a.AddScript("/jobs/run", "jobs/run")
				},
			}
		},
	}))
	require.NoError(t, d.Initialize([]*Declaration{decl(t, "acme/m", "1")}))

	infos := d.Routes()
	require.Len(t, infos, 2)
	assert.Equal(t, "/user/(id:d)", infos[0].Pattern)
	assert.Contains(t, infos[0].Regex, "(?P<id>")
	assert.Equal(t, "GET", infos[0].Methods)
	assert.False(t, infos[0].Script)
	assert.True(t, infos[1].Script)
}
