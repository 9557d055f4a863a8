package modhost

import (
	"errors"
)

// Core errors
var (
	// Declaration and discovery errors
	ErrInvalidModuleCode  = errors.New("invalid module code")
	ErrInvalidVersion     = errors.New("invalid module version")
	ErrInvalidConstraint  = errors.New("invalid version constraint")
	ErrDuplicateModule    = errors.New("duplicate module code")
	ErrDuplicateAPIName   = errors.New("duplicate api name")
	ErrCyclicDependency   = errors.New("cyclic module dependency")
	ErrMissingDependency  = errors.New("module depends on non-existent module")
	ErrDeclarationInvalid = errors.New("invalid module declaration")

	// Lifecycle errors
	ErrUnsatisfiedDependency = errors.New("unsatisfied module dependency")
	ErrAllModulesFailed      = errors.New("every module failed to initialize")
	ErrAlreadyInitialized    = errors.New("site already initialized")
	ErrSiteNotReady          = errors.New("site not initialized")
	ErrModuleNotReady        = errors.New("module not ready")
	ErrUnknownModule         = errors.New("unknown module")

	// Route registration errors
	ErrSelfShadow       = errors.New("shadow route targets its own module")
	ErrInvalidRoute     = errors.New("invalid route pattern")
	ErrInvalidLazyRoute = errors.New("invalid lazy route tree")
	ErrDuplicateCommand = errors.New("api command already registered")
	ErrEmptyHandlerRef  = errors.New("empty handler reference")

	// Dispatch errors
	ErrRouteNotFound    = errors.New("no route matches path")
	ErrMethodNotAllowed = errors.New("method not allowed for path")
	ErrHandlerNotFound  = errors.New("handler not found for matched route")
	ErrUnknownCommand   = errors.New("unknown api command")

	// Domain registry errors
	ErrNoMatch         = errors.New("no domain binding matches host")
	ErrUnknownSite     = errors.New("unknown site identifier")
	ErrBindingInvalid  = errors.New("invalid domain binding")
	ErrDuplicateHost   = errors.New("duplicate host in binding table")
	ErrStoreUnwritable = errors.New("binding store write failed")
)
