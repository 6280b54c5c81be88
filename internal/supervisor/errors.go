package supervisor

import (
	"errors"
	"fmt"

	"github.com/loykin/chainforge/internal/registry"
)

// Sentinel errors returned by lifecycle operations. They are terminal for
// the invocation; nothing in the supervisor retries automatically.
var (
	ErrAlreadyRunning       = errors.New("already running")
	ErrNotRunning           = errors.New("not running")
	ErrDependencyNotRunning = errors.New("node must be running first")
)

// SpawnError reports that the OS refused to create a service process. The
// wrapped error carries the underlying OS detail (missing binary,
// permission, ...).
type SpawnError struct {
	Service registry.Service
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Service, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// BindError reports that the gateway could not bind its listen address.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

func alreadyRunning(s registry.Service) error {
	return fmt.Errorf("%s is %w", s, ErrAlreadyRunning)
}

func notRunning(s registry.Service) error {
	return fmt.Errorf("%s is %w", s, ErrNotRunning)
}
