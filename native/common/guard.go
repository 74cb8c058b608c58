package common

import "errors"

var (
	ErrModulePaused = errors.New("module paused")
	ErrUnauthorized = errors.New("unauthorized")
)

// PauseView exposes the module pause registry to engines.
type PauseView interface {
	IsPaused(module string) bool
}

// RoleView exposes role membership checks to engines. Implementations treat
// read failures as "no role" so authorization always fails closed.
type RoleView interface {
	HasRole(role string, addr [20]byte) bool
}

// Guard rejects state-mutating operations while a module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// RequireRole verifies the caller holds the named role before any state
// mutation takes place.
func RequireRole(r RoleView, role string, caller [20]byte) error {
	if r == nil {
		return ErrUnauthorized
	}
	if !r.HasRole(role, caller) {
		return ErrUnauthorized
	}
	return nil
}
