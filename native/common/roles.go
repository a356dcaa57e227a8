package common

import (
	"errors"
	"sync"
)

// Role identifies a privileged principal recognised by the ledger modules.
// Every privileged operation resolves its caller against the shared
// Authority instead of scattering per-field address comparisons across
// engines.
type Role uint8

const (
	// RoleAdmin may change module parameters and withdraw accumulated
	// marketplace margin.
	RoleAdmin Role = iota
	// RoleMinter may create and close installment contracts.
	RoleMinter
	// RoleMarketplace is the only principal allowed to move units and
	// release rewards.
	RoleMarketplace
	// RoleRegistry is the only principal allowed to reserve reward
	// liquidity for newly created contracts.
	RoleRegistry
	// RoleRewardPool is the only principal allowed to mint against the
	// reward-pool allowance.
	RoleRewardPool
)

// ErrUnauthorized is returned when the caller does not hold the required role.
var ErrUnauthorized = errors.New("roles: unauthorized")

// String returns the canonical role name.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleMinter:
		return "minter"
	case RoleMarketplace:
		return "marketplace"
	case RoleRegistry:
		return "registry"
	case RoleRewardPool:
		return "rewardPool"
	default:
		return "unknown"
	}
}

// Authority maps roles to their registered principal addresses. A zero
// address means the role is unassigned and every check against it fails.
type Authority struct {
	mu      sync.RWMutex
	holders map[Role][20]byte
}

// NewAuthority creates an empty authority with no roles assigned.
func NewAuthority() *Authority {
	return &Authority{holders: make(map[Role][20]byte)}
}

// Grant assigns the role to the given address, replacing any previous holder.
func (a *Authority) Grant(role Role, addr [20]byte) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.holders[role] = addr
}

// Holder returns the address currently holding the role.
func (a *Authority) Holder(role Role) ([20]byte, bool) {
	if a == nil {
		return [20]byte{}, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	addr, ok := a.holders[role]
	if !ok || addr == ([20]byte{}) {
		return [20]byte{}, false
	}
	return addr, true
}

// Require returns ErrUnauthorized unless caller holds the role.
func (a *Authority) Require(role Role, caller [20]byte) error {
	holder, ok := a.Holder(role)
	if !ok || holder != caller {
		return ErrUnauthorized
	}
	return nil
}

// HasRole reports whether caller holds the role.
func (a *Authority) HasRole(role Role, caller [20]byte) bool {
	return a.Require(role, caller) == nil
}
