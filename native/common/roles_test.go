package common

import (
	"errors"
	"testing"
)

func TestAuthorityGrantAndRequire(t *testing.T) {
	authority := NewAuthority()
	var admin [20]byte
	admin[0] = 0x01

	if err := authority.Require(RoleAdmin, admin); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized before grant, got %v", err)
	}
	authority.Grant(RoleAdmin, admin)
	if err := authority.Require(RoleAdmin, admin); err != nil {
		t.Fatalf("require: %v", err)
	}
	if authority.HasRole(RoleMinter, admin) {
		t.Fatalf("admin must not hold minter implicitly")
	}

	var replacement [20]byte
	replacement[0] = 0x02
	authority.Grant(RoleAdmin, replacement)
	if authority.HasRole(RoleAdmin, admin) {
		t.Fatalf("grant must replace the previous holder")
	}
	holder, ok := authority.Holder(RoleAdmin)
	if !ok || holder != replacement {
		t.Fatalf("unexpected holder %x ok=%v", holder, ok)
	}
}

func TestZeroAddressIsNeverAuthorized(t *testing.T) {
	authority := NewAuthority()
	var zero [20]byte
	authority.Grant(RoleAdmin, zero)
	if err := authority.Require(RoleAdmin, zero); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected zero address to stay unauthorized, got %v", err)
	}
}

func TestModuleAddressIsStableAndDistinct(t *testing.T) {
	a := ModuleAddress("marketplace")
	b := ModuleAddress("marketplace")
	c := ModuleAddress("registry")
	if a != b {
		t.Fatalf("module addresses must be deterministic")
	}
	if a == c {
		t.Fatalf("distinct modules must not collide")
	}
	if a == ([20]byte{}) {
		t.Fatalf("module address must not be zero")
	}
}
