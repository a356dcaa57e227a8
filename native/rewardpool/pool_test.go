package rewardpool

import (
	"errors"
	"math/big"
	"testing"

	"deedchain/core/types"
	"deedchain/native/common"
	"deedchain/native/reward"
)

type mockState struct {
	accounts    map[string]*types.Account
	ownerMinted *big.Int
	poolMinted  *big.Int
	reserved    *big.Int
}

func newMockState() *mockState {
	return &mockState{
		accounts:    make(map[string]*types.Account),
		ownerMinted: big.NewInt(0),
		poolMinted:  big.NewInt(0),
		reserved:    big.NewInt(0),
	}
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	acc, ok := m.accounts[string(addr)]
	if !ok {
		return (&types.Account{}).Normalize(), nil
	}
	return acc.Clone(), nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	m.accounts[string(addr)] = account.Clone()
	return nil
}

func (m *mockState) RewardOwnerMinted() (*big.Int, error) { return new(big.Int).Set(m.ownerMinted), nil }

func (m *mockState) SetRewardOwnerMinted(amount *big.Int) error {
	m.ownerMinted = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) RewardPoolMinted() (*big.Int, error) { return new(big.Int).Set(m.poolMinted), nil }

func (m *mockState) SetRewardPoolMinted(amount *big.Int) error {
	m.poolMinted = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) RewardReserved() (*big.Int, error) { return new(big.Int).Set(m.reserved), nil }

func (m *mockState) SetRewardReserved(amount *big.Int) error {
	m.reserved = new(big.Int).Set(amount)
	return nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestPool(t *testing.T, poolCap int64) (*Pool, *mockState, [20]byte, [20]byte) {
	t.Helper()
	poolAddr := newTestAddress(0x01)
	registryAddr := newTestAddress(0x02)
	marketAddr := newTestAddress(0x03)
	authority := common.NewAuthority()
	authority.Grant(common.RoleRewardPool, poolAddr)
	authority.Grant(common.RoleRegistry, registryAddr)
	authority.Grant(common.RoleMarketplace, marketAddr)
	ledger := reward.NewLedger(authority)
	ledger.SetCaps(big.NewInt(0), big.NewInt(poolCap))
	state := newMockState()
	ledger.SetState(state)
	pool := NewPool(authority, ledger, poolAddr)
	pool.SetState(state)
	return pool, state, registryAddr, marketAddr
}

func TestReserveLocksLiquidity(t *testing.T) {
	pool, _, registryAddr, _ := newTestPool(t, 1000)

	total, err := pool.Reserve(registryAddr, big.NewInt(3), 200)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if total.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected 600 reserved, got %s", total)
	}
	available, err := pool.Available()
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if available.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected 400 available, got %s", available)
	}

	if _, err := pool.Reserve(registryAddr, big.NewInt(3), 200); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestReserveZeroRewardIsNoop(t *testing.T) {
	pool, _, registryAddr, _ := newTestPool(t, 1000)
	total, err := pool.Reserve(registryAddr, big.NewInt(0), 500)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if total.Sign() != 0 {
		t.Fatalf("expected zero reservation, got %s", total)
	}
	reserved, _ := pool.Reserved()
	if reserved.Sign() != 0 {
		t.Fatalf("expected nothing reserved, got %s", reserved)
	}
}

func TestReserveRequiresRegistryRole(t *testing.T) {
	pool, _, _, marketAddr := newTestPool(t, 1000)
	if _, err := pool.Reserve(marketAddr, big.NewInt(1), 1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestReleaseMintsAndDecrementsReservation(t *testing.T) {
	pool, _, registryAddr, marketAddr := newTestPool(t, 1000)
	buyer := newTestAddress(0x10)

	if _, err := pool.Reserve(registryAddr, big.NewInt(5), 100); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := pool.Release(marketAddr, buyer, big.NewInt(5)); err != nil {
		t.Fatalf("release: %v", err)
	}

	reserved, _ := pool.Reserved()
	if reserved.Cmp(big.NewInt(495)) != 0 {
		t.Fatalf("expected 495 reserved, got %s", reserved)
	}
	// Releases consume the pool cap through minting; availability is
	// unchanged by a release.
	available, _ := pool.Available()
	if available.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected 500 available, got %s", available)
	}
}

func TestReleaseRejectsBeyondReservation(t *testing.T) {
	pool, _, registryAddr, marketAddr := newTestPool(t, 1000)
	buyer := newTestAddress(0x10)
	if _, err := pool.Reserve(registryAddr, big.NewInt(1), 10); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := pool.Release(marketAddr, buyer, big.NewInt(11)); !errors.Is(err, ErrNotEnoughReserved) {
		t.Fatalf("expected ErrNotEnoughReserved, got %v", err)
	}
}

func TestReleaseRequiresMarketplaceRole(t *testing.T) {
	pool, _, registryAddr, _ := newTestPool(t, 1000)
	buyer := newTestAddress(0x10)
	if _, err := pool.Reserve(registryAddr, big.NewInt(1), 10); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := pool.Release(registryAddr, buyer, big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
