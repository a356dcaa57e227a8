package reward

import (
	"errors"
	"math/big"
	"testing"

	"deedchain/core/types"
	"deedchain/native/common"
)

type mockState struct {
	accounts    map[string]*types.Account
	ownerMinted *big.Int
	poolMinted  *big.Int
}

func newMockState() *mockState {
	return &mockState{
		accounts:    make(map[string]*types.Account),
		ownerMinted: big.NewInt(0),
		poolMinted:  big.NewInt(0),
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

func (m *mockState) RewardOwnerMinted() (*big.Int, error) {
	return new(big.Int).Set(m.ownerMinted), nil
}

func (m *mockState) SetRewardOwnerMinted(amount *big.Int) error {
	m.ownerMinted = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) RewardPoolMinted() (*big.Int, error) {
	return new(big.Int).Set(m.poolMinted), nil
}

func (m *mockState) SetRewardPoolMinted(amount *big.Int) error {
	m.poolMinted = new(big.Int).Set(amount)
	return nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestLedger(t *testing.T) (*Ledger, *mockState, [20]byte, [20]byte) {
	t.Helper()
	admin := newTestAddress(0x01)
	poolAddr := newTestAddress(0x02)
	authority := common.NewAuthority()
	authority.Grant(common.RoleAdmin, admin)
	authority.Grant(common.RoleRewardPool, poolAddr)
	ledger := NewLedger(authority)
	state := newMockState()
	ledger.SetState(state)
	return ledger, state, admin, poolAddr
}

func TestMintOwnerRespectsCap(t *testing.T) {
	ledger, _, admin, _ := newTestLedger(t)
	ledger.SetCaps(big.NewInt(1000), big.NewInt(4000))
	recipient := newTestAddress(0x10)

	if err := ledger.MintOwner(admin, recipient, big.NewInt(600)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.MintOwner(admin, recipient, big.NewInt(500)); !errors.Is(err, ErrCapExceeded) {
		t.Fatalf("expected ErrCapExceeded, got %v", err)
	}
	if err := ledger.MintOwner(admin, recipient, big.NewInt(400)); err != nil {
		t.Fatalf("mint up to cap: %v", err)
	}
	balance, err := ledger.BalanceOf(recipient)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected balance 1000, got %s", balance)
	}
}

func TestMintOwnerRequiresAdmin(t *testing.T) {
	ledger, _, _, _ := newTestLedger(t)
	outsider := newTestAddress(0x99)
	if err := ledger.MintOwner(outsider, outsider, big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestMintRewardPoolRequiresPoolRole(t *testing.T) {
	ledger, _, admin, poolAddr := newTestLedger(t)
	recipient := newTestAddress(0x10)
	if err := ledger.MintRewardPool(admin, recipient, big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for admin, got %v", err)
	}
	if err := ledger.MintRewardPool(poolAddr, recipient, big.NewInt(1)); err != nil {
		t.Fatalf("pool mint: %v", err)
	}
}

func TestMintRejectsNonPositiveAmounts(t *testing.T) {
	ledger, _, admin, _ := newTestLedger(t)
	recipient := newTestAddress(0x10)
	if err := ledger.MintOwner(admin, recipient, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if err := ledger.MintOwner(admin, recipient, big.NewInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestBurnFreesPoolCapacityOnly(t *testing.T) {
	ledger, _, admin, poolAddr := newTestLedger(t)
	ledger.SetCaps(big.NewInt(1000), big.NewInt(500))
	holder := newTestAddress(0x10)

	if err := ledger.MintOwner(admin, holder, big.NewInt(800)); err != nil {
		t.Fatalf("owner mint: %v", err)
	}
	if err := ledger.MintRewardPool(poolAddr, holder, big.NewInt(300)); err != nil {
		t.Fatalf("pool mint: %v", err)
	}

	// Burning more than the pool has minted must fail even though the
	// holder's balance covers it.
	if err := ledger.Burn(holder, big.NewInt(400)); !errors.Is(err, ErrInsufficientPoolMintedSupply) {
		t.Fatalf("expected ErrInsufficientPoolMintedSupply, got %v", err)
	}

	if err := ledger.Burn(holder, big.NewInt(300)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	poolMinted, err := ledger.PoolMintedSupply()
	if err != nil {
		t.Fatalf("pool minted: %v", err)
	}
	if poolMinted.Sign() != 0 {
		t.Fatalf("expected pool minted 0, got %s", poolMinted)
	}

	// The freed capacity is available to the pool again.
	if err := ledger.MintRewardPool(poolAddr, holder, big.NewInt(500)); err != nil {
		t.Fatalf("pool mint after burn: %v", err)
	}
}

func TestBurnRequiresBalance(t *testing.T) {
	ledger, _, _, poolAddr := newTestLedger(t)
	holder := newTestAddress(0x10)
	if err := ledger.MintRewardPool(poolAddr, holder, big.NewInt(100)); err != nil {
		t.Fatalf("pool mint: %v", err)
	}
	broke := newTestAddress(0x11)
	if err := ledger.Burn(broke, big.NewInt(50)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestTransferConservesBalances(t *testing.T) {
	ledger, _, admin, _ := newTestLedger(t)
	from := newTestAddress(0x10)
	to := newTestAddress(0x11)
	if err := ledger.MintOwner(admin, from, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(from, to, big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	fromBalance, _ := ledger.BalanceOf(from)
	toBalance, _ := ledger.BalanceOf(to)
	if fromBalance.Cmp(big.NewInt(40)) != 0 || toBalance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("unexpected balances %s/%s", fromBalance, toBalance)
	}
	if err := ledger.Transfer(from, to, big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestTotalSupplyTracksBothCounters(t *testing.T) {
	ledger, _, admin, poolAddr := newTestLedger(t)
	holder := newTestAddress(0x10)
	if err := ledger.MintOwner(admin, holder, big.NewInt(70)); err != nil {
		t.Fatalf("owner mint: %v", err)
	}
	if err := ledger.MintRewardPool(poolAddr, holder, big.NewInt(30)); err != nil {
		t.Fatalf("pool mint: %v", err)
	}
	total, err := ledger.TotalSupply()
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if total.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected total 100, got %s", total)
	}
	if err := ledger.Burn(holder, big.NewInt(30)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	total, _ = ledger.TotalSupply()
	if total.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("expected total 70 after burn, got %s", total)
	}
}

func TestDefaultCapsSplitTotalSupply(t *testing.T) {
	total := new(big.Int).Add(DefaultOwnerMintCap, DefaultPoolMintCap)
	expected, _ := new(big.Int).SetString("8880101010000000", 10)
	if total.Cmp(expected) != 0 {
		t.Fatalf("expected caps to sum to %s, got %s", expected, total)
	}
}
