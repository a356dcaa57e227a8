package installment

import (
	"errors"
	"math/big"
	"testing"

	"deedchain/native/common"
)

type unitKey struct {
	contractID uint64
	index      uint64
}

type mockState struct {
	contracts map[uint64]*SaleContract
	units     map[unitKey]*Unit
	balances  map[string]uint64
}

func newMockState() *mockState {
	return &mockState{
		contracts: make(map[uint64]*SaleContract),
		units:     make(map[unitKey]*Unit),
		balances:  make(map[string]uint64),
	}
}

func (m *mockState) InstallmentContractPut(c *SaleContract) error {
	m.contracts[c.ID] = c.Clone()
	return nil
}

func (m *mockState) InstallmentContractGet(id uint64) (*SaleContract, bool, error) {
	c, ok := m.contracts[id]
	if !ok {
		return nil, false, nil
	}
	return c.Clone(), true, nil
}

func (m *mockState) InstallmentUnitPut(u *Unit) error {
	m.units[unitKey{u.ContractID, u.Index}] = u.Clone()
	return nil
}

func (m *mockState) InstallmentUnitGet(contractID, index uint64) (*Unit, bool, error) {
	u, ok := m.units[unitKey{contractID, index}]
	if !ok {
		return nil, false, nil
	}
	return u.Clone(), true, nil
}

func (m *mockState) InstallmentBalanceCredit(addr []byte, n uint64) error {
	m.balances[string(addr)] += n
	return nil
}

func (m *mockState) InstallmentBalanceDebit(addr []byte, n uint64) error {
	if m.balances[string(addr)] < n {
		return errors.New("balance underflow")
	}
	m.balances[string(addr)] -= n
	return nil
}

func (m *mockState) InstallmentBalance(addr []byte) (uint64, error) {
	return m.balances[string(addr)], nil
}

type mockReserver struct {
	reserved *big.Int
	err      error
}

func (m *mockReserver) Reserve(caller [20]byte, rewardPerUnit *big.Int, units uint64) (*big.Int, error) {
	if m.err != nil {
		return nil, m.err
	}
	total := new(big.Int).Mul(rewardPerUnit, new(big.Int).SetUint64(units))
	m.reserved = total
	return total, nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

var (
	minterAddr = newTestAddress(0x01)
	marketAddr = newTestAddress(0x02)
	sellerA    = newTestAddress(0xA1)
	sellerB    = newTestAddress(0xA2)
	buyerAddr  = newTestAddress(0xB1)
	thirdParty = newTestAddress(0xC1)
)

func newTestRegistry(t *testing.T) (*Registry, *mockState, *mockReserver) {
	t.Helper()
	authority := common.NewAuthority()
	authority.Grant(common.RoleMinter, minterAddr)
	authority.Grant(common.RoleMarketplace, marketAddr)
	authority.Grant(common.RoleRegistry, newTestAddress(0x03))
	registry := NewRegistry(authority, newTestAddress(0x03))
	state := newMockState()
	registry.SetState(state)
	reserver := &mockReserver{}
	registry.SetRewardPool(reserver)
	registry.SetNowFunc(func() int64 { return 1700000000 })
	return registry, state, reserver
}

func defaultParams() CreateContractParams {
	return CreateContractParams{
		ID: 1,
		Sellers: []Seller{
			{Address: sellerA, Quota: 60},
			{Address: sellerB, Quota: 40},
		},
		Buyers:        [][20]byte{buyerAddr},
		UnitsTotal:    400,
		UnitPriceUSD:  big.NewInt(100),
		RewardPerUnit: big.NewInt(5),
		MetadataURI:   "ipfs://deed/1",
	}
}

func TestCreateContractSplitsAllocationByQuota(t *testing.T) {
	registry, state, reserver := newTestRegistry(t)

	contract, err := registry.CreateContract(minterAddr, defaultParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if contract.CreatedAt != 1700000000 {
		t.Fatalf("expected pinned timestamp, got %d", contract.CreatedAt)
	}
	if got := state.balances[string(sellerA[:])]; got != 240 {
		t.Fatalf("expected seller A to hold 240 units, got %d", got)
	}
	if got := state.balances[string(sellerB[:])]; got != 160 {
		t.Fatalf("expected seller B to hold 160 units, got %d", got)
	}
	if reserver.reserved == nil || reserver.reserved.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("expected 2000 reward reserved, got %v", reserver.reserved)
	}

	// Unminted units resolve to sellers by contiguous quota ranges.
	owner, err := registry.OwnerOf(1, 239)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner != sellerA {
		t.Fatalf("unit 239 should belong to seller A")
	}
	owner, _ = registry.OwnerOf(1, 240)
	if owner != sellerB {
		t.Fatalf("unit 240 should belong to seller B")
	}
}

func TestCreateContractValidation(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	params := defaultParams()
	params.Sellers[0].Quota = 50
	if _, err := registry.CreateContract(minterAddr, params); !errors.Is(err, ErrBadQuota) {
		t.Fatalf("expected ErrBadQuota, got %v", err)
	}

	params = defaultParams()
	params.UnitsTotal = 410
	if _, err := registry.CreateContract(minterAddr, params); !errors.Is(err, ErrBadUnitsAmount) {
		t.Fatalf("expected ErrBadUnitsAmount for indivisible total, got %v", err)
	}

	params = defaultParams()
	params.UnitsTotal = 0
	if _, err := registry.CreateContract(minterAddr, params); !errors.Is(err, ErrBadUnitsAmount) {
		t.Fatalf("expected ErrBadUnitsAmount for zero total, got %v", err)
	}

	params = defaultParams()
	params.Sellers = nil
	if _, err := registry.CreateContract(minterAddr, params); !errors.Is(err, ErrNoSellers) {
		t.Fatalf("expected ErrNoSellers, got %v", err)
	}

	if _, err := registry.CreateContract(thirdParty, defaultParams()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCreateContractRejectsDuplicateID(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	if _, err := registry.CreateContract(minterAddr, defaultParams()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := registry.CreateContract(minterAddr, defaultParams()); !errors.Is(err, ErrDuplicateContract) {
		t.Fatalf("expected ErrDuplicateContract, got %v", err)
	}
}

func TestTransferToBuyerAdvancesBothCursors(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	if _, err := registry.CreateContract(minterAddr, defaultParams()); err != nil {
		t.Fatalf("create: %v", err)
	}

	index, err := registry.Transfer(marketAddr, 1, sellerA, buyerAddr)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if index != 0 {
		t.Fatalf("expected unit 0, got %d", index)
	}

	contract, _ := registry.Contract(1)
	if contract.NextSaleUnit != 1 || contract.NextBuyerUnit != 1 {
		t.Fatalf("expected both cursors at 1, got %d/%d", contract.NextSaleUnit, contract.NextBuyerUnit)
	}

	owner, _ := registry.OwnerOf(1, 0)
	if owner != buyerAddr {
		t.Fatalf("unit 0 should belong to the buyer")
	}
	progress, _ := registry.Progress(1)
	if progress != 1 {
		t.Fatalf("expected progress 1, got %d", progress)
	}
}

func TestBuyerCursorLagsThirdPartySales(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	if _, err := registry.CreateContract(minterAddr, defaultParams()); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Two third-party sales move only the sale cursor.
	if _, err := registry.Transfer(marketAddr, 1, sellerA, thirdParty); err != nil {
		t.Fatalf("third-party transfer: %v", err)
	}
	other := newTestAddress(0xC2)
	if _, err := registry.Transfer(marketAddr, 1, sellerA, other); err != nil {
		t.Fatalf("third-party transfer: %v", err)
	}
	contract, _ := registry.Contract(1)
	if contract.NextSaleUnit != 2 || contract.NextBuyerUnit != 0 {
		t.Fatalf("expected cursors 2/0, got %d/%d", contract.NextSaleUnit, contract.NextBuyerUnit)
	}

	// The buyer's next unit is 0, currently held by the first third party.
	index, err := registry.NextUnitFor(1, buyerAddr)
	if err != nil {
		t.Fatalf("next unit: %v", err)
	}
	if index != 0 {
		t.Fatalf("expected buyer cursor at 0, got %d", index)
	}

	// Buying it back advances only the buyer cursor; the sale cursor has
	// already passed unit 0.
	if _, err := registry.Transfer(marketAddr, 1, thirdParty, buyerAddr); err != nil {
		t.Fatalf("buy-back transfer: %v", err)
	}
	contract, _ = registry.Contract(1)
	if contract.NextSaleUnit != 2 || contract.NextBuyerUnit != 1 {
		t.Fatalf("expected cursors 2/1, got %d/%d", contract.NextSaleUnit, contract.NextBuyerUnit)
	}

	progress, _ := registry.Progress(1)
	if progress != 1 {
		t.Fatalf("expected progress 1, got %d", progress)
	}
}

func TestTransferValidatesHolder(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	if _, err := registry.CreateContract(minterAddr, defaultParams()); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Unit 0 belongs to seller A, not seller B.
	if _, err := registry.Transfer(marketAddr, 1, sellerB, thirdParty); !errors.Is(err, ErrNotUnitOwner) {
		t.Fatalf("expected ErrNotUnitOwner, got %v", err)
	}
	if _, err := registry.Transfer(marketAddr, 1, sellerA, sellerA); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
	if _, err := registry.Transfer(thirdParty, 1, sellerA, thirdParty); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCompletedWhenAllUnitsDelivered(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	params := defaultParams()
	params.UnitsTotal = 200
	if _, err := registry.CreateContract(minterAddr, params); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := uint64(0); i < 200; i++ {
		seller := sellerA
		if i >= 120 {
			seller = sellerB
		}
		if _, err := registry.Transfer(marketAddr, 1, seller, buyerAddr); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}

	completed, err := registry.Completed(1)
	if err != nil {
		t.Fatalf("completed: %v", err)
	}
	if !completed {
		t.Fatalf("expected contract completed")
	}
	if _, err := registry.Transfer(marketAddr, 1, buyerAddr, thirdParty); !errors.Is(err, ErrNoUnitsAvailable) {
		t.Fatalf("expected ErrNoUnitsAvailable, got %v", err)
	}
	balance, _ := registry.BalanceOf(buyerAddr)
	if balance != 200 {
		t.Fatalf("expected buyer to hold 200 units, got %d", balance)
	}
}

func TestCloseContractHidesItFromLookups(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	if _, err := registry.CreateContract(minterAddr, defaultParams()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := registry.CloseContract(marketAddr, 1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := registry.CloseContract(minterAddr, 1); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := registry.Contract(1); !errors.Is(err, ErrContractNotFound) {
		t.Fatalf("expected ErrContractNotFound after close, got %v", err)
	}
	if _, err := registry.Transfer(marketAddr, 1, sellerA, buyerAddr); !errors.Is(err, ErrContractNotFound) {
		t.Fatalf("expected ErrContractNotFound on transfer, got %v", err)
	}
}

func TestApprovalSurfaceIsDisabled(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	if err := registry.Approve(thirdParty, 1, 0); !errors.Is(err, ErrOperationNotAllowed) {
		t.Fatalf("expected ErrOperationNotAllowed, got %v", err)
	}
	if err := registry.SetApprovalForAll(thirdParty, buyerAddr, true); !errors.Is(err, ErrOperationNotAllowed) {
		t.Fatalf("expected ErrOperationNotAllowed, got %v", err)
	}
	if err := registry.TransferFrom(thirdParty, buyerAddr, 1, 0); !errors.Is(err, ErrOperationNotAllowed) {
		t.Fatalf("expected ErrOperationNotAllowed, got %v", err)
	}
}

func TestMetadataURIIsSharedAcrossUnits(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	if _, err := registry.CreateContract(minterAddr, defaultParams()); err != nil {
		t.Fatalf("create: %v", err)
	}
	uri, err := registry.UnitMetadataURI(1)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if uri != "ipfs://deed/1" {
		t.Fatalf("unexpected metadata uri %q", uri)
	}
}
