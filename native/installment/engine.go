package installment

import (
	"math/big"
	"time"

	"deedchain/core/events"
	"deedchain/core/types"
	"deedchain/native/common"
)

// RegistryState is the state surface the registry needs: contract records,
// materialized unit records and the per-address unit counters that back the
// balance queries.
type RegistryState interface {
	InstallmentContractPut(c *SaleContract) error
	InstallmentContractGet(id uint64) (*SaleContract, bool, error)
	InstallmentUnitPut(u *Unit) error
	InstallmentUnitGet(contractID, index uint64) (*Unit, bool, error)
	InstallmentBalanceCredit(addr []byte, n uint64) error
	InstallmentBalanceDebit(addr []byte, n uint64) error
	InstallmentBalance(addr []byte) (uint64, error)
}

// RewardReserver is the slice of the reward pool the registry depends on:
// locking reward liquidity when a contract is created.
type RewardReserver interface {
	Reserve(caller [20]byte, rewardPerUnit *big.Int, units uint64) (*big.Int, error)
}

// CreateContractParams carries the full immutable definition of a new sale
// contract.
type CreateContractParams struct {
	ID            uint64
	Sellers       []Seller
	Buyers        [][20]byte
	UnitsTotal    uint64
	UnitPriceUSD  *big.Int
	RewardPerUnit *big.Int
	MetadataURI   string
}

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

// Registry is the installment-sale state machine: contract creation with
// quota-based seller allocation, lazy per-unit minting, cursor-driven
// transfers and progress tracking. Units can only move through Transfer,
// invoked by the marketplace; the generic approve/transferFrom surface is
// intentionally disabled to preserve the pricing/reward coupling.
type Registry struct {
	state     RegistryState
	pool      RewardReserver
	authority *common.Authority
	emitter   events.Emitter
	addr      [20]byte
	nowFn     func() int64
}

// NewRegistry creates a registry. The addr is the registry's own principal,
// which must hold the registry role so the reward pool accepts its
// reservations.
func NewRegistry(authority *common.Authority, addr [20]byte) *Registry {
	return &Registry{
		authority: authority,
		emitter:   events.NoopEmitter{},
		addr:      addr,
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the registry.
func (r *Registry) SetState(state RegistryState) { r.state = state }

// SetRewardPool configures the reward pool used for reservations.
func (r *Registry) SetRewardPool(pool RewardReserver) { r.pool = pool }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func (r *Registry) emit(event *types.Event) {
	if r == nil || r.emitter == nil || event == nil {
		return
	}
	r.emitter.Emit(registryEvent{evt: event})
}

func (r *Registry) loadOpen(id uint64) (*SaleContract, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	contract, ok, err := r.state.InstallmentContractGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || contract.Closed {
		return nil, ErrContractNotFound
	}
	return contract, nil
}

// CreateContract validates and persists a new sale contract, credits the
// sellers with their conceptual unit allocations and reserves the reward
// liquidity. Validation failures happen before any state is touched.
// Callable only by the minter role.
func (r *Registry) CreateContract(caller [20]byte, params CreateContractParams) (*SaleContract, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	if err := r.authority.Require(common.RoleMinter, caller); err != nil {
		return nil, ErrUnauthorized
	}
	if len(params.Sellers) == 0 {
		return nil, ErrNoSellers
	}
	quotaSum := 0
	for _, seller := range params.Sellers {
		quotaSum += int(seller.Quota)
	}
	if quotaSum != QuotaDenominator {
		return nil, ErrBadQuota
	}
	if params.UnitsTotal == 0 || params.UnitsTotal%QuotaDenominator != 0 {
		return nil, ErrBadUnitsAmount
	}
	if _, ok, err := r.state.InstallmentContractGet(params.ID); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrDuplicateContract
	}
	rewardPerUnit := big.NewInt(0)
	if params.RewardPerUnit != nil {
		rewardPerUnit = new(big.Int).Set(params.RewardPerUnit)
	}
	if rewardPerUnit.Sign() > 0 {
		if r.pool == nil {
			return nil, ErrNilState
		}
		if _, err := r.pool.Reserve(r.addr, rewardPerUnit, params.UnitsTotal); err != nil {
			return nil, err
		}
	}
	contract := &SaleContract{
		ID:            params.ID,
		Sellers:       append([]Seller(nil), params.Sellers...),
		Buyers:        append([][20]byte(nil), params.Buyers...),
		UnitsTotal:    params.UnitsTotal,
		UnitPriceUSD:  cloneOrZero(params.UnitPriceUSD),
		RewardPerUnit: rewardPerUnit,
		MetadataURI:   params.MetadataURI,
		CreatedAt:     r.nowFn(),
	}
	if err := r.state.InstallmentContractPut(contract); err != nil {
		return nil, err
	}
	for i, units := range contract.SellerAllocation() {
		if units == 0 {
			continue
		}
		seller := contract.Sellers[i]
		if err := r.state.InstallmentBalanceCredit(seller.Address[:], units); err != nil {
			return nil, err
		}
	}
	r.emit(NewContractCreatedEvent(contract))
	return contract.Clone(), nil
}

// Contract returns the open contract with the given id. Closed contracts are
// excluded from lookups.
func (r *Registry) Contract(id uint64) (*SaleContract, error) {
	contract, err := r.loadOpen(id)
	if err != nil {
		return nil, err
	}
	return contract.Clone(), nil
}

// NextUnitFor returns the unit index that would be transferred if buyer
// purchased now. Designated buyers read the buyer cursor, everyone else the
// sale cursor. The call is side-effect free; cursors advance only on
// Transfer.
func (r *Registry) NextUnitFor(contractID uint64, buyer [20]byte) (uint64, error) {
	contract, err := r.loadOpen(contractID)
	if err != nil {
		return 0, err
	}
	index := contract.NextSaleUnit
	if contract.IsBuyer(buyer) {
		index = contract.NextBuyerUnit
	}
	if index >= contract.UnitsTotal {
		return 0, ErrNoUnitsAvailable
	}
	return index, nil
}

// OwnerOf resolves the current holder of the unit, deriving seller ownership
// from the quota ranges when the unit has not been materialized yet.
func (r *Registry) OwnerOf(contractID, index uint64) ([20]byte, error) {
	contract, err := r.loadOpen(contractID)
	if err != nil {
		return [20]byte{}, err
	}
	if index >= contract.UnitsTotal {
		return [20]byte{}, ErrUnitNotFound
	}
	unit, ok, err := r.state.InstallmentUnitGet(contractID, index)
	if err != nil {
		return [20]byte{}, err
	}
	if ok {
		if unit.Burned {
			return [20]byte{}, ErrUnitNotFound
		}
		return unit.Owner, nil
	}
	owner, ok := contract.SellerAt(index)
	if !ok {
		return [20]byte{}, ErrUnitNotFound
	}
	return owner, nil
}

// Transfer is the lazy-mint-and-move primitive: it resolves the current
// unit for the recipient via the cursors, validates that from is the
// recognised holder, materializes the unit if needed and reassigns it to
// to. Returns the transferred unit index. Callable only by the marketplace.
func (r *Registry) Transfer(caller [20]byte, contractID uint64, from, to [20]byte) (uint64, error) {
	if r == nil || r.state == nil {
		return 0, ErrNilState
	}
	if err := r.authority.Require(common.RoleMarketplace, caller); err != nil {
		return 0, ErrUnauthorized
	}
	if from == to {
		return 0, ErrSelfTransfer
	}
	contract, err := r.loadOpen(contractID)
	if err != nil {
		return 0, err
	}
	toIsBuyer := contract.IsBuyer(to)
	index := contract.NextSaleUnit
	if toIsBuyer {
		index = contract.NextBuyerUnit
	}
	if index >= contract.UnitsTotal {
		return 0, ErrNoUnitsAvailable
	}
	owner, err := r.OwnerOf(contractID, index)
	if err != nil {
		return 0, err
	}
	if owner != from {
		return 0, ErrNotUnitOwner
	}
	unit, ok, err := r.state.InstallmentUnitGet(contractID, index)
	if err != nil {
		return 0, err
	}
	if !ok {
		unit = &Unit{ContractID: contractID, Index: index, Owner: from, Minted: true}
	}
	unit.Owner = to
	if err := r.state.InstallmentUnitPut(unit); err != nil {
		return 0, err
	}
	if err := r.state.InstallmentBalanceDebit(from[:], 1); err != nil {
		return 0, err
	}
	if err := r.state.InstallmentBalanceCredit(to[:], 1); err != nil {
		return 0, err
	}
	if toIsBuyer {
		contract.NextBuyerUnit++
		if index == contract.NextSaleUnit {
			contract.NextSaleUnit++
		}
	} else {
		contract.NextSaleUnit++
	}
	if err := r.state.InstallmentContractPut(contract); err != nil {
		return 0, err
	}
	r.emit(NewUnitTransferredEvent(contract, index, from, to))
	return index, nil
}

// Progress returns the number of units delivered to designated buyers.
func (r *Registry) Progress(contractID uint64) (uint64, error) {
	contract, err := r.loadOpen(contractID)
	if err != nil {
		return 0, err
	}
	return contract.NextBuyerUnit, nil
}

// Completed reports whether every unit has been delivered to a designated
// buyer.
func (r *Registry) Completed(contractID uint64) (bool, error) {
	contract, err := r.loadOpen(contractID)
	if err != nil {
		return false, err
	}
	return contract.NextBuyerUnit == contract.UnitsTotal, nil
}

// CloseContract marks the contract closed. Closed contracts are never
// deleted but are excluded from every lookup. Callable only by the minter.
func (r *Registry) CloseContract(caller [20]byte, contractID uint64) error {
	if r == nil || r.state == nil {
		return ErrNilState
	}
	if err := r.authority.Require(common.RoleMinter, caller); err != nil {
		return ErrUnauthorized
	}
	contract, err := r.loadOpen(contractID)
	if err != nil {
		return err
	}
	contract.Closed = true
	if err := r.state.InstallmentContractPut(contract); err != nil {
		return err
	}
	r.emit(NewContractClosedEvent(contract))
	return nil
}

// BalanceOf returns the number of units the address currently holds across
// all contracts, counting conceptual seller allocations.
func (r *Registry) BalanceOf(addr [20]byte) (uint64, error) {
	if r == nil || r.state == nil {
		return 0, ErrNilState
	}
	return r.state.InstallmentBalance(addr[:])
}

// UnitMetadataURI returns the metadata URI shared by all units of the
// contract.
func (r *Registry) UnitMetadataURI(contractID uint64) (string, error) {
	contract, err := r.loadOpen(contractID)
	if err != nil {
		return "", err
	}
	return contract.MetadataURI, nil
}

// Approve is rejected: unit ownership changes only through Transfer.
func (r *Registry) Approve([20]byte, uint64, uint64) error { return ErrOperationNotAllowed }

// SetApprovalForAll is rejected: operator delegation is not supported for
// installment units.
func (r *Registry) SetApprovalForAll([20]byte, [20]byte, bool) error { return ErrOperationNotAllowed }

// TransferFrom is rejected: the only sanctioned mutation path is Transfer,
// invoked by the marketplace.
func (r *Registry) TransferFrom([20]byte, [20]byte, uint64, uint64) error {
	return ErrOperationNotAllowed
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
