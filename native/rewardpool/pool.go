package rewardpool

import (
	"encoding/hex"
	"errors"
	"math/big"

	"deedchain/core/events"
	"deedchain/core/types"
	"deedchain/native/common"
	"deedchain/native/reward"
)

var (
	ErrNilState              = errors.New("rewardpool: state not configured")
	ErrNilLedger             = errors.New("rewardpool: reward ledger not configured")
	ErrUnauthorized          = errors.New("rewardpool: unauthorized")
	ErrInvalidAmount         = errors.New("rewardpool: amount must not be negative")
	ErrInsufficientLiquidity = errors.New("rewardpool: not enough liquidity")
	ErrNotEnoughReserved     = errors.New("rewardpool: not enough reserved amount")
)

const (
	EventTypeRewardReserved = "rewardpool.reserved"
	EventTypeRewardReleased = "rewardpool.released"
)

// PoolState is the minimal state surface the reservation layer needs: a
// single scalar tracking the reward amount promised to future purchasers of
// already-created contracts.
type PoolState interface {
	RewardReserved() (*big.Int, error)
	SetRewardReserved(amount *big.Int) error
}

type poolEvent struct {
	evt *types.Event
}

func (e poolEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e poolEvent) Event() *types.Event { return e.evt }

// Pool reserves reward liquidity when a sale contract is created and releases
// it (minting through the reward ledger) when a unit is actually purchased.
// Reservations may only be taken by the installment registry and releases only
// by the marketplace.
type Pool struct {
	state     PoolState
	ledger    *reward.Ledger
	authority *common.Authority
	emitter   events.Emitter
	addr      [20]byte
}

// NewPool creates a reservation pool bound to the given reward ledger. The
// addr is the pool's own principal, which must hold the reward-pool role so
// the ledger accepts its mints.
func NewPool(authority *common.Authority, ledger *reward.Ledger, addr [20]byte) *Pool {
	return &Pool{
		authority: authority,
		ledger:    ledger,
		emitter:   events.NoopEmitter{},
		addr:      addr,
	}
}

// SetState configures the state backend used by the pool.
func (p *Pool) SetState(state PoolState) { p.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (p *Pool) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

func (p *Pool) emit(event *types.Event) {
	if p == nil || p.emitter == nil || event == nil {
		return
	}
	p.emitter.Emit(poolEvent{evt: event})
}

// Reserve locks rewardPerUnit*units of reward liquidity for a newly created
// contract and returns the reserved amount. A zero reward is a valid no-op.
// Callable only by the installment registry principal.
func (p *Pool) Reserve(caller [20]byte, rewardPerUnit *big.Int, units uint64) (*big.Int, error) {
	if p == nil || p.state == nil {
		return nil, ErrNilState
	}
	if err := p.authority.Require(common.RoleRegistry, caller); err != nil {
		return nil, ErrUnauthorized
	}
	perUnit := big.NewInt(0)
	if rewardPerUnit != nil {
		perUnit = new(big.Int).Set(rewardPerUnit)
	}
	if perUnit.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	total := new(big.Int).Mul(perUnit, new(big.Int).SetUint64(units))
	if total.Sign() == 0 {
		return big.NewInt(0), nil
	}
	available, err := p.Available()
	if err != nil {
		return nil, err
	}
	if total.Cmp(available) > 0 {
		return nil, ErrInsufficientLiquidity
	}
	reserved, err := p.state.RewardReserved()
	if err != nil {
		return nil, err
	}
	if err := p.state.SetRewardReserved(new(big.Int).Add(reserved, total)); err != nil {
		return nil, err
	}
	p.emit(&types.Event{Type: EventTypeRewardReserved, Attributes: map[string]string{
		"amount": total.String(),
	}})
	return total, nil
}

// Release mints amount to the recipient and decrements the reservation.
// Callable only by the marketplace principal.
func (p *Pool) Release(caller, to [20]byte, amount *big.Int) error {
	if p == nil || p.state == nil {
		return ErrNilState
	}
	if p.ledger == nil {
		return ErrNilLedger
	}
	if err := p.authority.Require(common.RoleMarketplace, caller); err != nil {
		return ErrUnauthorized
	}
	amt := big.NewInt(0)
	if amount != nil {
		amt = new(big.Int).Set(amount)
	}
	if amt.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amt.Sign() == 0 {
		return nil
	}
	reserved, err := p.state.RewardReserved()
	if err != nil {
		return err
	}
	if amt.Cmp(reserved) > 0 {
		return ErrNotEnoughReserved
	}
	if err := p.ledger.MintRewardPool(p.addr, to, amt); err != nil {
		return err
	}
	if err := p.state.SetRewardReserved(new(big.Int).Sub(reserved, amt)); err != nil {
		return err
	}
	p.emit(&types.Event{Type: EventTypeRewardReleased, Attributes: map[string]string{
		"to":     hex.EncodeToString(to[:]),
		"amount": amt.String(),
	}})
	return nil
}

// Available returns the reward amount that can still be reserved: the
// reward-pool cap minus what has been minted and what is already promised.
// It is never negative by construction of the Reserve and Release guards.
func (p *Pool) Available() (*big.Int, error) {
	if p == nil || p.state == nil {
		return nil, ErrNilState
	}
	if p.ledger == nil {
		return nil, ErrNilLedger
	}
	minted, err := p.ledger.PoolMintedSupply()
	if err != nil {
		return nil, err
	}
	reserved, err := p.state.RewardReserved()
	if err != nil {
		return nil, err
	}
	available := p.ledger.PoolMintCap()
	available.Sub(available, minted)
	available.Sub(available, reserved)
	return available, nil
}

// Reserved returns the currently reserved reward amount.
func (p *Pool) Reserved() (*big.Int, error) {
	if p == nil || p.state == nil {
		return nil, ErrNilState
	}
	reserved, err := p.state.RewardReserved()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(reserved), nil
}
