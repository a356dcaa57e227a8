package marketplace

import (
	"errors"
	"fmt"
	"math/big"

	"deedchain/core/events"
	"deedchain/core/types"
	"deedchain/native/common"
	"deedchain/native/installment"
)

var (
	ErrNilState              = errors.New("marketplace: not fully configured")
	ErrUnauthorized          = errors.New("marketplace: unauthorized")
	ErrBadInterestRate       = errors.New("marketplace: interest rate must be in (0, 100]")
	ErrInsufficientAllowance = errors.New("marketplace: insufficient stable-currency allowance")
	ErrUnitHasNoOwner        = errors.New("marketplace: unit has no owner")
	ErrCallerAlreadyOwnsUnit = errors.New("marketplace: caller already owns the unit")
)

// DefaultInterestRate is the percentage added on top of the base unit price
// for designated buyers.
const DefaultInterestRate = 10

// DefaultUSDScale converts whole-USD unit prices to stable-currency base
// units (six decimals, USDT-style).
var DefaultUSDScale = big.NewInt(1_000_000)

// StableLedger is the fungible-token surface the marketplace settles
// against. Allowance-gated pulls keep the buyer in control of spend.
type StableLedger interface {
	Allowance(owner, spender [20]byte) (*big.Int, error)
	TransferFrom(spender, owner, to [20]byte, amount *big.Int) error
	Transfer(from, to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) (*big.Int, error)
}

// UnitRegistry is the slice of the installment registry the marketplace
// drives.
type UnitRegistry interface {
	Contract(id uint64) (*installment.SaleContract, error)
	NextUnitFor(contractID uint64, buyer [20]byte) (uint64, error)
	OwnerOf(contractID, index uint64) ([20]byte, error)
	Transfer(caller [20]byte, contractID uint64, from, to [20]byte) (uint64, error)
}

// RewardReleaser is the slice of the reward pool the marketplace drives.
type RewardReleaser interface {
	Release(caller, to [20]byte, amount *big.Int) error
	Reserved() (*big.Int, error)
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine orchestrates a purchase: it computes the caller-specific price,
// pulls stable currency from the buyer to the unit's current holder (and
// keeps the interest margin for itself), moves the unit through the
// registry and releases the per-unit reward. It owns no ledger state of its
// own beyond its accumulated margin balance.
type Engine struct {
	stable       StableLedger
	registry     UnitRegistry
	pool         RewardReleaser
	authority    *common.Authority
	emitter      events.Emitter
	addr         [20]byte
	interestRate uint64
	usdScale     *big.Int
}

// NewEngine creates a marketplace engine. The addr is the marketplace's own
// principal, which must hold the marketplace role so the registry and the
// reward pool accept its calls.
func NewEngine(authority *common.Authority, addr [20]byte) *Engine {
	return &Engine{
		authority:    authority,
		emitter:      events.NoopEmitter{},
		addr:         addr,
		interestRate: DefaultInterestRate,
		usdScale:     new(big.Int).Set(DefaultUSDScale),
	}
}

// SetStableLedger configures the settlement currency ledger.
func (e *Engine) SetStableLedger(ledger StableLedger) { e.stable = ledger }

// SetRegistry configures the installment registry.
func (e *Engine) SetRegistry(registry UnitRegistry) { e.registry = registry }

// SetRewardPool configures the reward pool used for payouts. Admin only.
func (e *Engine) SetRewardPool(caller [20]byte, pool RewardReleaser) error {
	if err := e.authority.Require(common.RoleAdmin, caller); err != nil {
		return ErrUnauthorized
	}
	e.pool = pool
	return nil
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetUSDScale overrides the USD-to-stable-base-unit factor.
func (e *Engine) SetUSDScale(scale *big.Int) {
	if scale != nil && scale.Sign() > 0 {
		e.usdScale = new(big.Int).Set(scale)
	}
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) configured() error {
	if e == nil || e.stable == nil || e.registry == nil {
		return ErrNilState
	}
	return nil
}

// InterestRate returns the marketplace-wide interest percentage applied to
// designated buyers.
func (e *Engine) InterestRate() uint64 { return e.interestRate }

// SetInterestRate updates the interest percentage. Valid range is (0, 100].
// Admin only.
func (e *Engine) SetInterestRate(caller [20]byte, rate uint64) error {
	if err := e.authority.Require(common.RoleAdmin, caller); err != nil {
		return ErrUnauthorized
	}
	if rate == 0 || rate > 100 {
		return ErrBadInterestRate
	}
	e.interestRate = rate
	e.emit(&types.Event{Type: EventTypeInterestRateUpdated, Attributes: map[string]string{
		"rate": fmt.Sprintf("%d", rate),
	}})
	return nil
}

func (e *Engine) priceParts(contract *installment.SaleContract, caller [20]byte) (principal, margin *big.Int) {
	principal = new(big.Int).Mul(contract.UnitPriceUSD, e.usdScale)
	margin = big.NewInt(0)
	if contract.IsBuyer(caller) {
		margin = new(big.Int).Mul(principal, new(big.Int).SetUint64(e.interestRate))
		margin.Div(margin, big.NewInt(100))
	}
	return principal, margin
}

// PriceForCaller returns the stable-currency amount the caller would pay
// for the next unit: the base price for third parties, base plus interest
// for the contract's designated buyers.
func (e *Engine) PriceForCaller(caller [20]byte, contractID uint64) (*big.Int, error) {
	if err := e.configured(); err != nil {
		return nil, err
	}
	contract, err := e.registry.Contract(contractID)
	if err != nil {
		return nil, err
	}
	principal, margin := e.priceParts(contract, caller)
	return principal.Add(principal, margin), nil
}

// BuyNextUnit executes the full purchase flow for the caller: price
// computation, stable-currency settlement, unit transfer and reward payout.
// The flow is pre-validated so that every business-rule failure surfaces
// before funds move; if the unit transfer still fails afterwards, the pulled
// payment is refunded (compensating action) before the error is returned.
func (e *Engine) BuyNextUnit(caller [20]byte, contractID uint64) (uint64, error) {
	if err := e.configured(); err != nil {
		return 0, err
	}
	contract, err := e.registry.Contract(contractID)
	if err != nil {
		return 0, err
	}
	index, err := e.registry.NextUnitFor(contractID, caller)
	if err != nil {
		return 0, err
	}
	holder, err := e.registry.OwnerOf(contractID, index)
	if err != nil {
		return 0, err
	}
	if holder == ([20]byte{}) {
		return 0, ErrUnitHasNoOwner
	}
	if holder == caller {
		return 0, ErrCallerAlreadyOwnsUnit
	}
	principal, margin := e.priceParts(contract, caller)
	price := new(big.Int).Add(principal, margin)

	allowance, err := e.stable.Allowance(caller, e.addr)
	if err != nil {
		return 0, err
	}
	if allowance.Cmp(price) < 0 {
		return 0, ErrInsufficientAllowance
	}
	reward := contract.RewardPerUnit
	if reward != nil && reward.Sign() > 0 {
		if e.pool == nil {
			return 0, ErrNilState
		}
		reserved, err := e.pool.Reserved()
		if err != nil {
			return 0, err
		}
		if reward.Cmp(reserved) > 0 {
			return 0, fmt.Errorf("marketplace: reward no longer reserved for contract %d", contractID)
		}
	}

	// Settlement: principal to the current holder, margin to the
	// marketplace. Both pulls are allowance-gated.
	if err := e.stable.TransferFrom(e.addr, caller, holder, principal); err != nil {
		return 0, err
	}
	if margin.Sign() > 0 {
		if err := e.stable.TransferFrom(e.addr, caller, e.addr, margin); err != nil {
			// Compensate the principal pull before surfacing the error.
			if refundErr := e.stable.Transfer(holder, caller, principal); refundErr != nil {
				return 0, fmt.Errorf("marketplace: margin pull failed (%v) and principal refund failed: %w", err, refundErr)
			}
			return 0, err
		}
	}

	transferred, err := e.registry.Transfer(e.addr, contractID, holder, caller)
	if err != nil {
		if refundErr := e.refundPayment(caller, holder, principal, margin); refundErr != nil {
			return 0, fmt.Errorf("marketplace: transfer failed (%v) and refund failed: %w", err, refundErr)
		}
		return 0, err
	}

	if reward != nil && reward.Sign() > 0 {
		if err := e.pool.Release(e.addr, caller, reward); err != nil {
			return 0, fmt.Errorf("marketplace: unit %d settled but reward release failed: %w", transferred, err)
		}
	}

	e.emit(NewUnitPurchasedEvent(contractID, transferred, caller, holder, price))
	return transferred, nil
}

func (e *Engine) refundPayment(buyer, holder [20]byte, principal, margin *big.Int) error {
	if err := e.stable.Transfer(holder, buyer, principal); err != nil {
		return err
	}
	if margin.Sign() > 0 {
		return e.stable.Transfer(e.addr, buyer, margin)
	}
	return nil
}

// WithdrawLiquidity moves the accumulated interest margin to the given
// address. Principal never rests on the marketplace balance, so the whole
// balance is margin. Admin only.
func (e *Engine) WithdrawLiquidity(caller, to [20]byte) (*big.Int, error) {
	if err := e.configured(); err != nil {
		return nil, err
	}
	if err := e.authority.Require(common.RoleAdmin, caller); err != nil {
		return nil, ErrUnauthorized
	}
	balance, err := e.stable.BalanceOf(e.addr)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := e.stable.Transfer(e.addr, to, balance); err != nil {
		return nil, err
	}
	e.emit(&types.Event{Type: EventTypeLiquidityWithdrawn, Attributes: map[string]string{
		"amount": balance.String(),
	}})
	return balance, nil
}
