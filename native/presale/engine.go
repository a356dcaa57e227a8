package presale

import (
	"errors"
	"math/big"

	"deedchain/core/events"
	"deedchain/core/types"
	"deedchain/native/common"
)

var (
	ErrNilState          = errors.New("presale: not fully configured")
	ErrUnauthorized      = errors.New("presale: unauthorized")
	ErrAlreadyConfigured = errors.New("presale: already configured")
	ErrNotConfigured     = errors.New("presale: not configured")
	ErrInvalidParams     = errors.New("presale: step size and base price must be positive")
	ErrPresaleClosed     = errors.New("presale: presale is closed")
	ErrAlreadyClosed     = errors.New("presale: presale is already closed")
	ErrCapExceeded       = errors.New("presale: not enough tokens left")
	ErrInvalidAmount     = errors.New("presale: amount must be positive")
	ErrNotEnoughFunds    = errors.New("presale: not enough funds to buy tokens")
	ErrPresaleNotClosed  = errors.New("presale: presale is still open")
	ErrPresaleFailed     = errors.New("presale: presale failed")
	ErrPresaleDidNotFail = errors.New("presale: presale did not fail")
	ErrNothingToClaim    = errors.New("presale: no tokens to claim")
	ErrNothingToRefund   = errors.New("presale: no investment to refund")
	ErrPriceOverflow     = errors.New("presale: token price overflow")
)

const (
	EventTypePresaleOpened   = "presale.opened"
	EventTypePresaleBought   = "presale.bought"
	EventTypePresaleClosed   = "presale.closed"
	EventTypePresaleClaimed  = "presale.claimed"
	EventTypePresaleRefunded = "presale.refunded"
)

// Status is the derived lifecycle state of the crowdsale.
type Status uint8

const (
	StatusOpen Status = iota
	StatusSucceeded
	StatusFailed
)

// Crowdsale is the persisted presale record. Success or failure is derived
// from Sold against SoftCap at close time, never stored.
type Crowdsale struct {
	Cap       *big.Int
	Sold      *big.Int
	SoftCap   *big.Int
	StepSize  *big.Int
	BasePrice *big.Int
	Open      bool
	Raised    *big.Int
}

// Clone returns a deep copy of the crowdsale record.
func (c *Crowdsale) Clone() *Crowdsale {
	if c == nil {
		return nil
	}
	clone := &Crowdsale{Open: c.Open}
	clone.Cap = cloneBig(c.Cap)
	clone.Sold = cloneBig(c.Sold)
	clone.SoftCap = cloneBig(c.SoftCap)
	clone.StepSize = cloneBig(c.StepSize)
	clone.BasePrice = cloneBig(c.BasePrice)
	clone.Raised = cloneBig(c.Raised)
	return clone
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// CrowdsaleState is the state surface the presale needs: one crowdsale
// record plus per-investor token balances and stable-currency investments.
type CrowdsaleState interface {
	PresaleGet() (*Crowdsale, bool, error)
	PresalePut(c *Crowdsale) error
	PresaleBalance(addr []byte) (*big.Int, error)
	SetPresaleBalance(addr []byte, amount *big.Int) error
	PresaleInvestment(addr []byte) (*big.Int, error)
	SetPresaleInvestment(addr []byte, amount *big.Int) error
}

// StableLedger is the settlement-currency surface used to escrow and refund
// investments.
type StableLedger interface {
	Allowance(owner, spender [20]byte) (*big.Int, error)
	TransferFrom(spender, owner, to [20]byte, amount *big.Int) error
	Transfer(from, to [20]byte, amount *big.Int) error
}

// TokenLedger is the reward-token surface used to escrow the sale
// allocation and deliver claims.
type TokenLedger interface {
	BalanceOf(addr [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

type presaleEvent struct {
	evt *types.Event
}

func (e presaleEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e presaleEvent) Event() *types.Event { return e.evt }

// Engine runs the bonding-curve crowdsale of the reward token: stepped
// doubling price, soft-cap success determination at close, then claim or
// refund. The token allocation for sale is escrowed on the engine's own
// principal before opening; the cap is read from that escrow balance.
type Engine struct {
	state     CrowdsaleState
	stable    StableLedger
	token     TokenLedger
	authority *common.Authority
	emitter   events.Emitter
	addr      [20]byte
}

// NewEngine creates a presale engine bound to its escrow principal address.
func NewEngine(authority *common.Authority, addr [20]byte) *Engine {
	return &Engine{
		authority: authority,
		emitter:   events.NoopEmitter{},
		addr:      addr,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state CrowdsaleState) { e.state = state }

// SetStableLedger configures the settlement currency ledger.
func (e *Engine) SetStableLedger(ledger StableLedger) { e.stable = ledger }

// SetTokenLedger configures the reward token ledger.
func (e *Engine) SetTokenLedger(ledger TokenLedger) { e.token = ledger }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(presaleEvent{evt: event})
}

func (e *Engine) configured() error {
	if e == nil || e.state == nil || e.stable == nil || e.token == nil {
		return ErrNilState
	}
	return nil
}

func (e *Engine) load() (*Crowdsale, error) {
	sale, ok, err := e.state.PresaleGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotConfigured
	}
	return sale, nil
}

// Open initialises the crowdsale. The cap is read from the reward-token
// balance already escrowed on the presale principal. Admin only; a presale
// can be opened once.
func (e *Engine) Open(caller [20]byte, softCap, stepSize, basePrice *big.Int) error {
	if err := e.configured(); err != nil {
		return err
	}
	if err := e.authority.Require(common.RoleAdmin, caller); err != nil {
		return ErrUnauthorized
	}
	if _, ok, err := e.state.PresaleGet(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyConfigured
	}
	if stepSize == nil || stepSize.Sign() <= 0 || basePrice == nil || basePrice.Sign() <= 0 {
		return ErrInvalidParams
	}
	cap, err := e.token.BalanceOf(e.addr)
	if err != nil {
		return err
	}
	sale := &Crowdsale{
		Cap:       cap,
		Sold:      big.NewInt(0),
		SoftCap:   cloneBig(softCap),
		StepSize:  new(big.Int).Set(stepSize),
		BasePrice: new(big.Int).Set(basePrice),
		Open:      true,
		Raised:    big.NewInt(0),
	}
	if err := e.state.PresalePut(sale); err != nil {
		return err
	}
	e.emit(&types.Event{Type: EventTypePresaleOpened, Attributes: map[string]string{
		"cap":     sale.Cap.String(),
		"softCap": sale.SoftCap.String(),
	}})
	return nil
}

// TokenPrice returns the current per-token price: the base price doubled
// once for every completed step of sold tokens.
func (e *Engine) TokenPrice() (*big.Int, error) {
	if err := e.configured(); err != nil {
		return nil, err
	}
	sale, err := e.load()
	if err != nil {
		return nil, err
	}
	return tokenPrice(sale)
}

func tokenPrice(sale *Crowdsale) (*big.Int, error) {
	steps := new(big.Int).Div(sale.Sold, sale.StepSize)
	if !steps.IsUint64() || steps.Uint64() > 255 {
		return nil, ErrPriceOverflow
	}
	return new(big.Int).Lsh(sale.BasePrice, uint(steps.Uint64())), nil
}

// Buy purchases the given number of token units at the current price,
// escrowing the payment until the presale closes.
func (e *Engine) Buy(caller [20]byte, units *big.Int) error {
	if err := e.configured(); err != nil {
		return err
	}
	sale, err := e.load()
	if err != nil {
		return err
	}
	if !sale.Open {
		return ErrPresaleClosed
	}
	if units == nil || units.Sign() <= 0 {
		return ErrInvalidAmount
	}
	newSold := new(big.Int).Add(sale.Sold, units)
	if newSold.Cmp(sale.Cap) > 0 {
		return ErrCapExceeded
	}
	price, err := tokenPrice(sale)
	if err != nil {
		return err
	}
	cost := new(big.Int).Mul(price, units)
	allowance, err := e.stable.Allowance(caller, e.addr)
	if err != nil {
		return err
	}
	if allowance.Cmp(cost) < 0 {
		return ErrNotEnoughFunds
	}
	if err := e.stable.TransferFrom(e.addr, caller, e.addr, cost); err != nil {
		return err
	}
	sale.Sold = newSold
	sale.Raised = new(big.Int).Add(sale.Raised, cost)
	if err := e.state.PresalePut(sale); err != nil {
		return err
	}
	balance, err := e.state.PresaleBalance(caller[:])
	if err != nil {
		return err
	}
	if err := e.state.SetPresaleBalance(caller[:], new(big.Int).Add(balance, units)); err != nil {
		return err
	}
	invested, err := e.state.PresaleInvestment(caller[:])
	if err != nil {
		return err
	}
	if err := e.state.SetPresaleInvestment(caller[:], new(big.Int).Add(invested, cost)); err != nil {
		return err
	}
	e.emit(&types.Event{Type: EventTypePresaleBought, Attributes: map[string]string{
		"units": units.String(),
		"cost":  cost.String(),
	}})
	return nil
}

// Status returns the derived lifecycle state.
func (e *Engine) Status() (Status, error) {
	if err := e.configured(); err != nil {
		return StatusOpen, err
	}
	sale, err := e.load()
	if err != nil {
		return StatusOpen, err
	}
	return status(sale), nil
}

func status(sale *Crowdsale) Status {
	if sale.Open {
		return StatusOpen
	}
	if sale.Sold.Cmp(sale.SoftCap) >= 0 {
		return StatusSucceeded
	}
	return StatusFailed
}

// Close ends the presale. On success the raise is forwarded to the admin
// and the unsold escrow returned to the admin; on failure funds remain
// escrowed per-investor for Refund. Admin only; closing twice is an error.
func (e *Engine) Close(caller [20]byte) (Status, error) {
	if err := e.configured(); err != nil {
		return StatusOpen, err
	}
	if err := e.authority.Require(common.RoleAdmin, caller); err != nil {
		return StatusOpen, ErrUnauthorized
	}
	sale, err := e.load()
	if err != nil {
		return StatusOpen, err
	}
	if !sale.Open {
		return status(sale), ErrAlreadyClosed
	}
	sale.Open = false
	result := status(sale)
	if result == StatusSucceeded {
		admin, ok := e.authority.Holder(common.RoleAdmin)
		if !ok {
			return StatusOpen, ErrUnauthorized
		}
		if sale.Raised.Sign() > 0 {
			if err := e.stable.Transfer(e.addr, admin, sale.Raised); err != nil {
				return StatusOpen, err
			}
		}
		unsold := new(big.Int).Sub(sale.Cap, sale.Sold)
		if unsold.Sign() > 0 {
			if err := e.token.Transfer(e.addr, admin, unsold); err != nil {
				return StatusOpen, err
			}
		}
	}
	if err := e.state.PresalePut(sale); err != nil {
		return StatusOpen, err
	}
	e.emit(&types.Event{Type: EventTypePresaleClosed, Attributes: map[string]string{
		"sold":      sale.Sold.String(),
		"softCap":   sale.SoftCap.String(),
		"succeeded": boolString(result == StatusSucceeded),
	}})
	return result, nil
}

// Claim delivers the caller's purchased tokens after a successful close.
// Valid exactly once per investor.
func (e *Engine) Claim(caller [20]byte) (*big.Int, error) {
	if err := e.configured(); err != nil {
		return nil, err
	}
	sale, err := e.load()
	if err != nil {
		return nil, err
	}
	switch status(sale) {
	case StatusOpen:
		return nil, ErrPresaleNotClosed
	case StatusFailed:
		return nil, ErrPresaleFailed
	}
	balance, err := e.state.PresaleBalance(caller[:])
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	if err := e.token.Transfer(e.addr, caller, balance); err != nil {
		return nil, err
	}
	if err := e.state.SetPresaleBalance(caller[:], big.NewInt(0)); err != nil {
		return nil, err
	}
	e.emit(&types.Event{Type: EventTypePresaleClaimed, Attributes: map[string]string{
		"amount": balance.String(),
	}})
	return balance, nil
}

// Refund returns the caller's escrowed investment after a failed close.
// Valid exactly once per investor.
func (e *Engine) Refund(caller [20]byte) (*big.Int, error) {
	if err := e.configured(); err != nil {
		return nil, err
	}
	sale, err := e.load()
	if err != nil {
		return nil, err
	}
	switch status(sale) {
	case StatusOpen:
		return nil, ErrPresaleNotClosed
	case StatusSucceeded:
		return nil, ErrPresaleDidNotFail
	}
	invested, err := e.state.PresaleInvestment(caller[:])
	if err != nil {
		return nil, err
	}
	if invested.Sign() == 0 {
		return nil, ErrNothingToRefund
	}
	if err := e.stable.Transfer(e.addr, caller, invested); err != nil {
		return nil, err
	}
	if err := e.state.SetPresaleInvestment(caller[:], big.NewInt(0)); err != nil {
		return nil, err
	}
	e.emit(&types.Event{Type: EventTypePresaleRefunded, Attributes: map[string]string{
		"amount": invested.String(),
	}})
	return invested, nil
}

// BalanceOf returns the caller's unclaimed presale token balance.
func (e *Engine) BalanceOf(addr [20]byte) (*big.Int, error) {
	if err := e.configured(); err != nil {
		return nil, err
	}
	balance, err := e.state.PresaleBalance(addr[:])
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(balance), nil
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
