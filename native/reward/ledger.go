package reward

import (
	"math/big"

	"deedchain/core/events"
	"deedchain/core/types"
	"deedchain/native/common"
)

// Default minting caps. The reward token has a fixed total supply of
// 8,880,101.01 tokens at 9 decimals, split between the owner allowance and
// the reward-pool allowance. Deployments can override both via SetCaps.
var (
	DefaultOwnerMintCap = mustBig("1776020202000000")
	DefaultPoolMintCap  = mustBig("7104080808000000")
)

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("reward: invalid cap literal " + s)
	}
	return v
}

// LedgerState is the minimal state surface the reward ledger needs. Balances
// live on the shared account records; the two minted-supply counters are
// ledger-global scalars.
type LedgerState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	RewardOwnerMinted() (*big.Int, error)
	SetRewardOwnerMinted(amount *big.Int) error
	RewardPoolMinted() (*big.Int, error)
	SetRewardPoolMinted(amount *big.Int) error
}

type ledgerEvent struct {
	evt *types.Event
}

func (e ledgerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ledgerEvent) Event() *types.Event { return e.evt }

// Ledger is the capped-supply accounting engine for the reward token. Two
// independent allowances share one balance table: the owner allowance and
// the reward-pool allowance, each with its own hard cap. Burning frees
// reward-pool capacity only; this is a policy decision, not a token-tracing
// guarantee, since tokens are fungible once minted.
type Ledger struct {
	state     LedgerState
	authority *common.Authority
	emitter   events.Emitter
	ownerCap  *big.Int
	poolCap   *big.Int
}

// NewLedger creates a reward ledger with the default caps and a no-op
// emitter.
func NewLedger(authority *common.Authority) *Ledger {
	return &Ledger{
		authority: authority,
		emitter:   events.NoopEmitter{},
		ownerCap:  new(big.Int).Set(DefaultOwnerMintCap),
		poolCap:   new(big.Int).Set(DefaultPoolMintCap),
	}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state LedgerState) { l.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetCaps overrides the owner and reward-pool minting caps. Nil values keep
// the current cap.
func (l *Ledger) SetCaps(ownerCap, poolCap *big.Int) {
	if ownerCap != nil {
		l.ownerCap = new(big.Int).Set(ownerCap)
	}
	if poolCap != nil {
		l.poolCap = new(big.Int).Set(poolCap)
	}
}

// OwnerMintCap returns the hard cap of the owner allowance.
func (l *Ledger) OwnerMintCap() *big.Int { return new(big.Int).Set(l.ownerCap) }

// PoolMintCap returns the hard cap of the reward-pool allowance.
func (l *Ledger) PoolMintCap() *big.Int { return new(big.Int).Set(l.poolCap) }

func (l *Ledger) emit(event *types.Event) {
	if l == nil || l.emitter == nil || event == nil {
		return
	}
	l.emitter.Emit(ledgerEvent{evt: event})
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// MintOwner mints tokens against the owner allowance. Only the admin role
// may call it.
func (l *Ledger) MintOwner(caller, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if err := l.authority.Require(common.RoleAdmin, caller); err != nil {
		return ErrUnauthorized
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	minted, err := l.state.RewardOwnerMinted()
	if err != nil {
		return err
	}
	next := new(big.Int).Add(minted, amt)
	if next.Cmp(l.ownerCap) > 0 {
		return ErrCapExceeded
	}
	if err := l.credit(to, amt); err != nil {
		return err
	}
	if err := l.state.SetRewardOwnerMinted(next); err != nil {
		return err
	}
	l.emit(NewMintedEvent(MintOriginOwner, to, amt))
	return nil
}

// MintRewardPool mints tokens against the reward-pool allowance. Only the
// registered reward-pool principal may call it.
func (l *Ledger) MintRewardPool(caller, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if err := l.authority.Require(common.RoleRewardPool, caller); err != nil {
		return ErrUnauthorized
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	minted, err := l.state.RewardPoolMinted()
	if err != nil {
		return err
	}
	next := new(big.Int).Add(minted, amt)
	if next.Cmp(l.poolCap) > 0 {
		return ErrCapExceeded
	}
	if err := l.credit(to, amt); err != nil {
		return err
	}
	if err := l.state.SetRewardPoolMinted(next); err != nil {
		return err
	}
	l.emit(NewMintedEvent(MintOriginRewardPool, to, amt))
	return nil
}

// Burn destroys tokens from the caller's balance and gives the burned
// capacity back to the reward-pool allowance. Burning beyond the amount the
// reward pool has minted is rejected so owner-minted supply can never unlock
// additional reward-pool capacity.
func (l *Ledger) Burn(caller [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	poolMinted, err := l.state.RewardPoolMinted()
	if err != nil {
		return err
	}
	if amt.Cmp(poolMinted) > 0 {
		return ErrInsufficientPoolMintedSupply
	}
	if err := l.debit(caller, amt); err != nil {
		return err
	}
	if err := l.state.SetRewardPoolMinted(new(big.Int).Sub(poolMinted, amt)); err != nil {
		return err
	}
	l.emit(NewBurnedEvent(caller, amt))
	return nil
}

// Transfer moves tokens between accounts following standard conservation.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amt.Sign() == 0 {
		return nil
	}
	if err := l.debit(from, amt); err != nil {
		return err
	}
	if err := l.credit(to, amt); err != nil {
		return err
	}
	l.emit(NewTransferredEvent(from, to, amt))
	return nil
}

// BalanceOf returns the reward-token balance of the address.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	acc, err := l.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return cloneBigInt(acc.Normalize().BalanceReward), nil
}

// TotalSupply returns the circulating reward-token supply. Burn decrements
// the reward-pool minted counter, so the sum of the two counters is the
// live supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	ownerMinted, err := l.state.RewardOwnerMinted()
	if err != nil {
		return nil, err
	}
	poolMinted, err := l.state.RewardPoolMinted()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(ownerMinted, poolMinted), nil
}

// OwnerMintedSupply returns the amount minted so far against the owner
// allowance.
func (l *Ledger) OwnerMintedSupply() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	minted, err := l.state.RewardOwnerMinted()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(minted), nil
}

// PoolMintedSupply returns the amount minted so far against the reward-pool
// allowance, net of burns.
func (l *Ledger) PoolMintedSupply() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	minted, err := l.state.RewardPoolMinted()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(minted), nil
}

func (l *Ledger) credit(addr [20]byte, amount *big.Int) error {
	acc, err := l.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	acc = acc.Normalize()
	acc.BalanceReward = new(big.Int).Add(acc.BalanceReward, amount)
	return l.state.PutAccount(addr[:], acc)
}

func (l *Ledger) debit(addr [20]byte, amount *big.Int) error {
	acc, err := l.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	acc = acc.Normalize()
	if acc.BalanceReward.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	acc.BalanceReward = new(big.Int).Sub(acc.BalanceReward, amount)
	return l.state.PutAccount(addr[:], acc)
}
