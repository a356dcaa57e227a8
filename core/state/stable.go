package state

import (
	"errors"
	"math/big"
)

var (
	ErrInvalidAmount         = errors.New("state: amount must not be negative")
	ErrInsufficientBalance   = errors.New("state: insufficient stable-currency balance")
	ErrInsufficientAllowance = errors.New("state: insufficient stable-currency allowance")
)

// The stable-currency ledger lives directly on the state manager: settlement
// engines only need the fungible surface (balances, transfers, allowance
// gated pulls), and allowances are plain state records keyed by owner and
// spender.

func allowanceKey(owner, spender [20]byte) []byte {
	return appendKey(allowancePrefix, owner[:], spender[:])
}

// BalanceOf returns the stable-currency balance of the address.
func (m *Manager) BalanceOf(addr [20]byte) (*big.Int, error) {
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.BalanceStable), nil
}

// MintStable credits freshly issued stable currency to the address. The
// daemon uses it at genesis to seed settlement liquidity; there is no cap
// because the stable currency mirrors off-ledger deposits.
func (m *Manager) MintStable(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creditStableLocked(addr, amount)
}

// Approve sets the amount spender may pull from owner's stable balance.
func (m *Manager) Approve(owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putBig(allowanceKey(owner, spender), amount)
}

// Allowance returns the remaining amount spender may pull from owner.
func (m *Manager) Allowance(owner, spender [20]byte) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBig(allowanceKey(owner, spender))
}

// Transfer moves stable currency between accounts.
func (m *Manager) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.debitStableLocked(from, amount); err != nil {
		return err
	}
	return m.creditStableLocked(to, amount)
}

// TransferFrom moves stable currency from owner to the recipient on behalf
// of spender, consuming owner's allowance for spender.
func (m *Manager) TransferFrom(spender, owner, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	allowance, err := m.getBig(allowanceKey(owner, spender))
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := m.debitStableLocked(owner, amount); err != nil {
		return err
	}
	if err := m.creditStableLocked(to, amount); err != nil {
		return err
	}
	return m.putBig(allowanceKey(owner, spender), allowance.Sub(allowance, amount))
}

func (m *Manager) creditStableLocked(addr [20]byte, amount *big.Int) error {
	account, err := m.getAccountLocked(addr[:])
	if err != nil {
		return err
	}
	account.BalanceStable = new(big.Int).Add(account.BalanceStable, amount)
	return m.putAccountLocked(addr[:], account)
}

func (m *Manager) debitStableLocked(addr [20]byte, amount *big.Int) error {
	account, err := m.getAccountLocked(addr[:])
	if err != nil {
		return err
	}
	if account.BalanceStable.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	account.BalanceStable = new(big.Int).Sub(account.BalanceStable, amount)
	return m.putAccountLocked(addr[:], account)
}
