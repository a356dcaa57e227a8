package types

import "math/big"

// Account tracks the fungible balances known to the ledger: the stable
// currency used for settlement and the reward token paid out per purchased
// unit. Unit (NFT) ownership is tracked separately by the installment
// registry.
type Account struct {
	Nonce         uint64   `json:"nonce"`
	BalanceStable *big.Int `json:"balanceStable"`
	BalanceReward *big.Int `json:"balanceReward"`
}

// Normalize ensures the balance fields are non-nil so callers can operate on
// the account without per-field guards.
func (a *Account) Normalize() *Account {
	if a == nil {
		return &Account{BalanceStable: big.NewInt(0), BalanceReward: big.NewInt(0)}
	}
	if a.BalanceStable == nil {
		a.BalanceStable = big.NewInt(0)
	}
	if a.BalanceReward == nil {
		a.BalanceReward = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return (&Account{}).Normalize()
	}
	clone := &Account{Nonce: a.Nonce, BalanceStable: big.NewInt(0), BalanceReward: big.NewInt(0)}
	if a.BalanceStable != nil {
		clone.BalanceStable = new(big.Int).Set(a.BalanceStable)
	}
	if a.BalanceReward != nil {
		clone.BalanceReward = new(big.Int).Set(a.BalanceReward)
	}
	return clone
}
