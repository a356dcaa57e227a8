package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"deedchain/core/types"
	"deedchain/native/installment"
	"deedchain/native/presale"
	"deedchain/storage"
)

// Manager is the single-writer state backend shared by every engine. Records
// are JSON-encoded under byte prefixes in a key-value store; one mutex
// serializes all mutations so cross-engine flows observe a consistent ledger.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

// NewManager creates a state manager over the given storage backend.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) getJSON(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

func (m *Manager) getBig(key []byte) (*big.Int, error) {
	raw, err := m.db.Get(key)
	if err != nil {
		if storage.IsNotFound(err) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

func (m *Manager) putBig(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: negative or nil amount for %q", key)
	}
	return m.db.Put(key, amount.Bytes())
}

func appendKey(prefix []byte, parts ...[]byte) []byte {
	key := append([]byte(nil), prefix...)
	for _, part := range parts {
		key = append(key, part...)
	}
	return key
}

func uint64Key(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

// --- Accounts ---

// GetAccount loads the account record for the address. Missing accounts
// resolve to a zero-balance account, never an error.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAccountLocked(addr)
}

func (m *Manager) getAccountLocked(addr []byte) (*types.Account, error) {
	account := new(types.Account)
	ok, err := m.getJSON(appendKey(accountPrefix, addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return (&types.Account{}).Normalize(), nil
	}
	return account.Normalize(), nil
}

// PutAccount persists the account record for the address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putAccountLocked(addr, account)
}

func (m *Manager) putAccountLocked(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account for %x", addr)
	}
	return m.putJSON(appendKey(accountPrefix, addr), account.Normalize())
}

// --- Reward supply counters ---

func (m *Manager) RewardOwnerMinted() (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBig(rewardOwnerMintedKey)
}

func (m *Manager) SetRewardOwnerMinted(amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putBig(rewardOwnerMintedKey, amount)
}

func (m *Manager) RewardPoolMinted() (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBig(rewardPoolMintedKey)
}

func (m *Manager) SetRewardPoolMinted(amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putBig(rewardPoolMintedKey, amount)
}

// --- Reward pool reservation ---

func (m *Manager) RewardReserved() (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBig(rewardReservedKey)
}

func (m *Manager) SetRewardReserved(amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putBig(rewardReservedKey, amount)
}

// --- Installment registry ---

func (m *Manager) InstallmentContractPut(c *installment.SaleContract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c == nil {
		return fmt.Errorf("state: nil installment contract")
	}
	return m.putJSON(appendKey(contractPrefix, uint64Key(c.ID)), c)
}

func (m *Manager) InstallmentContractGet(id uint64) (*installment.SaleContract, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contract := new(installment.SaleContract)
	ok, err := m.getJSON(appendKey(contractPrefix, uint64Key(id)), contract)
	if err != nil || !ok {
		return nil, false, err
	}
	return contract, true, nil
}

func (m *Manager) InstallmentUnitPut(u *installment.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u == nil {
		return fmt.Errorf("state: nil installment unit")
	}
	return m.putJSON(appendKey(unitPrefix, uint64Key(u.ContractID), uint64Key(u.Index)), u)
}

func (m *Manager) InstallmentUnitGet(contractID, index uint64) (*installment.Unit, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	unit := new(installment.Unit)
	ok, err := m.getJSON(appendKey(unitPrefix, uint64Key(contractID), uint64Key(index)), unit)
	if err != nil || !ok {
		return nil, false, err
	}
	return unit, true, nil
}

func (m *Manager) InstallmentBalanceCredit(addr []byte, n uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, err := m.getBig(appendKey(unitBalancePrefix, addr))
	if err != nil {
		return err
	}
	balance.Add(balance, new(big.Int).SetUint64(n))
	return m.putBig(appendKey(unitBalancePrefix, addr), balance)
}

func (m *Manager) InstallmentBalanceDebit(addr []byte, n uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, err := m.getBig(appendKey(unitBalancePrefix, addr))
	if err != nil {
		return err
	}
	amount := new(big.Int).SetUint64(n)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("state: unit balance underflow for %x", addr)
	}
	return m.putBig(appendKey(unitBalancePrefix, addr), balance.Sub(balance, amount))
}

func (m *Manager) InstallmentBalance(addr []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, err := m.getBig(appendKey(unitBalancePrefix, addr))
	if err != nil {
		return 0, err
	}
	return balance.Uint64(), nil
}

// --- Presale ---

func (m *Manager) PresaleGet() (*presale.Crowdsale, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sale := new(presale.Crowdsale)
	ok, err := m.getJSON(presaleKey, sale)
	if err != nil || !ok {
		return nil, false, err
	}
	return sale, true, nil
}

func (m *Manager) PresalePut(sale *presale.Crowdsale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sale == nil {
		return fmt.Errorf("state: nil presale record")
	}
	return m.putJSON(presaleKey, sale)
}

func (m *Manager) PresaleBalance(addr []byte) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBig(appendKey(presaleBalancePrefix, addr))
}

func (m *Manager) SetPresaleBalance(addr []byte, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putBig(appendKey(presaleBalancePrefix, addr), amount)
}

func (m *Manager) PresaleInvestment(addr []byte) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBig(appendKey(presaleInvestmentPrefix, addr))
}

func (m *Manager) SetPresaleInvestment(addr []byte, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putBig(appendKey(presaleInvestmentPrefix, addr), amount)
}
