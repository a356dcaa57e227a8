package installment

import (
	"math/big"
)

// QuotaDenominator is the percentage base for seller quotas. UnitsTotal must
// be divisible by it so every quota split lands on an integer unit count.
const QuotaDenominator = 100

// Seller binds a payout address to its percentage share of the contract's
// unit allocation.
type Seller struct {
	Address [20]byte
	Quota   uint8
}

// SaleContract is the immutable definition of an installment sale plus the
// two purchase cursors that advance as units are sold. Units are conceptual
// until their first transfer: ownership starts with the sellers, split by
// quota into contiguous index ranges in seller-list order.
//
// NextSaleUnit is the first unit still held inside the seller allocation; it
// advances whenever a unit leaves a seller. NextBuyerUnit is the first unit
// not yet delivered to a designated buyer; it lags NextSaleUnit when third
// parties hold units, which lets the designated buyer purchase those units
// back. Contract progress counts only units delivered to designated buyers.
type SaleContract struct {
	ID            uint64
	Sellers       []Seller
	Buyers        [][20]byte
	UnitsTotal    uint64
	UnitPriceUSD  *big.Int
	RewardPerUnit *big.Int
	MetadataURI   string
	Closed        bool
	NextSaleUnit  uint64
	NextBuyerUnit uint64
	CreatedAt     int64
}

// Clone returns a deep copy of the contract.
func (c *SaleContract) Clone() *SaleContract {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Sellers = append([]Seller(nil), c.Sellers...)
	clone.Buyers = append([][20]byte(nil), c.Buyers...)
	if c.UnitPriceUSD != nil {
		clone.UnitPriceUSD = new(big.Int).Set(c.UnitPriceUSD)
	} else {
		clone.UnitPriceUSD = big.NewInt(0)
	}
	if c.RewardPerUnit != nil {
		clone.RewardPerUnit = new(big.Int).Set(c.RewardPerUnit)
	} else {
		clone.RewardPerUnit = big.NewInt(0)
	}
	return &clone
}

// IsBuyer reports whether addr is one of the contract's designated buyers.
func (c *SaleContract) IsBuyer(addr [20]byte) bool {
	if c == nil {
		return false
	}
	for _, buyer := range c.Buyers {
		if buyer == addr {
			return true
		}
	}
	return false
}

// SellerAllocation returns the number of units allotted to each seller, in
// seller-list order. The divisibility invariant guarantees integer splits
// with no remainder.
func (c *SaleContract) SellerAllocation() []uint64 {
	if c == nil {
		return nil
	}
	allocation := make([]uint64, len(c.Sellers))
	for i, seller := range c.Sellers {
		allocation[i] = c.UnitsTotal / QuotaDenominator * uint64(seller.Quota)
	}
	return allocation
}

// SellerAt resolves which seller conceptually holds the unit at the given
// index before it is materialized. Ranges are contiguous in seller-list
// order.
func (c *SaleContract) SellerAt(index uint64) ([20]byte, bool) {
	if c == nil || index >= c.UnitsTotal {
		return [20]byte{}, false
	}
	var start uint64
	for i, n := range c.SellerAllocation() {
		if index < start+n {
			return c.Sellers[i].Address, true
		}
		start += n
	}
	return [20]byte{}, false
}

// Unit is a lazily materialized installment unit. A record exists only once
// the unit has been transferred out of the seller allocation; before that,
// ownership is derived from the contract's quota ranges.
type Unit struct {
	ContractID uint64
	Index      uint64
	Owner      [20]byte
	Minted     bool
	Burned     bool
}

// Clone returns a copy of the unit record.
func (u *Unit) Clone() *Unit {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
