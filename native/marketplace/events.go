package marketplace

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"deedchain/core/types"
)

const (
	EventTypeUnitPurchased       = "marketplace.unit.purchased"
	EventTypeInterestRateUpdated = "marketplace.interest.updated"
	EventTypeLiquidityWithdrawn  = "marketplace.liquidity.withdrawn"
)

// NewUnitPurchasedEvent returns the canonical payload for a settled
// purchase.
func NewUnitPurchasedEvent(contractID, index uint64, buyer, holder [20]byte, price *big.Int) *types.Event {
	attrs := map[string]string{
		"contractId": strconv.FormatUint(contractID, 10),
		"unit":       strconv.FormatUint(index, 10),
		"buyer":      hex.EncodeToString(buyer[:]),
		"seller":     hex.EncodeToString(holder[:]),
	}
	if price != nil {
		attrs["price"] = price.String()
	}
	return &types.Event{Type: EventTypeUnitPurchased, Attributes: attrs}
}
