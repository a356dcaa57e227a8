package installment

import (
	"encoding/hex"
	"strconv"

	"deedchain/core/types"
)

const (
	EventTypeContractCreated = "installment.contract.created"
	EventTypeContractClosed  = "installment.contract.closed"
	EventTypeUnitTransferred = "installment.unit.transferred"
)

// NewContractCreatedEvent returns the canonical payload for a newly created
// sale contract.
func NewContractCreatedEvent(c *SaleContract) *types.Event {
	attrs := contractAttributes(c)
	return &types.Event{Type: EventTypeContractCreated, Attributes: attrs}
}

// NewContractClosedEvent returns the canonical payload emitted when a
// contract is closed by the minter.
func NewContractClosedEvent(c *SaleContract) *types.Event {
	attrs := contractAttributes(c)
	return &types.Event{Type: EventTypeContractClosed, Attributes: attrs}
}

// NewUnitTransferredEvent returns the canonical payload for a unit transfer.
func NewUnitTransferredEvent(c *SaleContract, index uint64, from, to [20]byte) *types.Event {
	attrs := contractAttributes(c)
	attrs["unit"] = strconv.FormatUint(index, 10)
	attrs["from"] = hex.EncodeToString(from[:])
	attrs["to"] = hex.EncodeToString(to[:])
	return &types.Event{Type: EventTypeUnitTransferred, Attributes: attrs}
}

func contractAttributes(c *SaleContract) map[string]string {
	attrs := make(map[string]string)
	if c == nil {
		return attrs
	}
	attrs["contractId"] = strconv.FormatUint(c.ID, 10)
	attrs["unitsTotal"] = strconv.FormatUint(c.UnitsTotal, 10)
	if c.UnitPriceUSD != nil {
		attrs["unitPriceUsd"] = c.UnitPriceUSD.String()
	}
	if c.RewardPerUnit != nil {
		attrs["rewardPerUnit"] = c.RewardPerUnit.String()
	}
	return attrs
}
