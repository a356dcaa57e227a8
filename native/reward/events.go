package reward

import (
	"encoding/hex"
	"math/big"

	"deedchain/core/types"
)

const (
	EventTypeRewardMinted      = "reward.minted"
	EventTypeRewardBurned      = "reward.burned"
	EventTypeRewardTransferred = "reward.transferred"
)

// MintOrigin labels which allowance a mint was charged against.
type MintOrigin string

const (
	MintOriginOwner      MintOrigin = "owner"
	MintOriginRewardPool MintOrigin = "rewardPool"
)

// NewMintedEvent returns the canonical payload for a mint against either
// allowance.
func NewMintedEvent(origin MintOrigin, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeRewardMinted, Attributes: map[string]string{
		"origin": string(origin),
		"to":     hex.EncodeToString(to[:]),
		"amount": amountString(amount),
	}}
}

// NewBurnedEvent returns the canonical payload for a burn.
func NewBurnedEvent(from [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeRewardBurned, Attributes: map[string]string{
		"from":   hex.EncodeToString(from[:]),
		"amount": amountString(amount),
	}}
}

// NewTransferredEvent returns the canonical payload for a balance transfer.
func NewTransferredEvent(from, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeRewardTransferred, Attributes: map[string]string{
		"from":   hex.EncodeToString(from[:]),
		"to":     hex.EncodeToString(to[:]),
		"amount": amountString(amount),
	}}
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
