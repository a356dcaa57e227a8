package reward

import "errors"

var (
	ErrNilState                     = errors.New("reward: state not configured")
	ErrUnauthorized                 = errors.New("reward: unauthorized")
	ErrInvalidAmount                = errors.New("reward: amount must be positive")
	ErrCapExceeded                  = errors.New("reward: minting cap exceeded")
	ErrInsufficientBalance          = errors.New("reward: insufficient balance")
	ErrInsufficientPoolMintedSupply = errors.New("reward: amount exceeds the reward-pool minted supply")
)
