package common

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ModuleAddress derives the well-known principal address of a native module
// from its name. The derivation is a keccak hash truncated to 20 bytes, so
// module principals are stable across deployments and cannot collide with
// user keys in practice.
func ModuleAddress(name string) [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte("deedchain/module/" + name))
	copy(addr[:], digest[len(digest)-len(addr):])
	return addr
}
