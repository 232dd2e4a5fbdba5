// Package asset provides a type-safe model for bridged assets.
// The core uses big.Int for exact on-chain representation.
// decimal.Decimal is only used at boundaries (CLI input, display).
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Network distinguishes the runtime an asset lives on.
type Network string

const (
	NetworkEVM       Network = "evm"
	NetworkSubstrate Network = "substrate"
)

// AssetID uniquely identifies an asset by network, chain and contract address.
// For native coins the address is zero.
type AssetID struct {
	network Network
	chainID uint64
	address common.Address
}

// NewNativeAssetID creates an AssetID for an EVM native coin.
func NewNativeAssetID(chainID uint64) AssetID {
	return AssetID{network: NetworkEVM, chainID: chainID}
}

// NewTokenAssetID creates an AssetID for an ERC-20 token.
func NewTokenAssetID(chainID uint64, addr common.Address) AssetID {
	if addr == (common.Address{}) {
		panic("token address cannot be zero - use NewNativeAssetID for native coins")
	}
	return AssetID{network: NetworkEVM, chainID: chainID, address: addr}
}

// NewSubstrateAssetID creates an AssetID for the native balance of a
// Substrate chain, identified by its SS58 prefix.
func NewSubstrateAssetID(ss58Prefix uint64) AssetID {
	return AssetID{network: NetworkSubstrate, chainID: ss58Prefix}
}

// Network returns the runtime kind.
func (id AssetID) Network() Network {
	return id.network
}

// ChainID returns the EVM chain id, or the SS58 prefix for Substrate assets.
func (id AssetID) ChainID() uint64 {
	return id.chainID
}

// Address returns the token contract address (zero for native coins).
func (id AssetID) Address() common.Address {
	return id.address
}

// IsNative returns true for native coins on either network.
func (id AssetID) IsNative() bool {
	return id.address == (common.Address{})
}

// IsToken returns true if this is an ERC-20 token.
func (id AssetID) IsToken() bool {
	return id.network == NetworkEVM && id.address != (common.Address{})
}

// String returns a human-readable representation.
func (id AssetID) String() string {
	if id.network == NetworkSubstrate {
		return fmt.Sprintf("substrate:%d/native", id.chainID)
	}
	if id.IsNative() {
		return fmt.Sprintf("chain:%d/native", id.chainID)
	}
	return fmt.Sprintf("chain:%d/%s", id.chainID, id.address.Hex())
}

// Equals compares two AssetIDs for equality.
func (id AssetID) Equals(other AssetID) bool {
	return id == other
}
