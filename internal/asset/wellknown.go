package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDBase     = 8453
	ChainIDTorusEVM = 21000
	SS58PrefixTorus = 42
	TorusDecimals   = 18
	TorusSymbol     = "TORUS"
	ChainNameBase   = "base"
	ChainNameTorus  = "torus"
	ChainNameNative = "torus-native"
)

// AddrTorusOnBase is the Hyperlane synthetic TORUS token on Base.
var AddrTorusOnBase = common.HexToAddress("0x78EC15C5FD8EfC5e924e9EEBb9e549e29C785867")

// NewTorusAssets builds the three TORUS representations for the given
// Base token address and Torus EVM chain id.
func NewTorusAssets(baseToken common.Address, torusEVMChainID uint64) (onBase, onTorusEVM, onNative *Asset) {
	onBase = NewChainAsset(NewTokenAssetID(ChainIDBase, baseToken), TorusSymbol, "Torus (Base)", ChainNameBase, TorusDecimals)
	onTorusEVM = NewChainAsset(NewNativeAssetID(torusEVMChainID), TorusSymbol, "Torus (EVM)", ChainNameTorus, TorusDecimals)
	onNative = NewChainAsset(NewSubstrateAssetID(SS58PrefixTorus), TorusSymbol, "Torus", ChainNameNative, TorusDecimals)
	return onBase, onTorusEVM, onNative
}

// Well-known TORUS assets on mainnet.
var (
	TorusBase, TorusEVM, TorusNative = NewTorusAssets(AddrTorusOnBase, ChainIDTorusEVM)
)
