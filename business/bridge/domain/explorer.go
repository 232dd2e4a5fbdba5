package domain

import "strings"

// Chain display names used in records and explorer lookups.
const (
	ChainBase        = "Base"
	ChainTorusEVM    = "Torus EVM"
	ChainTorusNative = "Torus Native"
)

const (
	baseExplorerTx  = "https://basescan.org/tx/"
	torusExplorerTx = "https://blockscout.torus.network/tx/"
)

// ExplorerURL maps a tx hash on a chain to its block explorer page, or ""
// for chains without a public explorer. Chain matching is case-insensitive.
func ExplorerURL(txHash, chainName string) string {
	switch strings.ToLower(strings.TrimSpace(chainName)) {
	case "base":
		return baseExplorerTx + txHash
	case "torus evm", "torus":
		return torusExplorerTx + txHash
	default:
		return ""
	}
}
