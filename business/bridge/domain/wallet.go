package domain

// NativeAccount is the Substrate side of the wallet snapshot.
type NativeAccount struct {
	IsConnected  bool   `json:"isConnected"`
	Address      string `json:"address,omitempty"`
	IsConnecting bool   `json:"isConnecting"`
}

// EVMAccount is the EVM side of the wallet snapshot.
type EVMAccount struct {
	IsConnected  bool   `json:"isConnected"`
	Address      string `json:"address,omitempty"`
	ChainID      uint64 `json:"chainId,omitempty"`
	IsConnecting bool   `json:"isConnecting"`
}

// WalletConnectionState is a read-only snapshot of both accounts.
type WalletConnectionState struct {
	Native NativeAccount `json:"native"`
	EVM    EVMAccount    `json:"evm"`
}

// Ready reports whether both accounts are connected.
func (w WalletConnectionState) Ready() bool {
	return w.Native.IsConnected && w.EVM.IsConnected
}
