package app

import (
	"context"
	"strings"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
	"github.com/fd1az/torus-bridge/internal/apperror"
)

// WalletStatus builds the wallet snapshot from the EVM signer and the
// native client.
type WalletStatus struct {
	EVM    EVMWallet
	Native NativeSigner
}

var _ Wallets = WalletStatus{}

// ConnectionState implements Wallets. The EVM side counts as connected
// once the signer answers with its chain id.
func (w WalletStatus) ConnectionState(ctx context.Context) domain.WalletConnectionState {
	var st domain.WalletConnectionState
	if w.Native != nil {
		addr := w.Native.Address()
		st.Native = domain.NativeAccount{
			IsConnected: addr != "" && w.Native.IsConnected(),
			Address:     addr,
		}
	}
	if w.EVM != nil {
		addr := w.EVM.Address()
		id, err := w.EVM.ChainID(ctx)
		st.EVM = domain.EVMAccount{
			IsConnected: addr != "" && err == nil,
			Address:     addr,
			ChainID:     id,
		}
	}
	return st
}

// checkWallets fails with WALLET_NOT_CONNECTED unless both accounts are
// ready. It passes when no Wallets port is configured.
func (o *Orchestrator) checkWallets(ctx context.Context) error {
	if o.wallets == nil {
		return nil
	}
	st := o.wallets.ConnectionState(ctx)
	if st.Ready() {
		return nil
	}
	var missing []string
	if !st.EVM.IsConnected {
		missing = append(missing, "evm")
	}
	if !st.Native.IsConnected {
		missing = append(missing, "native")
	}
	return apperror.New(apperror.CodeWalletNotConnected,
		apperror.WithContext(strings.Join(missing, ", ")+" not connected"))
}
