package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/internal/apperror"
)

// NativeBalancer reads free balances on Torus Native.
type NativeBalancer interface {
	FreeBalance(ctx context.Context, address string) (*big.Int, error)
}

// Balances implements app.BalanceReader: TORUS is an ERC-20 on Base, the
// native coin on Torus EVM, and a Substrate balance on Torus Native.
type Balances struct {
	base   *Chain
	torus  *Chain
	token  common.Address
	native NativeBalancer
}

var _ app.BalanceReader = (*Balances)(nil)

// NewBalances returns a reader over the three chains.
func NewBalances(base, torus *Chain, baseToken common.Address, native NativeBalancer) *Balances {
	return &Balances{base: base, torus: torus, token: baseToken, native: native}
}

func parseEVMAddress(addr string) (common.Address, error) {
	if !common.IsHexAddress(addr) {
		return common.Address{}, apperror.New(apperror.CodeInvalidAddress, apperror.WithContext(addr))
	}
	return common.HexToAddress(addr), nil
}

// TorusEVMBalance implements app.BalanceReader.
func (b *Balances) TorusEVMBalance(ctx context.Context, evmAddress string) (*big.Int, error) {
	addr, err := parseEVMAddress(evmAddress)
	if err != nil {
		return nil, err
	}
	return b.torus.NativeBalance(ctx, addr)
}

// BaseBalance implements app.BalanceReader.
func (b *Balances) BaseBalance(ctx context.Context, evmAddress string) (*big.Int, error) {
	addr, err := parseEVMAddress(evmAddress)
	if err != nil {
		return nil, err
	}
	return b.base.TokenBalance(ctx, b.token, addr)
}

// NativeBalance implements app.BalanceReader.
func (b *Balances) NativeBalance(ctx context.Context, nativeAddress string) (*big.Int, error) {
	return b.native.FreeBalance(ctx, nativeAddress)
}
