package main

import (
	"fmt"
	"math/big"

	"github.com/urfave/cli/v2"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	bridgeDI "github.com/fd1az/torus-bridge/business/bridge/di"
	"github.com/fd1az/torus-bridge/business/bridge/domain"
	"github.com/fd1az/torus-bridge/internal/asset"
)

func balancesAction(c *cli.Context) error {
	e, err := setup(c, false)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := c.Context
	if err := e.mono.StartModules(ctx, e.history, e.bridge); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	sr := e.services()

	evmAddress := c.String("evm-address")
	if evmAddress == "" {
		wallet, err := resolve(bridgeDI.GetEVMWallet, sr)
		if err != nil {
			return fmt.Errorf("--evm-address is required without a configured wallet: %w", err)
		}
		evmAddress = wallet.Address()
	}
	nativeAddress := c.String("native-address")
	if nativeAddress == "" {
		nativeAddress = bridgeDI.GetNativeClient(sr).Address()
	}

	reader := bridgeDI.GetBalanceReader(sr)
	assets := e.mono.AssetRegistry()
	out := c.App.Writer
	show := func(chain, lookup, account string, read func() (*big.Int, error)) {
		raw, err := read()
		if err != nil {
			fmt.Fprintf(out, "%-13s %-50s error: %s\n", chain, account, app.FormatErrorForUser(err))
			return
		}
		a, ok := assets.Find(lookup, app.TokenSymbol)
		if !ok {
			fmt.Fprintf(out, "%-13s %-50s %s (raw)\n", chain, account, raw)
			return
		}
		fmt.Fprintf(out, "%-13s %-50s %s\n", chain, account, asset.NewAmount(a, raw))
	}

	show(domain.ChainBase, asset.ChainNameBase, evmAddress, func() (*big.Int, error) {
		return reader.BaseBalance(ctx, evmAddress)
	})
	show(domain.ChainTorusEVM, asset.ChainNameTorus, evmAddress, func() (*big.Int, error) {
		return reader.TorusEVMBalance(ctx, evmAddress)
	})
	if nativeAddress == "" {
		fmt.Fprintf(out, "%-13s set --native-address or wallet.native_seed\n", domain.ChainTorusNative)
		return nil
	}
	show(domain.ChainTorusNative, asset.ChainNameNative, nativeAddress, func() (*big.Int, error) {
		return reader.NativeBalance(ctx, nativeAddress)
	})
	return nil
}
