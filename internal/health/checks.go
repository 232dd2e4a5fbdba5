package health

import (
	"context"
	"fmt"
)

// BlockNumberer is satisfied by go-ethereum's ethclient.Client.
type BlockNumberer interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// EVMCheck reports the latest block of an EVM RPC.
func EVMCheck(client BlockNumberer) CheckFunc {
	return func(ctx context.Context) (bool, string) {
		n, err := client.BlockNumber(ctx)
		if err != nil {
			return false, err.Error()
		}
		return true, fmt.Sprintf("block %d", n)
	}
}

// PingCheck adapts any error-returning probe.
func PingCheck(probe func(ctx context.Context) (string, error)) CheckFunc {
	return func(ctx context.Context) (bool, string) {
		msg, err := probe(ctx)
		if err != nil {
			return false, err.Error()
		}
		return true, msg
	}
}
