// Package di contains dependency injection tokens for the bridge context.
package di

import (
	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/business/bridge/infra/evm"
	"github.com/fd1az/torus-bridge/business/bridge/infra/substrate"
	"github.com/fd1az/torus-bridge/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Orchestrator  = di.NewToken[*app.Orchestrator]("bridge.Orchestrator")
	BalanceReader = di.NewToken[app.BalanceReader]("bridge.BalanceReader")
	AddressMapper = di.NewToken[app.AddressMapper]("bridge.AddressMapper")
	NativeClient  = di.NewToken[*substrate.Client]("bridge.NativeClient")
	EVMWallet     = di.NewToken[evm.Sender]("bridge.EVMWallet")
)

// Private dependency tokens - internal to bridge module
var (
	BaseChain      = di.NewToken[*evm.Chain]("bridge:baseChain")
	TorusChain     = di.NewToken[*evm.Chain]("bridge:torusChain")
	Warp           = di.NewToken[*evm.Warp]("bridge:warp")
	Withdrawer     = di.NewToken[*evm.Withdrawer]("bridge:withdrawer")
	EventPublisher = di.NewToken[app.EventPublisher]("bridge:eventPublisher")
	SharedState    = di.NewToken[*app.SharedState]("bridge:sharedState")
)

// Helper functions for type-safe access
func GetOrchestrator(c di.ServiceRegistry) *app.Orchestrator {
	return di.GetToken(c, Orchestrator)
}

func GetBalanceReader(c di.ServiceRegistry) app.BalanceReader {
	return di.GetToken(c, BalanceReader)
}

func GetAddressMapper(c di.ServiceRegistry) app.AddressMapper {
	return di.GetToken(c, AddressMapper)
}

func GetNativeClient(c di.ServiceRegistry) *substrate.Client {
	return di.GetToken(c, NativeClient)
}

func GetEVMWallet(c di.ServiceRegistry) evm.Sender {
	return di.GetToken(c, EVMWallet)
}

func GetBaseChain(c di.ServiceRegistry) *evm.Chain {
	return di.GetToken(c, BaseChain)
}

func GetTorusChain(c di.ServiceRegistry) *evm.Chain {
	return di.GetToken(c, TorusChain)
}

func GetWarp(c di.ServiceRegistry) *evm.Warp {
	return di.GetToken(c, Warp)
}

func GetWithdrawer(c di.ServiceRegistry) *evm.Withdrawer {
	return di.GetToken(c, Withdrawer)
}

func GetEventPublisher(c di.ServiceRegistry) app.EventPublisher {
	return di.GetToken(c, EventPublisher)
}

func GetSharedState(c di.ServiceRegistry) *app.SharedState {
	return di.GetToken(c, SharedState)
}
