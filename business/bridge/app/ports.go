// Package app contains the transfer orchestration and the ports it drives.
package app

import (
	"context"
	"math/big"
	"time"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
	historyDomain "github.com/fd1az/torus-bridge/business/history/domain"
)

// TrackerEventKind is a lifecycle event of a submitted native extrinsic.
type TrackerEventKind string

const (
	TrackerSubmitted TrackerEventKind = "submitted"
	TrackerInBlock   TrackerEventKind = "inBlock"
	TrackerFinalized TrackerEventKind = "finalized"
	TrackerError     TrackerEventKind = "error"
)

// TrackerEvent is emitted by a Tracker.
type TrackerEvent struct {
	Kind      TrackerEventKind
	TxHash    string
	BlockHash string
	Err       error
}

// Tracker streams the lifecycle of a native transfer. Events is closed once
// the extrinsic reaches a terminal state or Stop is called. Stop is
// idempotent.
type Tracker interface {
	// TxHash is the hash of the submitted extrinsic.
	TxHash() string
	Events() <-chan TrackerEvent
	Stop()
}

// NativeChain is the Substrate side of Torus.
type NativeChain interface {
	// Transfer submits Balances.transfer_allow_death to dest (SS58).
	Transfer(ctx context.Context, dest string, amount *big.Int) (Tracker, error)
	FreeBalance(ctx context.Context, address string) (*big.Int, error)
}

// Wallets snapshots both signing accounts.
type Wallets interface {
	ConnectionState(ctx context.Context) domain.WalletConnectionState
}

// NativeSigner is the native account as seen by WalletStatus.
type NativeSigner interface {
	Address() string
	IsConnected() bool
}

// EVMWallet is the connected EVM signer.
type EVMWallet interface {
	Address() string
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
}

// BalanceReader reads TORUS balances on the three chains.
type BalanceReader interface {
	TorusEVMBalance(ctx context.Context, evmAddress string) (*big.Int, error)
	BaseBalance(ctx context.Context, evmAddress string) (*big.Int, error)
	NativeBalance(ctx context.Context, nativeAddress string) (*big.Int, error)
}

// WarpToken describes TORUS on one side of the Hyperlane route.
type WarpToken struct {
	Chain    string
	Symbol   string
	Address  string
	ChainID  uint64
	Decimals uint8
}

// WarpTransfer is a Hyperlane transferRemote request.
type WarpTransfer struct {
	Origin      string
	Destination string
	Amount      *big.Int
	Sender      string
	Recipient   string
}

// WarpRouter moves TORUS between Base and Torus EVM.
type WarpRouter interface {
	Token(chain, symbol string) (WarpToken, error)
	// MaxTransferAmount is balance minus the interchain fee when the fee is
	// paid in the transferred coin.
	MaxTransferAmount(ctx context.Context, origin string, balance *big.Int, sender string) (*big.Int, error)
	// Transfer signs and sends the route transaction and returns its hash.
	Transfer(ctx context.Context, req WarpTransfer) (string, error)
}

// ReceiptWaiter waits for an EVM transaction to be mined and buried.
type ReceiptWaiter interface {
	WaitForConfirmations(ctx context.Context, chain, txHash string, confirmations uint64) error
}

// EVMWithdrawer withdraws from Torus EVM to a native account.
type EVMWithdrawer interface {
	ReceiptWaiter
	WithdrawToNative(ctx context.Context, nativeAddress string, amount *big.Int) (string, error)
}

// AddressMapper derives the SS58 mirror of an EVM address.
type AddressMapper interface {
	EVMToNative(evmAddress string) (string, error)
}

// EventType names a lifecycle event.
type EventType string

const (
	EventTransferStarted  EventType = "transfer.started"
	EventStepConfirming   EventType = "transfer.step_confirming"
	EventStepCompleted    EventType = "transfer.step_completed"
	EventTransferComplete EventType = "transfer.completed"
	EventTransferFailed   EventType = "transfer.failed"
)

// Event is published on transfer lifecycle changes.
type Event struct {
	Type          EventType        `json:"type"`
	TransactionID string           `json:"transactionId,omitempty"`
	Direction     domain.Direction `json:"direction"`
	Step          domain.Step      `json:"step"`
	Amount        string           `json:"amount"`
	TxHash        string           `json:"txHash,omitempty"`
	Message       string           `json:"message,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// EventPublisher fans events out to external sinks.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// History is the part of the history service the orchestrator writes to.
type History interface {
	AddTransaction(ctx context.Context, item historyDomain.Item) (string, error)
	UpdateTransaction(ctx context.Context, id string, patch historyDomain.Patch) error
	MarkAsRetried(ctx context.Context, id string) error
	MarkFailedAsRecoveredViaEvmRecover(ctx context.Context) (int, error)
}
