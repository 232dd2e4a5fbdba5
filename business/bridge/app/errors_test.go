package app

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
	"github.com/fd1az/torus-bridge/internal/apperror"
)

type providerError struct{ code int }

func (e providerError) Error() string  { return fmt.Sprintf("provider error %d", e.code) }
func (e providerError) ErrorCode() int { return e.code }

type UserRejectedRequestError struct{}

func (UserRejectedRequestError) Error() string { return "request not approved" }

func TestFormatErrorForUser(t *testing.T) {
	longStack := "Something broke badly\n" + strings.Repeat("at frame (file.js:1:1)\n", 20)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "Unknown error"},
		{"blind signing", errors.New("Please enable Blind signing on the device"), msgBlindSigning},
		{"contract data", errors.New("Ledger: contract data disabled"), msgBlindSigning},
		{"locked device", errors.New("Ledger device: Locked device (0x5515)"), msgDeviceLocked},
		{"disconnected device", errors.New("device disconnected during signing"), msgDisconnected},
		{
			"have want",
			errors.New("insufficient funds for gas * price + value: have 1000000000000000 want 3000000000000000"),
			"Insufficient funds.\n\nYou have: 0.001000 ETH\nRequired: 0.003000 ETH\nMissing: 0.002000 ETH\n\nPlease add funds to your wallet.",
		},
		{"insufficient eth", errors.New("insufficient ETH to pay for gas"), msgGasWallet},
		{"insufficient balance", errors.New("Insufficient balance for transfer"), msgFunds},
		{"gas", errors.New("intrinsic gas too low"), msgGasTorusEVM},
		{"network", errors.New("network request failed"), msgNetwork},
		{"timeout", errors.New("request timeout"), msgNetwork},
		{"rejected", errors.New("User rejected the request."), msgRejected},
		{"eip-1193 code", providerError{code: 4001}, msgRejected},
		{"rejection type name", UserRejectedRequestError{}, msgRejected},
		{
			"internal error with context",
			errors.New("Internal error\nDetails: execution reverted\nchain: Torus EVM (id: 21000)\nvalue: 1.5 TORUS"),
			"execution reverted\n\nTransaction: 1.5 TORUS on Torus EVM",
		},
		{"internal error details only", errors.New("Internal error. Details: nonce too low"), "nonce too low"},
		{"execution error", errors.New("TransactionExecutionError: Details: reverted by contract"), "Transaction failed: reverted by contract"},
		{"internal rpc", errors.New("InternalRpcError Details: header not found"), "header not found"},
		{"long stack", errors.New(longStack), "Something broke badly"},
		{"plain", errors.New("execution reverted"), "execution reverted"},
		{
			"app error shows cause text",
			apperror.New(apperror.CodeTransferFailed, apperror.WithCause(errors.New("execution reverted"))),
			"execution reverted",
		},
		{
			"app error without cause shows message",
			apperror.New(apperror.CodePollingFailed, apperror.WithMessage("Base: balance did not change after 3 attempts")),
			"Base: balance did not change after 3 attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatErrorForUser(tt.err); got != tt.want {
				t.Errorf("FormatErrorForUser() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeuristicClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"nil", nil, domain.KindUnknown},
		{"user denied", errors.New("MetaMask Tx Signature: User denied transaction signature."), domain.KindUserRejected},
		{"cancelled", errors.New("Cancelled by user"), domain.KindUserRejected},
		{"sentinel", NewUserRejectedError("", nil), domain.KindUserRejected},
		{"wrapped sentinel", fmt.Errorf("step 2: %w", NewUserRejectedError("", nil)), domain.KindUserRejected},
		{"blind signing", errors.New("blind signing required"), domain.KindBlindSigning},
		{"gas", errors.New("insufficient funds for gas"), domain.KindInsufficientGas},
		{"funds", errors.New("insufficient balance"), domain.KindInsufficientFunds},
		{"have want", errors.New("insufficient funds: have 1 want 2"), domain.KindInsufficientFunds},
		{"network", errors.New("connection refused"), domain.KindNetwork},
		{"internal", errors.New("internal error"), domain.KindInternal},
		{"unknown", errors.New("nonce too low"), domain.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (HeuristicClassifier{}).Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsUserRejected(t *testing.T) {
	err := NewUserRejectedError("Chain switch rejected by user", errors.New("4001"))
	if !IsUserRejected(err) {
		t.Fatal("expected rejection error to match")
	}
	if !errors.Is(err, ErrUserRejected) {
		t.Error("errors.Is(err, ErrUserRejected) = false")
	}
	if IsUserRejected(errors.New("user rejected")) {
		t.Error("plain errors must not match the typed check")
	}
	if !IsUserRejectionError(errors.New("user rejected")) {
		t.Error("heuristic check should match a rejection message")
	}
}
