package app

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"strings"

	"github.com/fd1az/torus-bridge/business/bridge/domain"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/asset"
)

// eip1193UserRejected is the provider error code for a declined request.
const eip1193UserRejected = 4001

// ErrUserRejected is the errors.Is target for a declined signature or
// chain switch.
var ErrUserRejected = apperror.Sentinel(apperror.CodeUserRejected)

// NewUserRejectedError builds a user rejection with an optional message.
func NewUserRejectedError(message string, cause error) error {
	if message == "" {
		message = "Transaction rejected by user"
	}
	return apperror.New(apperror.CodeUserRejected, apperror.WithMessage(message), apperror.WithCause(cause))
}

// IsUserRejected reports whether err is, or wraps, a user rejection error.
func IsUserRejected(err error) bool {
	return apperror.HasCode(err, apperror.CodeUserRejected)
}

// Classifier maps a wallet or chain error to an ErrorKind.
type Classifier interface {
	Classify(err error) domain.ErrorKind
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(err error) domain.ErrorKind

func (f ClassifierFunc) Classify(err error) domain.ErrorKind { return f(err) }

// HeuristicClassifier classifies by message substrings and error type
// names. It is the fallback when no structured error is available.
type HeuristicClassifier struct{}

var _ Classifier = HeuristicClassifier{}

// Classify implements Classifier.
func (HeuristicClassifier) Classify(err error) domain.ErrorKind {
	if err == nil {
		return domain.KindUnknown
	}
	if isRejection(err) {
		return domain.KindUserRejected
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "blind signing", "contract data"):
		return domain.KindBlindSigning
	case containsAny(msg, "ledger", "trezor", "device") && containsAny(msg, "locked", "unlock"):
		return domain.KindDeviceLocked
	case strings.Contains(msg, "device") && containsAny(msg, "disconnected", "not found"):
		return domain.KindDeviceDisconnected
	case strings.Contains(msg, "insufficient") && containsAny(msg, "funds", "balance", "eth"):
		if containsAny(msg, "gas", "eth") && !haveWantRe.MatchString(msg) {
			return domain.KindInsufficientGas
		}
		return domain.KindInsufficientFunds
	case containsAny(msg, "gas", "fee", "out of gas"):
		return domain.KindInsufficientGas
	case containsAny(msg, "network", "connection", "timeout"):
		return domain.KindNetwork
	case containsAny(msg, "internal error", "internalrpcerror"):
		return domain.KindInternal
	}
	return domain.KindUnknown
}

var defaultClassifier Classifier = HeuristicClassifier{}

// IsUserRejectionError reports whether err looks like the user declined a
// wallet prompt.
func IsUserRejectionError(err error) bool {
	return defaultClassifier.Classify(err) == domain.KindUserRejected
}

func isRejection(err error) bool {
	if IsUserRejected(err) {
		return true
	}

	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) && coded.ErrorCode() == eip1193UserRejected {
		return true
	}

	msg := strings.ToLower(err.Error())
	name := errorName(err)
	return containsAny(msg, "rejected", "denied", "cancelled", "declined", "user denied", "user rejected") ||
		(strings.Contains(msg, "signature") && strings.Contains(msg, "denied")) ||
		name == "UserRejectedRequestError" ||
		(name == "TransactionExecutionError" && strings.Contains(msg, "user rejected"))
}

// errorName returns the type name of err, or of the first error in its
// chain exposing a Name method.
func errorName(err error) string {
	var named interface{ Name() string }
	if errors.As(err, &named) {
		return named.Name()
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}

var (
	haveWantRe = regexp.MustCompile(`(?i)have\s+(\d+)\s+want\s+(\d+)`)
	detailsRe  = regexp.MustCompile(`(?i)Details:\s*([^\n]+)`)
	chainRe    = regexp.MustCompile(`(?i)chain:\s*([^(]+)\(id:\s*(\d+)\)`)
	valueRe    = regexp.MustCompile(`(?i)value:\s*([\d.]+)\s*(\w+)`)
)

const (
	msgBlindSigning   = "Your hardware wallet requires Blind Signing to be enabled for this transaction."
	msgDeviceLocked   = "Your hardware wallet is locked. Please unlock it and try again."
	msgDisconnected   = "Hardware wallet disconnected. Please reconnect your device and try again."
	msgGasWallet      = "Insufficient ETH for gas fees. Please add ETH to your wallet and try again."
	msgFunds          = "Insufficient funds. Please check your balance and try with a smaller amount."
	msgGasTorusEVM    = "Insufficient ETH for gas fees. Please add ETH to your Torus EVM wallet and try again."
	msgNetwork        = "Network connection issue. Please check your internet connection and try again."
	msgRejected       = "Transaction was rejected. Please try again when ready."
	msgGenericFailure = "Transaction failed. Please try again or contact support."
	msgUnknown        = "Unknown error"
)

// FormatErrorForUser turns a wallet or RPC error into a short message for
// display. The first matching rule wins.
func FormatErrorForUser(err error) string {
	if err == nil {
		return msgUnknown
	}
	message := displayMessage(err)
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, "blind signing", "contract data"):
		return msgBlindSigning
	case containsAny(lower, "ledger", "trezor", "device") && containsAny(lower, "locked", "unlock"):
		return msgDeviceLocked
	case strings.Contains(lower, "device") && containsAny(lower, "disconnected", "not found"):
		return msgDisconnected
	case strings.Contains(lower, "insufficient") && containsAny(lower, "funds", "balance", "eth"):
		return formatInsufficient(message, lower)
	case containsAny(lower, "gas", "fee", "out of gas"):
		return msgGasTorusEVM
	case containsAny(lower, "network", "connection", "timeout"):
		return msgNetwork
	case IsUserRejectionError(err):
		return msgRejected
	}

	if strings.Contains(lower, "internal error") {
		if details, ok := extractDetails(message); ok {
			if context, ok := extractTransactionContext(message); ok {
				return details + "\n\nTransaction: " + context
			}
			return details
		}
	}
	if strings.Contains(lower, "transactionexecutionerror") {
		if details, ok := extractDetails(message); ok {
			return "Transaction failed: " + details
		}
	}
	if strings.Contains(lower, "internalrpcerror") {
		if details, ok := extractDetails(message); ok {
			return details
		}
	}

	if len(message) > 200 {
		if details, ok := extractDetails(message); ok {
			return details
		}
		for _, line := range strings.Split(message, "\n") {
			if strings.TrimSpace(line) != "" && !strings.Contains(line, "at ") && !strings.Contains(line, "(") {
				return strings.TrimSpace(line)
			}
		}
		return msgGenericFailure
	}
	return message
}

// displayMessage unwraps application errors to the text a wallet or node
// produced, so code prefixes never reach the user.
func displayMessage(err error) string {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	if cause := appErr.Unwrap(); cause != nil {
		return displayMessage(cause)
	}
	return appErr.Message
}

func formatInsufficient(message, lower string) string {
	if m := haveWantRe.FindStringSubmatch(message); m != nil {
		have, okHave := new(big.Int).SetString(m[1], 10)
		want, okWant := new(big.Int).SetString(m[2], 10)
		if okHave && okWant {
			missing := new(big.Int).Sub(want, have)
			return fmt.Sprintf(
				"Insufficient funds.\n\nYou have: %s ETH\nRequired: %s ETH\nMissing: %s ETH\n\nPlease add funds to your wallet.",
				asset.WeiToFixed(have, 6), asset.WeiToFixed(want, 6), asset.WeiToFixed(missing, 6),
			)
		}
	}
	if containsAny(lower, "gas", "eth") {
		return msgGasWallet
	}
	return msgFunds
}

func extractDetails(message string) (string, bool) {
	m := detailsRe.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	details := strings.TrimSpace(m[1])
	return details, details != ""
}

func extractTransactionContext(message string) (string, bool) {
	chain := chainRe.FindStringSubmatch(message)
	value := valueRe.FindStringSubmatch(message)
	if chain == nil || value == nil {
		return "", false
	}
	token := value[2]
	if token == "" {
		token = "TORUS"
	}
	return fmt.Sprintf("%s %s on %s", value[1], token, strings.TrimSpace(chain[1])), true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
