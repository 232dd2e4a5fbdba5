package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeCircuitOpen: "Circuit breaker is open",

	CodeUserRejected:       "Transaction rejected by user",
	CodeOperationTimeout:   "Operation timed out",
	CodePollingFailed:      "Balance did not reach the expected value",
	CodeChainSwitchFailed:  "Failed to switch network",
	CodeTransferFailed:     "Bridge transfer failed",
	CodeTransferInProgress: "Another transfer is already in progress",
	CodeNoFailedStep:       "No failed step to retry",
	CodeInvalidAmount:      "Invalid amount",
	CodeInvalidDirection:   "Invalid bridge direction",
	CodeInsufficientFunds:  "Insufficient balance for this transfer",
	CodeTokenNotFound:      "Bridge token not found",
	CodeWalletNotConnected: "Wallet is not connected",

	CodeEVMConnectionFailed:     "Failed to connect to EVM node",
	CodeEVMRPCError:             "EVM RPC call failed",
	CodeContractCallFailed:      "Smart contract call failed",
	CodeTransactionFailed:       "Transaction reverted",
	CodeReceiptTimeout:          "Timed out waiting for transaction receipt",
	CodeSubstrateConnection:     "Failed to connect to Torus node",
	CodeSubstrateRPCError:       "Torus RPC call failed",
	CodeSubstrateEncodingFailed: "Failed to encode Torus extrinsic",
	CodeExtrinsicDropped:        "Extrinsic was dropped or marked invalid",
	CodeInvalidAddress:          "Invalid address",

	CodeHistoryNotFound:      "Transaction not found in history",
	CodeHistoryPersistFailed: "Failed to persist transaction history",
	CodeHistoryLoadFailed:    "Failed to load transaction history",
	CodeHistoryVersion:       "Unsupported transaction history version",
	CodeRecoveryNotFound:     "Transaction not found. It may have been cleared from history.",
	CodeRecoveryNeedsRetry:   "Step 2 may already have been sent. Check Torus EVM, then retry the transfer.",
	CodeNotificationFailed:   "Failed to publish transfer event",
}
