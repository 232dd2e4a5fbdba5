package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"

	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)

// Bridge transfer codes
const (
	CodeUserRejected       Code = "USER_REJECTED"
	CodeOperationTimeout   Code = "OPERATION_TIMEOUT"
	CodePollingFailed      Code = "POLLING_FAILED"
	CodeChainSwitchFailed  Code = "CHAIN_SWITCH_FAILED"
	CodeTransferFailed     Code = "TRANSFER_FAILED"
	CodeTransferInProgress Code = "TRANSFER_IN_PROGRESS"
	CodeNoFailedStep       Code = "NO_FAILED_STEP"
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodeInvalidDirection   Code = "INVALID_DIRECTION"
	CodeInsufficientFunds  Code = "INSUFFICIENT_FUNDS"
	CodeTokenNotFound      Code = "TOKEN_NOT_FOUND"
	CodeWalletNotConnected Code = "WALLET_NOT_CONNECTED"
)

// Chain adapter codes
const (
	CodeEVMConnectionFailed     Code = "EVM_CONNECTION_FAILED"
	CodeEVMRPCError             Code = "EVM_RPC_ERROR"
	CodeContractCallFailed      Code = "CONTRACT_CALL_FAILED"
	CodeTransactionFailed       Code = "TRANSACTION_FAILED"
	CodeReceiptTimeout          Code = "RECEIPT_TIMEOUT"
	CodeSubstrateConnection     Code = "SUBSTRATE_CONNECTION_FAILED"
	CodeSubstrateRPCError       Code = "SUBSTRATE_RPC_ERROR"
	CodeSubstrateEncodingFailed Code = "SUBSTRATE_ENCODING_FAILED"
	CodeExtrinsicDropped        Code = "EXTRINSIC_DROPPED"
	CodeInvalidAddress          Code = "INVALID_ADDRESS"
)

// History and recovery codes
const (
	CodeHistoryNotFound      Code = "HISTORY_NOT_FOUND"
	CodeHistoryPersistFailed Code = "HISTORY_PERSIST_FAILED"
	CodeHistoryLoadFailed    Code = "HISTORY_LOAD_FAILED"
	CodeHistoryVersion       Code = "HISTORY_VERSION_UNSUPPORTED"
	CodeRecoveryNotFound     Code = "RECOVERY_NOT_FOUND"
	CodeRecoveryNeedsRetry   Code = "RECOVERY_NEEDS_RETRY"
	CodeNotificationFailed   Code = "NOTIFICATION_FAILED"
)
