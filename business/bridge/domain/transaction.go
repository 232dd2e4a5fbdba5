package domain

// TxStatus is the status of a per-step transaction record. The zero value
// means no status yet.
type TxStatus string

const (
	TxStatusNone       TxStatus = ""
	TxStatusStarting   TxStatus = "STARTING"
	TxStatusSigning    TxStatus = "SIGNING"
	TxStatusConfirming TxStatus = "CONFIRMING"
	TxStatusSuccess    TxStatus = "SUCCESS"
	TxStatusError      TxStatus = "ERROR"
)

// ErrorPhase tells whether a step failed while signing or confirming.
type ErrorPhase string

const (
	PhaseNone    ErrorPhase = ""
	PhaseSign    ErrorPhase = "sign"
	PhaseConfirm ErrorPhase = "confirm"
)

// MetadataTypeSwitch tags chain-switch records.
const MetadataTypeSwitch = "switch"

// RecordMetadata carries extra information about a record.
type RecordMetadata struct {
	Type        string `json:"type,omitempty"`
	FromChainID uint64 `json:"fromChainId,omitempty"`
	ToChainID   uint64 `json:"toChainId,omitempty"`
}

// TransactionRecord is the log entry for one bridge step of the current
// transfer. There is at most one record per Step value.
type TransactionRecord struct {
	Step         int             `json:"step"`
	Status       TxStatus        `json:"status,omitempty"`
	TxHash       string          `json:"txHash,omitempty"`
	ExplorerURL  string          `json:"explorerUrl,omitempty"`
	Message      string          `json:"message,omitempty"`
	ErrorDetails string          `json:"errorDetails,omitempty"`
	ErrorPhase   ErrorPhase      `json:"errorPhase,omitempty"`
	ChainName    string          `json:"chainName,omitempty"`
	Metadata     *RecordMetadata `json:"metadata,omitempty"`
}

// IsSwitch reports whether the record describes a chain switch.
func (r TransactionRecord) IsSwitch() bool {
	return r.Metadata != nil && r.Metadata.Type == MetadataTypeSwitch
}

// Clone returns a deep copy.
func (r TransactionRecord) Clone() TransactionRecord {
	if r.Metadata != nil {
		md := *r.Metadata
		r.Metadata = &md
	}
	return r
}
