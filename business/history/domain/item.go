// Package domain defines persisted transfer history items.
package domain

import (
	"time"

	bridge "github.com/fd1az/torus-bridge/business/bridge/domain"
)

// Status is the lifecycle status of a history item.
type Status string

const (
	StatusPending       Status = "pending"
	StatusStep1Complete Status = "step1_complete"
	StatusCompleted     Status = "completed"
	StatusError         Status = "error"
)

// IsResumable reports whether an item can be picked up after a restart.
func (s Status) IsResumable() bool {
	return s == StatusPending || s == StatusStep1Complete
}

// Item is one persisted transfer attempt.
type Item struct {
	ID                     string           `json:"id" gorm:"primaryKey;size:64"`
	Timestamp              time.Time        `json:"timestamp" gorm:"index"`
	Direction              bridge.Direction `json:"direction" gorm:"size:32"`
	Amount                 string           `json:"amount" gorm:"size:78"`
	Status                 Status           `json:"status" gorm:"size:32;index"`
	CurrentStep            bridge.Step      `json:"currentStep" gorm:"size:32"`
	Step1TxHash            string           `json:"step1TxHash,omitempty" gorm:"size:80"`
	Step2TxHash            string           `json:"step2TxHash,omitempty" gorm:"size:80"`
	Step1BaselineBalance   string           `json:"step1BaselineBalance,omitempty" gorm:"size:78"`
	Step2BaselineBalance   string           `json:"step2BaselineBalance,omitempty" gorm:"size:78"`
	ErrorMessage           string           `json:"errorMessage,omitempty"`
	ErrorStep              int              `json:"errorStep,omitempty"`
	CanRetry               bool             `json:"canRetry"`
	EVMAddress             string           `json:"baseAddress,omitempty" gorm:"size:64"`
	NativeAddress          string           `json:"nativeAddress,omitempty" gorm:"size:64"`
	RecoveredViaEvmRecover bool             `json:"recoveredViaEvmRecover,omitempty"`
}

// Patch is a partial update. Nil fields are left untouched; the Clear flags
// remove the error fields.
type Patch struct {
	Status                 *Status
	CurrentStep            *bridge.Step
	Step1TxHash            *string
	Step2TxHash            *string
	Step1BaselineBalance   *string
	Step2BaselineBalance   *string
	ErrorMessage           *string
	ErrorStep              *int
	CanRetry               *bool
	RecoveredViaEvmRecover *bool

	ClearError bool
}

// Apply returns item with p merged in.
func (p Patch) Apply(item Item) Item {
	if p.Status != nil {
		item.Status = *p.Status
	}
	if p.CurrentStep != nil {
		item.CurrentStep = *p.CurrentStep
	}
	if p.Step1TxHash != nil {
		item.Step1TxHash = *p.Step1TxHash
	}
	if p.Step2TxHash != nil {
		item.Step2TxHash = *p.Step2TxHash
	}
	if p.Step1BaselineBalance != nil {
		item.Step1BaselineBalance = *p.Step1BaselineBalance
	}
	if p.Step2BaselineBalance != nil {
		item.Step2BaselineBalance = *p.Step2BaselineBalance
	}
	if p.ErrorMessage != nil {
		item.ErrorMessage = *p.ErrorMessage
	}
	if p.ErrorStep != nil {
		item.ErrorStep = *p.ErrorStep
	}
	if p.CanRetry != nil {
		item.CanRetry = *p.CanRetry
	}
	if p.RecoveredViaEvmRecover != nil {
		item.RecoveredViaEvmRecover = *p.RecoveredViaEvmRecover
	}
	if p.ClearError {
		item.ErrorMessage = ""
		item.ErrorStep = 0
	}
	return item
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T { return &v }
