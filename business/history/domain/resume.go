package domain

import bridge "github.com/fd1az/torus-bridge/business/bridge/domain"

// ResumePhase names where an interrupted transfer picks up again.
type ResumePhase string

const (
	ResumeNone       ResumePhase = "none"
	ResumeStep1Poll  ResumePhase = "step1_polling"
	ResumeStep2Start ResumePhase = "step2_start"
	ResumeStep2Poll  ResumePhase = "step2_polling"

	// ResumeRestore marks an item that stopped while step 2 was being
	// signed. Its hash may never have been saved, so it is restored for a
	// user-started retry instead of being signed again.
	ResumeRestore ResumePhase = "restore"
)

// ResumePhase decides how to continue item. Only polling is ever re-entered
// for a step whose transaction was already submitted, so no step is signed
// twice.
func (it Item) ResumePhase() ResumePhase {
	if !it.Status.IsResumable() {
		return ResumeNone
	}
	if it.Step2TxHash != "" {
		return ResumeStep2Poll
	}

	switch it.CurrentStep {
	case bridge.Step2Confirming:
		return ResumeStep2Poll
	case bridge.Step2Signing:
		return ResumeRestore
	case bridge.Step1Complete, bridge.Step2Preparing, bridge.Step2Switching:
		return ResumeStep2Start
	case bridge.Step1Confirming:
		return ResumeStep1Poll
	}

	if it.Status == StatusStep1Complete {
		return ResumeStep2Start
	}
	if it.Step1TxHash != "" {
		return ResumeStep1Poll
	}
	return ResumeNone
}
