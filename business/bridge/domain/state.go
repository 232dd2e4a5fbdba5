package domain

// TransferState is the single in-progress transfer.
type TransferState struct {
	Step         Step      `json:"step"`
	Direction    Direction `json:"direction,omitempty"`
	Amount       string    `json:"amount"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	ErrorDetails string    `json:"errorDetails,omitempty"`
}

// IdleState is the initial state.
func IdleState() TransferState {
	return TransferState{Step: StepIdle}
}

// StateUpdate is a partial update; nil fields are left untouched.
type StateUpdate struct {
	Step         *Step
	Direction    *Direction
	Amount       *string
	ErrorMessage *string
	ErrorDetails *string
}

// Apply shallow-merges u into s. Error fields only survive in the error
// step, and the direction is cleared when returning to idle.
func (u StateUpdate) Apply(s TransferState) TransferState {
	if u.Step != nil {
		s.Step = *u.Step
	}
	if u.Direction != nil {
		s.Direction = *u.Direction
	}
	if u.Amount != nil {
		s.Amount = *u.Amount
	}
	if u.ErrorMessage != nil {
		s.ErrorMessage = *u.ErrorMessage
	}
	if u.ErrorDetails != nil {
		s.ErrorDetails = *u.ErrorDetails
	}

	if s.Step != StepError {
		s.ErrorMessage = ""
		s.ErrorDetails = ""
	}
	if s.Step == StepIdle && u.Direction == nil {
		s.Direction = DirectionNone
	}
	return s
}

// ToStep is the common "just move the step" update.
func ToStep(step Step) StateUpdate {
	return StateUpdate{Step: &step}
}

// ToError moves to the error step with a user-facing message.
func ToError(message, details string) StateUpdate {
	step := StepError
	return StateUpdate{Step: &step, ErrorMessage: &message, ErrorDetails: &details}
}
