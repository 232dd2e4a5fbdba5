package domain

// ErrorKind is the closed classification of wallet and chain failures.
type ErrorKind string

const (
	KindUserRejected       ErrorKind = "user_rejected"
	KindBlindSigning       ErrorKind = "blind_signing"
	KindDeviceLocked       ErrorKind = "device_locked"
	KindDeviceDisconnected ErrorKind = "device_disconnected"
	KindInsufficientFunds  ErrorKind = "insufficient_funds"
	KindInsufficientGas    ErrorKind = "insufficient_gas"
	KindNetwork            ErrorKind = "network"
	KindInternal           ErrorKind = "internal"
	KindUnknown            ErrorKind = "unknown"
)

func (k ErrorKind) String() string { return string(k) }
