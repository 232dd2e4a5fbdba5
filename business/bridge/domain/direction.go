package domain

import (
	"fmt"
	"strings"
)

// Direction is the overall route of a transfer.
type Direction string

const (
	DirectionNone Direction = ""
	BaseToNative  Direction = "base-to-native"
	NativeToBase  Direction = "native-to-base"
)

// ParseDirection accepts the canonical names.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case BaseToNative:
		return BaseToNative, nil
	case NativeToBase:
		return NativeToBase, nil
	}
	return DirectionNone, fmt.Errorf("unknown direction %q (want %s or %s)", s, BaseToNative, NativeToBase)
}

func (d Direction) String() string { return string(d) }

// Step1Chains returns the origin and destination chain names of step 1.
func (d Direction) Step1Chains() (from, to string) {
	if d == NativeToBase {
		return ChainTorusNative, ChainTorusEVM
	}
	return ChainBase, ChainTorusEVM
}

// Step2Chains returns the origin and destination chain names of step 2.
func (d Direction) Step2Chains() (from, to string) {
	if d == NativeToBase {
		return ChainTorusEVM, ChainBase
	}
	return ChainTorusEVM, ChainTorusNative
}
