// Package substrate implements the Torus Native side of the bridge: SS58
// addresses, free balances and Balances.transfer_allow_death with
// lifecycle tracking.
package substrate

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vedhavyas/go-subkey/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/fd1az/torus-bridge/business/bridge/app"
	"github.com/fd1az/torus-bridge/internal/apperror"
)

// DefaultSS58Prefix is the generic Substrate prefix used by Torus.
const DefaultSS58Prefix uint16 = 42

// evmMirrorPrefix is hashed with the H160 to derive its native mirror.
var evmMirrorPrefix = []byte("evm:")

// DecodeSS58 returns the 32-byte public key of address.
func DecodeSS58(address string) ([]byte, error) {
	_, pub, err := subkey.SS58Decode(strings.TrimSpace(address))
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidAddress,
			apperror.WithCause(err),
			apperror.WithContext(address))
	}
	if len(pub) != 32 {
		return nil, apperror.New(apperror.CodeInvalidAddress,
			apperror.WithContext("not a 32-byte account: "+address))
	}
	return pub, nil
}

// EncodeSS58 encodes a public key with prefix.
func EncodeSS58(pub []byte, prefix uint16) string {
	return subkey.SS58Encode(pub, prefix)
}

// Mapper derives the SS58 account that receives funds sent to an EVM
// address on Torus EVM.
type Mapper struct {
	prefix uint16
}

var _ app.AddressMapper = Mapper{}

// NewMapper returns a mapper encoding with prefix.
func NewMapper(prefix uint16) Mapper {
	if prefix == 0 {
		prefix = DefaultSS58Prefix
	}
	return Mapper{prefix: prefix}
}

// EVMToNative implements app.AddressMapper: blake2b-256("evm:" || h160).
func (m Mapper) EVMToNative(evmAddress string) (string, error) {
	if !common.IsHexAddress(evmAddress) {
		return "", apperror.New(apperror.CodeInvalidAddress, apperror.WithContext(evmAddress))
	}
	h160 := common.HexToAddress(evmAddress).Bytes()
	sum := blake2b.Sum256(append(append([]byte{}, evmMirrorPrefix...), h160...))
	return EncodeSS58(sum[:], m.prefix), nil
}
