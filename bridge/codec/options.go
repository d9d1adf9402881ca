package codec

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultLzReceiveGas is the destination gas requested for lzReceive.
	DefaultLzReceiveGas uint64 = 200000

	optionsTypeV3        uint16 = 3
	executorWorkerID     byte   = 1
	optionTypeLzReceive  byte   = 1
	adapterParamsTypeOne uint16 = 1
)

// AddressToBytes32 left-pads an address into the 32-byte slot used for OFT recipients.
func AddressToBytes32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[:], common.LeftPadBytes(addr.Bytes(), 32))
	return out
}

// Bytes32ToAddress takes the low 20 bytes of a bytes32 recipient.
func Bytes32ToAddress(b [32]byte) common.Address {
	return common.BytesToAddress(b[12:])
}

// ExecutorLzReceiveOption encodes LayerZero V2 type 3 options carrying a single executor
// lzReceive option. The native value field is only appended when non-zero.
//
//	0x0003 | workerId(1) | size(2) | optionType(1) | gas(uint128) [| value(uint128)]
func ExecutorLzReceiveOption(gas uint64, value *big.Int) []byte {
	option := []byte{optionTypeLzReceive}
	option = append(option, uint128(new(big.Int).SetUint64(gas))...)
	if value != nil && value.Sign() > 0 {
		option = append(option, uint128(value)...)
	}

	out := make([]byte, 0, 2+1+2+len(option))
	out = binary.BigEndian.AppendUint16(out, optionsTypeV3)
	out = append(out, executorWorkerID)
	out = binary.BigEndian.AppendUint16(out, uint16(len(option)))
	return append(out, option...)
}

// AdapterParamsV1 encodes LayerZero V1 adapter params of type 1: 0x0001 | gas(uint256).
func AdapterParamsV1(gas uint64) []byte {
	out := binary.BigEndian.AppendUint16(nil, adapterParamsTypeOne)
	return append(out, common.LeftPadBytes(new(big.Int).SetUint64(gas).Bytes(), 32)...)
}

func uint128(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 16)
}
