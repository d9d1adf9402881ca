package protocols

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// SendParam is the LayerZero V2 OFT SendParam struct.
type SendParam struct {
	DstEid       uint32
	To           [32]byte
	AmountLD     *big.Int
	MinAmountLD  *big.Int
	ExtraOptions []byte
	ComposeMsg   []byte
	OftCmd       []byte
}

// MessagingFee is the LayerZero V2 fee pair.
type MessagingFee struct {
	NativeFee  *big.Int
	LzTokenFee *big.Int
}

// OFTLimit bounds the amount an OFT accepts.
type OFTLimit struct {
	MinAmountLD *big.Int
	MaxAmountLD *big.Int
}

// OFTFeeDetail is one fee line of quoteOFT.
type OFTFeeDetail struct {
	FeeAmountLD *big.Int
	Description string
}

// OFTReceipt is what a send debits and credits.
type OFTReceipt struct {
	AmountSentLD     *big.Int
	AmountReceivedLD *big.Int
}

// CallParams is the LayerZero V1 wrapped bridge refund tuple.
type CallParams struct {
	RefundAddress     common.Address
	ZroPaymentAddress common.Address
}

const sendParamComponents = `[
	{"name":"dstEid","type":"uint32"},
	{"name":"to","type":"bytes32"},
	{"name":"amountLD","type":"uint256"},
	{"name":"minAmountLD","type":"uint256"},
	{"name":"extraOptions","type":"bytes"},
	{"name":"composeMsg","type":"bytes"},
	{"name":"oftCmd","type":"bytes"}
]`

const messagingFeeComponents = `[
	{"name":"nativeFee","type":"uint256"},
	{"name":"lzTokenFee","type":"uint256"}
]`

const oftReceiptComponents = `[
	{"name":"amountSentLD","type":"uint256"},
	{"name":"amountReceivedLD","type":"uint256"}
]`

var (
	// OFTABI covers LayerZero V2 OFTs, native OFT adapters and Stargate V2 pools.
	OFTABI = mustParseABI(`[
		{"type":"function","name":"quoteSend","stateMutability":"view",
			"inputs":[
				{"name":"_sendParam","type":"tuple","components":` + sendParamComponents + `},
				{"name":"_payInLzToken","type":"bool"}
			],
			"outputs":[{"name":"msgFee","type":"tuple","components":` + messagingFeeComponents + `}]},
		{"type":"function","name":"quoteOFT","stateMutability":"view",
			"inputs":[{"name":"_sendParam","type":"tuple","components":` + sendParamComponents + `}],
			"outputs":[
				{"name":"oftLimit","type":"tuple","components":[
					{"name":"minAmountLD","type":"uint256"},
					{"name":"maxAmountLD","type":"uint256"}
				]},
				{"name":"oftFeeDetails","type":"tuple[]","components":[
					{"name":"feeAmountLD","type":"int256"},
					{"name":"description","type":"string"}
				]},
				{"name":"oftReceipt","type":"tuple","components":` + oftReceiptComponents + `}
			]},
		{"type":"function","name":"send","stateMutability":"payable",
			"inputs":[
				{"name":"_sendParam","type":"tuple","components":` + sendParamComponents + `},
				{"name":"_fee","type":"tuple","components":` + messagingFeeComponents + `},
				{"name":"_refundAddress","type":"address"}
			],
			"outputs":[
				{"name":"msgReceipt","type":"tuple","components":[
					{"name":"guid","type":"bytes32"},
					{"name":"nonce","type":"uint64"},
					{"name":"fee","type":"tuple","components":` + messagingFeeComponents + `}
				]},
				{"name":"oftReceipt","type":"tuple","components":` + oftReceiptComponents + `}
			]},
		{"type":"function","name":"token","stateMutability":"view","inputs":[],
			"outputs":[{"name":"","type":"address"}]}
	]`)

	// ERC20ABI is the allowance slice of ERC-20.
	ERC20ABI = mustParseABI(`[
		{"type":"function","name":"allowance","stateMutability":"view",
			"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
			"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"approve","stateMutability":"nonpayable",
			"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
			"outputs":[{"name":"","type":"bool"}]}
	]`)

	// WrappedBridgeABI is the LayerZero V1 wrapped token bridge on Telos.
	WrappedBridgeABI = mustParseABI(`[
		{"type":"function","name":"estimateBridgeFee","stateMutability":"view",
			"inputs":[
				{"name":"_dstChainId","type":"uint16"},
				{"name":"_useZro","type":"bool"},
				{"name":"_adapterParams","type":"bytes"}
			],
			"outputs":[{"name":"nativeFee","type":"uint256"},{"name":"zroFee","type":"uint256"}]},
		{"type":"function","name":"bridge","stateMutability":"payable",
			"inputs":[
				{"name":"_token","type":"address"},
				{"name":"_dstChainId","type":"uint16"},
				{"name":"_amount","type":"uint256"},
				{"name":"_to","type":"address"},
				{"name":"_unwrapETH","type":"bool"},
				{"name":"_callParams","type":"tuple","components":[
					{"name":"refundAddress","type":"address"},
					{"name":"zroPaymentAddress","type":"address"}
				]},
				{"name":"_adapterParams","type":"bytes"}
			],
			"outputs":[]}
	]`)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
