package executor

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/telosbridge/lzbridge/bridge/router"
)

// State is one step of a transfer. Transitions are linear.
type State string

const (
	StatePreparing         State = "PREPARING"
	StateSwitchingNetwork  State = "SWITCHING_NETWORK"
	StateCheckingApproval  State = "CHECKING_APPROVAL"
	StateApproving         State = "APPROVING"
	StateQuotingFee        State = "QUOTING_FEE"
	StateAwaitingSignature State = "AWAITING_SIGNATURE"
	StateSubmitted         State = "SUBMITTED"
	StateConfirmed         State = "CONFIRMED"
)

// StatusEvent is emitted on every state transition.
type StatusEvent struct {
	State   State
	Message string
	TxHash  common.Hash
}

// StatusFunc receives progress. It must not block.
type StatusFunc func(StatusEvent)

// TransferIntent is one user-confirmed transfer. It is consumed by a single Execute call.
type TransferIntent struct {
	Classification *router.RouteClassification
	Amount         string // human decimal
	Sender         common.Address
	Recipient      common.Address
	// MaxSlippageBps bounds pool slippage. Nil uses the default of 50 bps.
	MaxSlippageBps *uint32
}

// TransferReceipt is returned once the transfer transaction is confirmed.
type TransferReceipt struct {
	TransactionHash  common.Hash
	ApprovalHash     common.Hash // zero when no approval was needed
	Mechanism        router.Mechanism
	BlockNumber      uint64
	AmountSent       *big.Int
	AmountReceivable *big.Int
	ProtocolFee      *big.Int // buffered fee paid
	Value            *big.Int
	FeeEstimated     bool
	TrackingURL      string
}
