package executor

import (
	"errors"

	"github.com/telosbridge/lzbridge/bridge/chain"
	"github.com/telosbridge/lzbridge/bridge/models"
)

// classifyFailure maps a write-side failure onto the error catalogue by its tag.
func classifyFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded *models.ErrorResponse
	if errors.As(err, &coded) {
		return err
	}

	kind, _ := chain.KindOf(chain.ClassifyTxError(op, err))
	switch kind {
	case chain.TxErrorUserRejected:
		return models.ErrUserRejected.Wrap(err)
	case chain.TxErrorReverted:
		return models.ErrTransactionReverted.Wrap(err)
	default:
		return models.ErrRpc.Wrap(err)
	}
}
