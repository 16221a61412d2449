package eth

import (
	"context"
	"math/big"
	"strings"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflehub/backend/internal/domain/blockchain/types"
	"github.com/rafflehub/backend/pkg/ethutil"
	"github.com/rafflehub/backend/pkg/xcontext"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, request *types.DispatchedTxRequest) *types.DispatchedTxResult
}

type EthDispatcher struct {
	client EthClient
}

func NewEthDispatcher(client EthClient) *EthDispatcher {
	return &EthDispatcher{client: client}
}

func (d *EthDispatcher) Dispatch(ctx context.Context, request *types.DispatchedTxRequest) *types.DispatchedTxResult {
	tx := request.Tx

	signer := ethutil.SignerForChain(tx.ChainId(), tx.Type() == ethtypes.DynamicFeeTxType)
	from, err := ethtypes.Sender(signer, tx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot recover sender of tx %s: %v", tx.Hash(), err)
		return types.NewDispatchTxError(request, types.ErrMarshal)
	}

	// Check the balance to see if we have enough native token.
	balance, err := d.client.BalanceAt(ctx, from, nil)
	if err != nil || balance == nil {
		xcontext.Logger(ctx).Errorf("Cannot get balance for account %s: %v", from, err)
		return types.NewDispatchTxError(request, types.ErrGeneric)
	}

	minimum := new(big.Int).Mul(tx.GasPrice(), big.NewInt(int64(tx.Gas())))
	minimum = minimum.Add(minimum, tx.Value())
	if minimum.Cmp(balance) > 0 {
		xcontext.Logger(ctx).Errorf(
			"Balance smaller than minimum required for this transaction, from = %s, balance = %s, minimum = %s",
			from.String(), balance.String(), minimum.String())
		return types.NewDispatchTxError(request, types.ErrNotEnoughBalance)
	}

	err = d.client.SendTransaction(ctx, tx)
	if err == nil {
		xcontext.Logger(ctx).Infof("Tx is dispatched successfully for chain %s from %s txHash = %s",
			request.Chain, from, tx.Hash())
		return types.NewDispatchTxSuccess(request)
	}

	// It's possible that another submission attempt already delivered the same
	// transaction. This is counted as successful despite a returned error.
	// Ethereum does not return error codes in its JSON RPC, so we have to rely
	// on string matching.
	if strings.Contains(err.Error(), "already known") {
		return types.NewDispatchTxSuccess(request)
	}

	xcontext.Logger(ctx).Errorf("Failed to dispatch tx: %v", err)
	return types.NewDispatchTxError(request, classifySendError(err))
}

func classifySendError(err error) types.DispatchError {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "execution reverted"):
		return types.ErrReverted
	case strings.Contains(msg, "nonce too low"), strings.Contains(msg, "replacement transaction underpriced"):
		return types.ErrNonceNotMatched
	case strings.Contains(msg, "insufficient funds"):
		return types.ErrNotEnoughBalance
	}

	return types.ErrSubmitTx
}
