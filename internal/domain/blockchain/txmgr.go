package blockchain

import (
	"context"
	"crypto/ecdsa"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	ethereum "github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/rafflehub/backend/internal/domain/blockchain/eth"
	"github.com/rafflehub/backend/internal/domain/blockchain/types"
	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/internal/repository"
	"github.com/rafflehub/backend/pkg/ethutil"
	"github.com/rafflehub/backend/pkg/xcontext"
)

const defaultGasLimit = 500_000

// SubmitRequest is a pre-built contract call handed to the transaction
// manager. A zero gas limit is estimated against the node at submission time.
// Meta is stored on the local record and handed back to observers on terminal
// states.
type SubmitRequest struct {
	To       ethcommon.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	Meta     entity.Map
}

// TxObserver is notified when a submitted transaction reaches a terminal
// state. The raffle coordinator uses this for revert compensation.
type TxObserver interface {
	OnTransactionTerminal(ctx context.Context, tx *entity.ChainTransaction, state entity.ChainTransactionStateType)
}

// TxManager owns nonce assignment, submission with retry, and terminal-state
// bookkeeping of chain transactions. The local id it returns is stable across
// retries and speed-ups.
type TxManager struct {
	chainTxRepo repository.ChainTransactionRepository

	client     eth.EthClient
	dispatcher eth.Dispatcher
	monitor    *eth.TxMonitor
	nonces     *eth.NonceManager

	privateKey *ecdsa.PrivateKey
	from       ethcommon.Address
	chainID    *big.Int
	useEip1559 bool
	chainName  string

	txUpdateCh <-chan *types.TrackUpdate

	mutex     sync.RWMutex
	observers []TxObserver
}

func NewTxManager(
	ctx context.Context,
	chainTxRepo repository.ChainTransactionRepository,
	client eth.EthClient,
	dispatcher eth.Dispatcher,
	monitor *eth.TxMonitor,
	nonces *eth.NonceManager,
	privateKey *ecdsa.PrivateKey,
	txUpdateCh <-chan *types.TrackUpdate,
) *TxManager {
	cfg := xcontext.Configs(ctx).Chain
	return &TxManager{
		chainTxRepo: chainTxRepo,
		client:      client,
		dispatcher:  dispatcher,
		monitor:     monitor,
		nonces:      nonces,
		privateKey:  privateKey,
		from:        ethutil.PrivateKeyAddress(privateKey),
		chainID:     big.NewInt(cfg.ChainID),
		useEip1559:  cfg.UseEip1559,
		chainName:   cfg.Name,
		txUpdateCh:  txUpdateCh,
	}
}

func (m *TxManager) Register(observer TxObserver) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.observers = append(m.observers, observer)
}

// Submit creates a local transaction record, signs the request with the next
// nonce, and dispatches it. The returned local id is valid even when the
// submission fails; the record then carries the failed state.
func (m *TxManager) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	raw := entity.Map{
		"to":        req.To.Hex(),
		"data":      hex.EncodeToString(req.Data),
		"value":     value.String(),
		"gas_limit": strconv.FormatUint(req.GasLimit, 10),
	}
	if req.Meta != nil {
		raw["meta"] = map[string]any(req.Meta)
	}

	record := &entity.ChainTransaction{
		Base:  entity.Base{ID: uuid.NewString()},
		State: entity.ChainTransactionStatePending,
		Raw:   raw,
	}
	if err := m.chainTxRepo.Create(ctx, record); err != nil {
		return "", err
	}

	if err := m.submit(ctx, record, req, nil, nil); err != nil {
		return record.ID, err
	}

	return record.ID, nil
}

// Cancel drops a transaction that was never sent. Anything already on the
// wire can only be replaced, not cancelled.
func (m *TxManager) Cancel(ctx context.Context, localID string) error {
	return m.chainTxRepo.UpdateState(ctx, localID,
		[]entity.ChainTransactionStateType{entity.ChainTransactionStatePending},
		entity.ChainTransactionStateDropped)
}

// SpeedUp resubmits the call of a submitted transaction with the same nonce
// and a higher gas price. The original record transitions to replaced when
// the replacement is mined.
func (m *TxManager) SpeedUp(ctx context.Context, localID string, gasPrice *big.Int) (string, error) {
	original, err := m.chainTxRepo.GetByID(ctx, localID)
	if err != nil {
		return "", err
	}

	if original.State != entity.ChainTransactionStateSubmitted {
		return "", fmt.Errorf("cannot speed up transaction in state %s", original.State)
	}

	if !original.Nonce.Valid {
		return "", fmt.Errorf("submitted transaction %s has no nonce", localID)
	}

	req, err := requestFromRaw(original.Raw)
	if err != nil {
		return "", err
	}

	nonce := uint64(original.Nonce.Int64)
	replacement := &entity.ChainTransaction{
		Base:       entity.Base{ID: uuid.NewString()},
		State:      entity.ChainTransactionStatePending,
		Raw:        original.Raw,
		ReplacesID: sql.NullString{Valid: true, String: original.ID},
	}
	if err := m.chainTxRepo.Create(ctx, replacement); err != nil {
		return "", err
	}

	if err := m.submit(ctx, replacement, req, &nonce, gasPrice); err != nil {
		return replacement.ID, err
	}

	return replacement.ID, nil
}

// Status reads the local record and, when a hash exists, cross-checks the
// chain for the current confirmation count.
func (m *TxManager) Status(ctx context.Context, localID string) (*entity.ChainTransaction, uint64, error) {
	record, err := m.chainTxRepo.GetByID(ctx, localID)
	if err != nil {
		return nil, 0, err
	}

	if !record.Hash.Valid {
		return record, 0, nil
	}

	receipt, err := m.client.TransactionReceipt(ctx, ethcommon.HexToHash(record.Hash.String))
	if err != nil || receipt == nil {
		return record, 0, nil
	}

	latest, err := m.client.BlockNumber(ctx)
	if err != nil {
		return record, 0, nil
	}

	return record, latest - receipt.BlockNumber.Uint64() + 1, nil
}

// Recover re-registers nonces of transactions that were on the wire when the
// process stopped, so the nonce manager does not hand them out again.
func (m *TxManager) Recover(ctx context.Context) error {
	submitted, err := m.chainTxRepo.GetByStates(ctx, entity.ChainTransactionStateSubmitted)
	if err != nil {
		return err
	}

	for i := range submitted {
		if submitted[i].Nonce.Valid {
			m.nonces.Hold(uint64(submitted[i].Nonce.Int64))
		}
	}

	return nil
}

func (m *TxManager) submit(
	ctx context.Context,
	record *entity.ChainTransaction,
	req SubmitRequest,
	fixedNonce *uint64,
	fixedGasPrice *big.Int,
) error {
	var nonce uint64
	var err error
	if fixedNonce != nil {
		nonce = *fixedNonce
	} else {
		nonce, err = m.nonces.Next(ctx)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot assign nonce: %v", err)
			return err
		}
	}

	tx, err := m.buildSignedTx(ctx, nonce, req, fixedGasPrice)
	if err != nil {
		m.markFailed(ctx, record, nonce, fixedNonce == nil)
		return err
	}

	record.TouchAttempt(time.Now())
	err = m.chainTxRepo.SetSubmitted(ctx, record.ID, tx.Hash().Hex(), nonce,
		record.Attempts, record.LastAttemptAt.Time)
	if err != nil {
		return err
	}

	if err := m.dispatchWithRetry(ctx, record, tx); err != nil {
		m.markFailed(ctx, record, nonce, fixedNonce == nil)
		return err
	}

	m.monitor.Track(ctx, record.ID, tx.Hash().Hex())
	return nil
}

func (m *TxManager) dispatchWithRetry(
	ctx context.Context, record *entity.ChainTransaction, tx *ethtypes.Transaction,
) error {
	retries := xcontext.Configs(ctx).Chain.SubmitRetryCount
	if retries <= 0 {
		retries = 3
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)

	return backoff.Retry(func() error {
		result := m.dispatcher.Dispatch(ctx, &types.DispatchedTxRequest{Chain: m.chainName, Tx: tx})
		if result.Success {
			return nil
		}

		if !result.Err.Retryable() {
			return backoff.Permanent(fmt.Errorf("dispatch rejected with code %d", result.Err))
		}

		record.TouchAttempt(time.Now())
		if err := m.chainTxRepo.SetAttempts(ctx, record.ID, record.Attempts, record.LastAttemptAt.Time); err != nil {
			xcontext.Logger(ctx).Warnf("Cannot update attempts of tx %s: %v", record.ID, err)
		}

		return fmt.Errorf("dispatch failed with code %d", result.Err)
	}, bo)
}

func (m *TxManager) buildSignedTx(
	ctx context.Context, nonce uint64, req SubmitRequest, fixedGasPrice *big.Int,
) (*ethtypes.Transaction, error) {
	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		estimated, err := m.client.EstimateGas(ctx, ethereum.CallMsg{
			From:  m.from,
			To:    &req.To,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			xcontext.Logger(ctx).Warnf("Cannot estimate gas, using the default limit: %v", err)
			estimated = defaultGasLimit
		}
		gasLimit = estimated
	}

	gasPrice := fixedGasPrice
	if gasPrice == nil {
		var err error
		gasPrice, err = m.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, err
		}
	}

	var tx *ethtypes.Transaction
	if m.useEip1559 {
		tip, err := m.client.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, err
		}

		tx = ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:   m.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: gasPrice,
			Gas:       gasLimit,
			To:        &req.To,
			Value:     value,
			Data:      req.Data,
		})
	} else {
		tx = ethtypes.NewTx(&ethtypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       &req.To,
			Value:    value,
			Data:     req.Data,
		})
	}

	return ethtypes.SignTx(tx, ethutil.SignerForChain(m.chainID, m.useEip1559), m.privateKey)
}

func (m *TxManager) markFailed(
	ctx context.Context, record *entity.ChainTransaction, nonce uint64, releaseNonce bool,
) {
	err := m.chainTxRepo.UpdateState(ctx, record.ID,
		[]entity.ChainTransactionStateType{
			entity.ChainTransactionStatePending,
			entity.ChainTransactionStateSubmitted,
		},
		entity.ChainTransactionStateFailed)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot mark tx %s as failed: %v", record.ID, err)
	}

	if releaseNonce {
		m.nonces.Release(nonce)
	}

	m.notify(ctx, record, entity.ChainTransactionStateFailed)
}

// HandleTrackUpdates consumes terminal observations from the monitor and
// applies them to the local records. It blocks until the context is done.
func (m *TxManager) HandleTrackUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-m.txUpdateCh:
			m.applyTrackUpdate(ctx, update)
		}
	}
}

func (m *TxManager) applyTrackUpdate(ctx context.Context, update *types.TrackUpdate) {
	record, err := m.chainTxRepo.GetByID(ctx, update.LocalID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Unable to retrieve tracked tx %s: %v", update.LocalID, err)
		return
	}

	var state entity.ChainTransactionStateType
	switch update.Result {
	case types.TrackResultConfirmed:
		state = entity.ChainTransactionStateConfirmed
	case types.TrackResultFailure:
		state = entity.ChainTransactionStateFailed
	case types.TrackResultTimeout:
		state = entity.ChainTransactionStateDropped
	default:
		xcontext.Logger(ctx).Errorf("Unknown track result %d for tx %s", update.Result, update.LocalID)
		return
	}

	err = m.chainTxRepo.UpdateState(ctx, record.ID,
		[]entity.ChainTransactionStateType{entity.ChainTransactionStateSubmitted}, state)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Tracked tx %s already left submitted state: %v", record.ID, err)
		return
	}

	// A mined replacement retires the record it replaced. The nonce is shared
	// between the two, so only the replacement releases it.
	if record.ReplacesID.Valid && update.Result == types.TrackResultConfirmed {
		err := m.chainTxRepo.UpdateState(ctx, record.ReplacesID.String,
			[]entity.ChainTransactionStateType{entity.ChainTransactionStateSubmitted},
			entity.ChainTransactionStateReplaced)
		if err != nil {
			xcontext.Logger(ctx).Warnf("Cannot retire replaced tx %s: %v", record.ReplacesID.String, err)
		}
	}

	if record.Nonce.Valid && !m.nonceSharedInFlight(ctx, record) {
		m.nonces.Release(uint64(record.Nonce.Int64))
	}

	m.notify(ctx, record, state)
}

// nonceSharedInFlight reports whether another transaction riding the same
// nonce is still on the wire. Releasing while a sibling is submitted would let
// Next hand the nonce out a second time.
func (m *TxManager) nonceSharedInFlight(ctx context.Context, record *entity.ChainTransaction) bool {
	if record.ReplacesID.Valid {
		original, err := m.chainTxRepo.GetByID(ctx, record.ReplacesID.String)
		if err == nil && original.State == entity.ChainTransactionStateSubmitted {
			return true
		}
	}

	replacement, err := m.chainTxRepo.GetReplacementOf(ctx, record.ID)
	if err == nil && replacement.State == entity.ChainTransactionStateSubmitted {
		return true
	}

	return false
}

func (m *TxManager) notify(
	ctx context.Context, record *entity.ChainTransaction, state entity.ChainTransactionStateType,
) {
	m.mutex.RLock()
	observers := make([]TxObserver, len(m.observers))
	copy(observers, m.observers)
	m.mutex.RUnlock()

	for _, observer := range observers {
		observer.OnTransactionTerminal(ctx, record, state)
	}
}

func requestFromRaw(raw entity.Map) (SubmitRequest, error) {
	to, _ := raw["to"].(string)
	dataHex, _ := raw["data"].(string)
	valueStr, _ := raw["value"].(string)
	gasStr, _ := raw["gas_limit"].(string)

	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return SubmitRequest{}, fmt.Errorf("invalid raw calldata: %w", err)
	}

	value, ok := new(big.Int).SetString(valueStr, 10)
	if !ok {
		return SubmitRequest{}, fmt.Errorf("invalid raw value %q", valueStr)
	}

	gasLimit, err := strconv.ParseUint(gasStr, 10, 64)
	if err != nil {
		return SubmitRequest{}, fmt.Errorf("invalid raw gas limit %q", gasStr)
	}

	return SubmitRequest{
		To:       ethcommon.HexToAddress(to),
		Data:     data,
		Value:    value,
		GasLimit: gasLimit,
	}, nil
}
