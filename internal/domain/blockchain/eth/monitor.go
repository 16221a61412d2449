package eth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rafflehub/backend/internal/domain/blockchain/types"
	"github.com/rafflehub/backend/pkg/xcontext"
	"github.com/rafflehub/backend/pkg/xredis"
)

const (
	trackedSetKey    = "monitor:tracked_txs"
	trackedKeyPrefix = "monitor:tx:"
)

// TxMonitor watches submitted transaction hashes until they are mined deep
// enough or time out. Tracked hashes live in redis so that a restart resumes
// monitoring where it left off.
type TxMonitor struct {
	client      EthClient
	redisClient xredis.Client
	txUpdateCh  chan<- *types.TrackUpdate
}

func NewTxMonitor(
	client EthClient,
	redisClient xredis.Client,
	txUpdateCh chan<- *types.TrackUpdate,
) *TxMonitor {
	return &TxMonitor{
		client:      client,
		redisClient: redisClient,
		txUpdateCh:  txUpdateCh,
	}
}

// Track registers a hash for monitoring. The deadline is fixed at track time
// from the configured monitor timeout.
func (m *TxMonitor) Track(ctx context.Context, localID, txHash string) {
	xcontext.Logger(ctx).Infof("Tracking tx: %v", txHash)

	deadline := time.Now().Add(xcontext.Configs(ctx).Chain.MonitorTimeoutOrDefault())
	if err := m.redisClient.Set(ctx, trackedKeyPrefix+txHash, trackOpts(localID, deadline)); err != nil {
		xcontext.Logger(ctx).Errorf("Unable to set tracked tx %s: %v", txHash, err)
		return
	}

	if err := m.redisClient.SAdd(ctx, trackedSetKey, txHash); err != nil {
		xcontext.Logger(ctx).Errorf("Unable to add tracked tx %s: %v", txHash, err)
	}
}

func (m *TxMonitor) untrack(ctx context.Context, txHash string) {
	if err := m.redisClient.SRem(ctx, trackedSetKey, txHash); err != nil {
		xcontext.Logger(ctx).Warnf("Cannot remove tracked tx %s: %v", txHash, err)
	}

	if err := m.redisClient.Del(ctx, trackedKeyPrefix+txHash); err != nil {
		xcontext.Logger(ctx).Warnf("Cannot delete tracked tx %s: %v", txHash, err)
	}
}

func (m *TxMonitor) Start(ctx context.Context) {
	xcontext.Logger(ctx).Infof("Starting tx monitor...")

	blockTime := xcontext.Configs(ctx).Chain.BlockTime
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(blockTime):
		}

		m.checkTracked(ctx)
	}
}

func (m *TxMonitor) checkTracked(ctx context.Context) {
	hashes, err := m.redisClient.SMembers(ctx, trackedSetKey)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot list tracked txs: %v", err)
		return
	}

	if len(hashes) == 0 {
		return
	}

	latest, err := m.client.BlockNumber(ctx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get latest block number: %v", err)
		return
	}

	depth := xcontext.Configs(ctx).Chain.ConfirmationDepth
	for _, hash := range hashes {
		m.checkOne(ctx, hash, latest, depth)
	}
}

func (m *TxMonitor) checkOne(ctx context.Context, txHash string, latest, depth uint64) {
	opts, err := m.redisClient.Get(ctx, trackedKeyPrefix+txHash)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get tracked tx %s: %v", txHash, err)
		m.untrack(ctx, txHash)
		return
	}

	localID, deadline, err := parseTrackOpts(opts)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Invalid tracked tx opts %q: %v", opts, err)
		m.untrack(ctx, txHash)
		return
	}

	receipt, err := m.client.TransactionReceipt(ctx, ethcommon.HexToHash(txHash))
	if err != nil || receipt == nil {
		// Not mined yet. The hash is dropped once the deadline passes.
		if time.Now().After(deadline) {
			m.txUpdateCh <- &types.TrackUpdate{
				LocalID: localID,
				Hash:    ethcommon.HexToHash(txHash),
				Result:  types.TrackResultTimeout,
			}
			m.untrack(ctx, txHash)
		}
		return
	}

	confirmations := latest - receipt.BlockNumber.Uint64() + 1
	if confirmations < depth {
		return
	}

	result := types.TrackResultConfirmed
	if receipt.Status == 0 {
		result = types.TrackResultFailure
	}

	m.txUpdateCh <- &types.TrackUpdate{
		LocalID:     localID,
		Hash:        ethcommon.HexToHash(txHash),
		BlockHeight: receipt.BlockNumber.Int64(),
		Result:      result,
	}
	m.untrack(ctx, txHash)
}

func trackOpts(localID string, deadline time.Time) string {
	return fmt.Sprintf("%s:%d", localID, deadline.Unix())
}

func parseTrackOpts(opts string) (string, time.Time, error) {
	parts := strings.Split(opts, ":")
	if len(parts) != 2 {
		return "", time.Time{}, fmt.Errorf("invalid parts of track opts")
	}

	unix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", time.Time{}, err
	}

	return parts[0], time.Unix(unix, 0), nil
}
