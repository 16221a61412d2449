package types

import ethcommon "github.com/ethereum/go-ethereum/common"

type TrackResult int

const (
	TrackResultConfirmed TrackResult = iota
	TrackResultFailure
	TrackResultTimeout
)

// TrackUpdate is emitted by the transaction monitor once a tracked hash
// reaches a terminal observation.
type TrackUpdate struct {
	// LocalID is the chain transaction record the hash belongs to.
	LocalID string

	Hash        ethcommon.Hash
	BlockHeight int64
	Result      TrackResult
}
