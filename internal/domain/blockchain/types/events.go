package types

import "math/big"

// ContractEvent is the normalized form of a contract log. Every variant
// carries EventBase, which also holds the idempotency key of the projection
// (tx hash + event type + contract raffle id).
type ContractEvent interface {
	Base() EventBase
}

type EventBase struct {
	Type        string
	TxHash      string
	BlockNumber uint64
	LogIndex    uint

	// ChainRaffleID is the raffle id assigned by the contract, not the local
	// uuid.
	ChainRaffleID int64
}

func (b EventBase) Base() EventBase { return b }

type RaffleCreatedEvent struct {
	EventBase

	Creator      string
	TotalBoxes   int
	BoxPrice     *big.Int
	TotalWinners int
}

type ParticipationPurchasedEvent struct {
	EventBase

	Participant     string
	ParticipationID int64
	BoxesPurchased  []int
	TotalCost       *big.Int
}

type RaffleFullEvent struct {
	EventBase
}

type RandomnessRequestedEvent struct {
	EventBase

	RequestID *big.Int
}

type RandomnessFulfilledEvent struct {
	EventBase

	RandomSeed *big.Int
}

type RaffleCompletedEvent struct {
	EventBase

	Winners    []string
	RandomSeed *big.Int
}

type RaffleCancelledEvent struct {
	EventBase

	Reason string
}

type RefundIssuedEvent struct {
	EventBase

	Participant string
	Amount      *big.Int
}
