package entity

import "time"

// ChainEvent stores every contract event the processor has applied. The
// composite primary key is the idempotency key of the projection: re-applying
// an already-stored event is a no-op.
type ChainEvent struct {
	TxHash    string `gorm:"primaryKey"`
	EventType string `gorm:"primaryKey"`
	RaffleID  int64  `gorm:"primaryKey"`

	BlockNumber uint64
	LogIndex    uint
	Payload     Map

	CreatedAt time.Time
}

// EventCursor is the single-row high-water mark of the backfill path. It only
// ever moves forward.
type EventCursor struct {
	ID                 int `gorm:"primaryKey"`
	LastProcessedBlock uint64
	UpdatedAt          time.Time
}
