package pubsub

import (
	"context"
	"time"
)

// Pack is the unit published to a topic. Key is used for partitioning.
type Pack struct {
	Key []byte
	Msg []byte
}

type Publisher interface {
	Publish(ctx context.Context, topic string, pack *Pack) error
	Stop(ctx context.Context) error
}

type SubscribeHandler func(context.Context, string, *Pack, time.Time)

type Subscriber interface {
	Subscribe(ctx context.Context)
	Stop(ctx context.Context) error
}
