// Package events fans run status messages out to websocket subscribers,
// through Redis pub/sub when available and in process otherwise.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"recapstudio-backend/internal/models"
)

// Bus publishes and subscribes to the per-run update channel. Subscribe
// returns a channel that is closed once ctx is done.
type Bus interface {
	Publish(ctx context.Context, runID uuid.UUID, msg models.WSMessage) error
	Subscribe(ctx context.Context, runID uuid.UUID) (<-chan []byte, error)
}

func Channel(runID uuid.UUID) string {
	return "recap_updates:" + runID.String()
}

type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, runID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	return b.client.Publish(ctx, Channel(runID), data).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, runID uuid.UUID) (<-chan []byte, error) {
	pubsub := b.client.Subscribe(ctx, Channel(runID))
	// Wait for the subscription to be confirmed so no early publish is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel(runID), err)
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// MemoryBus is the in-process Bus used without Redis. Slow subscribers drop
// messages rather than block the publisher.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan []byte]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[uuid.UUID]map[chan []byte]struct{})}
}

func (b *MemoryBus) Publish(_ context.Context, runID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[runID] {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, runID uuid.UUID) (<-chan []byte, error) {
	ch := make(chan []byte, 64)

	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = make(map[chan []byte]struct{})
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[runID], ch)
		if len(b.subs[runID]) == 0 {
			delete(b.subs, runID)
		}
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}
