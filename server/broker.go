package server

import (
	"context"
	"sync"

	"vacuum/server/fastview"

	"github.com/google/uuid"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
)

// Broker fans the page's ele-updates out to every connected websocket client.
// A subscriber that falls behind never blocks the others: its pending batch is
// merged with the next one, keeping the latest ops per element.
type Broker struct {
	source <-chan []fastview.EleUpdate
	log    zerolog.Logger

	mu     sync.Mutex
	subs   map[string]chan []fastview.EleUpdate
	closed bool
}

func NewBroker(source <-chan []fastview.EleUpdate, logger zerolog.Logger) *Broker {
	return &Broker{
		source: source,
		log:    logger,
		subs:   map[string]chan []fastview.EleUpdate{},
	}
}

// Subscribe registers a new subscriber and returns its id and updates. The updates
// chan is closed by Unsubscribe or when the broker stops.
func (b *Broker) Subscribe() (string, <-chan []fastview.EleUpdate) {
	id := uuid.New().String()
	updates := make(chan []fastview.EleUpdate, 1)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(updates)
		return id, updates
	}
	b.subs[id] = updates
	b.log.Debug().Str("subscriber", id).Int("subscribers", len(b.subs)).Msg("subscribed")
	return id, updates
}

// Unsubscribe removes the subscriber and closes its updates chan.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if updates, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(updates)
		b.log.Debug().Str("subscriber", id).Int("subscribers", len(b.subs)).Msg("unsubscribed")
	}
}

// Subscribers returns the number of current subscribers.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Run forwards updates until @ctx is cancelled or the source closes, then closes
// every subscriber.
func (b *Broker) Run(ctx context.Context) error {
	defer b.shutdown()

	for updates := range channerics.OrDone(ctx.Done(), b.source) {
		b.mu.Lock()
		for _, sub := range b.subs {
			offer(sub, updates)
		}
		b.mu.Unlock()
	}
	return nil
}

func (b *Broker) shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, updates := range b.subs {
		delete(b.subs, id)
		close(updates)
	}
}

// offer sends @updates to @sub, merging them into any batch it has not yet read.
// The broker is the only sender, so this never blocks.
func offer(sub chan []fastview.EleUpdate, updates []fastview.EleUpdate) {
	select {
	case sub <- updates:
		return
	default:
	}

	select {
	case pending := <-sub:
		updates = mergeUpdates(pending, updates)
	default:
	}
	sub <- updates
}

// mergeUpdates returns @older overwritten by @newer per element id, in first-seen order.
func mergeUpdates(older, newer []fastview.EleUpdate) []fastview.EleUpdate {
	index := make(map[string]int, len(older)+len(newer))
	merged := make([]fastview.EleUpdate, 0, len(older)+len(newer))
	for _, batch := range [][]fastview.EleUpdate{older, newer} {
		for _, update := range batch {
			if i, ok := index[update.EleId]; ok {
				merged[i] = update
				continue
			}
			index[update.EleId] = len(merged)
			merged = append(merged, update)
		}
	}
	return merged
}
