package stickers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aboudjelida/aimenboudev/internal/telemetry/metrics"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const stickersChannel = "stickers:new"

// Event is what subscribers receive over the push channel.
type Event struct {
	Type    string  `json:"type"`
	Sticker Sticker `json:"sticker"`
}

// Subscriber is one connected board viewer. Events is closed on
// Unsubscribe; a slow subscriber gets events dropped, never a stall
// on the insert path.
type Subscriber struct {
	Events chan Sticker
}

// Hub fans newly committed stickers out to connected subscribers.
// Inserts are published to a redis channel so that all instances
// (and the inserting one) converge through the same path; with no
// redis client the hub degrades to direct in-process fan-out.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}

	rdb     *redis.Client
	metrics *metrics.Manager
}

func NewHub(rdb *redis.Client, metricsManager *metrics.Manager) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		rdb:         rdb,
		metrics:     metricsManager,
	}
}

// Run consumes the redis channel and feeds connected subscribers.
// Returns when ctx is done. Safe to skip when no redis is configured.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		log.Warnln("stickers hub: no redis client, running in-process only")
		return
	}

	pubsub := h.rdb.Subscribe(ctx, stickersChannel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			log.Errorf("stickers hub: close pubsub: %s", err)
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var sticker Sticker
			if err := json.Unmarshal([]byte(msg.Payload), &sticker); err != nil {
				log.Errorf("stickers hub: unmarshal event: %s", err)
				continue
			}
			h.fanOut(sticker)
		}
	}
}

// Publish announces a committed sticker to all subscribers. Push is
// best-effort: a publish failure is logged and swallowed, viewers
// fall back to refreshing the list.
func (h *Hub) Publish(ctx context.Context, sticker Sticker) {
	if h.rdb == nil {
		h.fanOut(sticker)
		return
	}

	stickerJson, err := json.Marshal(sticker)
	if err != nil {
		log.Errorf("stickers hub: marshal sticker %s: %s", sticker.ID, err)
		return
	}

	if err := h.rdb.Publish(ctx, stickersChannel, stickerJson).Err(); err != nil {
		log.Errorf("stickers hub: publish sticker %s: %s", sticker.ID, err)
		// deliver at least to local subscribers
		h.fanOut(sticker)
	}
}

func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		Events: make(chan Sticker, 16),
	}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.GaugeStickerSubscribers.Inc()
	}
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	close(sub.Events)

	if h.metrics != nil {
		h.metrics.GaugeStickerSubscribers.Dec()
	}
}

func (h *Hub) SubscribersCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// fanOut sends non-blocking, holding the read lock so no subscriber
// channel can be closed mid-send.
func (h *Hub) fanOut(sticker Sticker) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		select {
		case sub.Events <- sticker:
			if h.metrics != nil {
				h.metrics.CounterStickerEventsSent.Inc()
			}
		default:
			log.Warnf("stickers hub: subscriber full, dropping event %s", sticker.ID)
		}
	}
}
