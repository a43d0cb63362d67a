// Package sse fans live channel events out to connected listeners. Events
// travel through Redis pubsub so every node sees messages posted on any
// node.
package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/loqui/chat-server-go/internal/redis"
)

const HeartbeatInterval = 30 * time.Second

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Listener struct {
	ChannelID string
	Events    chan Event
	Done      chan struct{}
}

type Broker struct {
	redis     *redisclient.Client
	listeners map[string]map[*Listener]bool // channelID -> set of listeners
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:     redisClient,
		listeners: make(map[string]map[*Listener]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (b *Broker) Subscribe(channelID string) *Listener {
	listener := &Listener{
		ChannelID: channelID,
		Events:    make(chan Event, 100),
		Done:      make(chan struct{}),
	}

	b.mu.Lock()
	if b.listeners[channelID] == nil {
		b.listeners[channelID] = make(map[*Listener]bool)
		go b.subscribeToRedis(channelID)
	}
	b.listeners[channelID][listener] = true
	count := len(b.listeners[channelID])
	b.mu.Unlock()

	log.Info().
		Str("channelId", channelID).
		Int("listenerCount", count).
		Msg("sse listener subscribed")

	return listener
}

func (b *Broker) Unsubscribe(listener *Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if listeners, ok := b.listeners[listener.ChannelID]; ok {
		delete(listeners, listener)
		close(listener.Done)

		if len(listeners) == 0 {
			delete(b.listeners, listener.ChannelID)
		}

		log.Info().
			Str("channelId", listener.ChannelID).
			Int("listenerCount", len(listeners)).
			Msg("sse listener unsubscribed")
	}
}

func (b *Broker) Publish(ctx context.Context, channelID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := redisclient.EventChannel(channelID)
	return b.redis.Publish(ctx, key, data).Err()
}

func (b *Broker) subscribeToRedis(channelID string) {
	key := redisclient.EventChannel(channelID)
	pubsub := b.redis.Subscribe(b.ctx, key)
	defer pubsub.Close()

	log.Debug().
		Str("channelId", channelID).
		Str("key", key).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(channelID, event)
		}
	}
}

func (b *Broker) broadcast(channelID string, event Event) {
	b.mu.RLock()
	listeners := b.listeners[channelID]
	b.mu.RUnlock()

	for listener := range listeners {
		select {
		case listener.Events <- event:
		default:
			log.Warn().
				Str("channelId", channelID).
				Msg("listener event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, listeners := range b.listeners {
		for listener := range listeners {
			close(listener.Done)
		}
	}
	b.listeners = make(map[string]map[*Listener]bool)
}

func (b *Broker) ListenerCount(channelID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[channelID])
}
