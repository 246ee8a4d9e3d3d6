package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-live/party-service/pkg/log"
)

// RedisPubSub implements PubSub on Redis PUBLISH/SUBSCRIBE. All channel
// subscriptions share one pub/sub connection; go-redis resubscribes them
// automatically after a reconnect.
type RedisPubSub struct {
	client     *redis.Client
	ownsClient bool
	ps         *redis.PubSub
	events     chan *Event
	channels   map[string]struct{}
	mu         sync.Mutex
	startOnce  sync.Once
	started    bool
	closeOnce  sync.Once
	readerDone chan struct{}
}

// NewRedisPubSub dials Redis and creates a PubSub that owns the client.
func NewRedisPubSub(cfg RedisConfig, bufferSize int) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	r := NewRedisPubSubFromClient(client, bufferSize)
	r.ownsClient = true
	return r, nil
}

// NewRedisPubSubFromClient wraps an existing client. Close leaves the client open.
func NewRedisPubSubFromClient(client *redis.Client, bufferSize int) *RedisPubSub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &RedisPubSub{
		client:     client,
		ps:         client.Subscribe(context.Background()),
		events:     make(chan *Event, bufferSize),
		channels:   make(map[string]struct{}),
		readerDone: make(chan struct{}),
	}
}

// Publish publishes an event to the specified channel.
func (r *RedisPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe adds channels to the shared subscription. Channels already
// subscribed are skipped.
func (r *RedisPubSub) Subscribe(ctx context.Context, channels ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fresh := make([]string, 0, len(channels))
	for _, ch := range channels {
		if _, ok := r.channels[ch]; !ok {
			fresh = append(fresh, ch)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := r.ps.Subscribe(ctx, fresh...); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	for _, ch := range fresh {
		r.channels[ch] = struct{}{}
	}

	// The reader starts with the first subscription so the pub/sub
	// connection is already in subscriber mode when it begins receiving.
	r.startOnce.Do(func() {
		r.started = true
		go r.processMessages(r.ps.Channel())
	})

	return nil
}

// Unsubscribe removes channels from the shared subscription.
func (r *RedisPubSub) Unsubscribe(ctx context.Context, channels ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stale := make([]string, 0, len(channels))
	for _, ch := range channels {
		if _, ok := r.channels[ch]; ok {
			stale = append(stale, ch)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	if err := r.ps.Unsubscribe(ctx, stale...); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	for _, ch := range stale {
		delete(r.channels, ch)
	}

	return nil
}

// Subscribed reports whether channel is currently subscribed.
func (r *RedisPubSub) Subscribed(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.channels[channel]
	return ok
}

// Events returns the merged stream of events from every subscribed channel.
// It is closed after Close.
func (r *RedisPubSub) Events() <-chan *Event {
	return r.events
}

// Close closes the subscription and, if owned, the Redis client.
func (r *RedisPubSub) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		started := r.started
		// Prevent a late Subscribe from starting the reader after close.
		r.startOnce.Do(func() {})
		r.channels = make(map[string]struct{})
		r.mu.Unlock()

		err = r.ps.Close()
		if started {
			<-r.readerDone
		} else {
			close(r.events)
		}

		if r.ownsClient {
			if cerr := r.client.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}

// processMessages decodes bus messages and forwards them to the event channel.
func (r *RedisPubSub) processMessages(ch <-chan *redis.Message) {
	defer close(r.readerDone)
	defer close(r.events)

	l := log.L()
	for msg := range ch {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			l.Warn().Err(err).Str(log.FieldChannel, msg.Channel).Msg("dropping undecodable bus message")
			continue
		}
		if event.RoomID == "" {
			event.RoomID, _ = RoomFromChannel(msg.Channel)
		}

		select {
		case r.events <- &event:
		default:
			l.Warn().Str(log.FieldChannel, msg.Channel).Str(log.FieldEventType, event.Type).Msg("event buffer full, dropping bus message")
		}
	}
}
