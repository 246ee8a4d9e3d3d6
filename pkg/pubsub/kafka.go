package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/weiawesome/wes-io-live/party-service/pkg/log"
)

// KafkaPubSub implements PubSub on a single Kafka topic. Every room channel
// maps to that topic with the room id as message key, which keeps per-room
// ordering within a partition. Each worker consumes with its own group id so
// every worker sees every event, then keeps only rooms it has subscribed to.
type KafkaPubSub struct {
	producer *kafka.Producer
	consumer *kafka.Consumer
	topic    string
	rooms    map[string]struct{}
	events   chan *Event
	mu       sync.RWMutex
	cancel   context.CancelFunc
	doneCh   chan struct{}
	pollDone chan struct{}
	closed   sync.Once
}

// NewKafkaPubSub creates a new Kafka-based PubSub instance.
func NewKafkaPubSub(cfg KafkaConfig, instanceID string, bufferSize int) (*KafkaPubSub, error) {
	if cfg.Topic == "" {
		cfg.Topic = "party-room-events"
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	if err := ensureTopic(cfg); err != nil {
		l := log.L()
		l.Warn().Err(err).Str("topic", cfg.Topic).Msg("failed to ensure kafka topic (may already exist)")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "party-service"
	}
	if instanceID != "" {
		groupID = fmt.Sprintf("%s-%s", groupID, sanitizeGroupID(instanceID))
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       cfg.Brokers,
		"group.id":                groupID,
		"auto.offset.reset":       "latest",
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	if err := c.Subscribe(cfg.Topic, nil); err != nil {
		c.Close()
		p.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", cfg.Topic, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	k := &KafkaPubSub{
		producer: p,
		consumer: c,
		topic:    cfg.Topic,
		rooms:    make(map[string]struct{}),
		events:   make(chan *Event, bufferSize),
		cancel:   cancel,
		doneCh:   make(chan struct{}),
		pollDone: make(chan struct{}),
	}

	go k.deliveryReportHandler()
	go k.consumeMessages(ctx)

	return k, nil
}

func ensureTopic(cfg KafkaConfig) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := cfg.Partitions
	if partitions <= 0 {
		partitions = 4
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             cfg.Topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}})
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}

	for _, r := range results {
		if r.Error.Code() != kafka.ErrNoError && r.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", r.Topic, r.Error)
		}
	}
	return nil
}

// deliveryReportHandler processes delivery reports from the producer.
func (k *KafkaPubSub) deliveryReportHandler() {
	l := log.L()
	for e := range k.producer.Events() {
		if ev, ok := e.(*kafka.Message); ok && ev.TopicPartition.Error != nil {
			l.Error().Err(ev.TopicPartition.Error).Str("key", string(ev.Key)).Msg("kafka pubsub delivery failed")
		}
	}
	close(k.doneCh)
}

// Publish produces the event keyed by its room id.
func (k *KafkaPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	roomID, ok := RoomFromChannel(channel)
	if !ok {
		return fmt.Errorf("invalid channel format: %s", channel)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &k.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(roomID),
		Value: data,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	return nil
}

// Subscribe starts forwarding events for the given room channels.
func (k *KafkaPubSub) Subscribe(ctx context.Context, channels ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, ch := range channels {
		roomID, ok := RoomFromChannel(ch)
		if !ok {
			return fmt.Errorf("invalid channel format: %s", ch)
		}
		k.rooms[roomID] = struct{}{}
	}
	return nil
}

// Unsubscribe stops forwarding events for the given room channels.
func (k *KafkaPubSub) Unsubscribe(ctx context.Context, channels ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, ch := range channels {
		if roomID, ok := RoomFromChannel(ch); ok {
			delete(k.rooms, roomID)
		}
	}
	return nil
}

// Events returns the stream of events for subscribed rooms.
func (k *KafkaPubSub) Events() <-chan *Event {
	return k.events
}

func (k *KafkaPubSub) wants(roomID string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.rooms[roomID]
	return ok
}

// consumeMessages polls Kafka and forwards events for subscribed rooms.
func (k *KafkaPubSub) consumeMessages(ctx context.Context) {
	defer close(k.pollDone)
	defer close(k.events)

	l := log.L()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := k.consumer.Poll(500)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if !k.wants(string(e.Key)) {
				continue
			}

			var event Event
			if err := json.Unmarshal(e.Value, &event); err != nil {
				l.Warn().Err(err).Msg("kafka pubsub: failed to unmarshal event")
				continue
			}
			if event.RoomID == "" {
				event.RoomID = string(e.Key)
			}

			select {
			case k.events <- &event:
			case <-ctx.Done():
				return
			default:
				l.Warn().Str(log.FieldRoomID, event.RoomID).Msg("event buffer full, dropping kafka message")
			}

		case kafka.Error:
			l.Error().Err(e).Int("code", int(e.Code())).Bool("fatal", e.IsFatal()).Msg("kafka pubsub error")
			if e.IsFatal() {
				return
			}
		}
	}
}

// Close stops the consumer and flushes the producer.
func (k *KafkaPubSub) Close() error {
	var err error
	k.closed.Do(func() {
		k.cancel()
		<-k.pollDone
		err = k.consumer.Close()

		k.producer.Flush(5000)
		k.producer.Close()
		<-k.doneCh
	})
	return err
}

var groupIDRegexp = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeGroupID replaces characters not suitable for Kafka group IDs.
func sanitizeGroupID(s string) string {
	return groupIDRegexp.ReplaceAllString(s, "-")
}
