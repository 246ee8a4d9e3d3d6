package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-live/party-service/internal/domain"
)

// Redis key layout:
// {prefix}:{room_id}   HASH
//   - link:    target URL
//   - members: JSON array of {userId, name}
//   - player:  JSON player snapshot

const (
	fieldLink    = "link"
	fieldMembers = "members"
	fieldPlayer  = "player"

	maxTxRetries = 5
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	Prefix   string
}

// RedisStore implements RoomStore using one Redis hash per room.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	ownsClient bool
}

// NewRedisStore dials Redis and creates a store that owns the client.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := NewRedisStoreFromClient(client, cfg.Prefix)
	s.ownsClient = true
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client. Close leaves it open.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "party:room"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(roomID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, roomID)
}

// Client exposes the underlying client so the fanout bus can share it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) CreateRoom(ctx context.Context, roomID, link string) (bool, error) {
	player, err := json.Marshal(domain.NewPlayer())
	if err != nil {
		return false, err
	}

	// HSETNX per field inside MULTI: an existing room keeps every field, and
	// a half-created room never overwrites members added concurrently.
	key := s.key(roomID)
	var linkCmd *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		linkCmd = pipe.HSetNX(ctx, key, fieldLink, link)
		pipe.HSetNX(ctx, key, fieldMembers, "[]")
		pipe.HSetNX(ctx, key, fieldPlayer, player)
		return nil
	})
	if err != nil {
		return false, domain.Transient("create room", err)
	}

	return linkCmd.Val(), nil
}

func (s *RedisStore) Exists(ctx context.Context, roomID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(roomID)).Result()
	if err != nil {
		return false, domain.Transient("check room", err)
	}
	return n > 0, nil
}

func (s *RedisStore) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	fields, err := s.client.HGetAll(ctx, s.key(roomID)).Result()
	if err != nil {
		return nil, domain.Transient("get room", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrRoomNotFound
	}

	room := &domain.Room{
		ID:      roomID,
		Link:    fields[fieldLink],
		Members: []domain.Member{},
		Player:  domain.NewPlayer(),
	}

	if raw, ok := fields[fieldMembers]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &room.Members); err != nil {
			return nil, fmt.Errorf("failed to decode members of room %s: %w", roomID, err)
		}
	}
	if raw, ok := fields[fieldPlayer]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &room.Player); err != nil {
			return nil, fmt.Errorf("failed to decode player of room %s: %w", roomID, err)
		}
	}

	return room, nil
}

func (s *RedisStore) AddMember(ctx context.Context, roomID string, m domain.Member) (bool, error) {
	return s.updateMembers(ctx, roomID, func(members []domain.Member) ([]domain.Member, bool) {
		for _, existing := range members {
			if existing.UserID == m.UserID {
				return members, false
			}
		}
		return append(members, m), true
	})
}

func (s *RedisStore) RemoveMember(ctx context.Context, roomID, userID string) (bool, error) {
	return s.updateMembers(ctx, roomID, func(members []domain.Member) ([]domain.Member, bool) {
		kept := members[:0]
		removed := false
		for _, existing := range members {
			if existing.UserID == userID {
				removed = true
				continue
			}
			kept = append(kept, existing)
		}
		return kept, removed
	})
}

// updateMembers runs a read-modify-write of the members field under WATCH,
// retrying when another worker modified the room in between.
func (s *RedisStore) updateMembers(ctx context.Context, roomID string, mutate func([]domain.Member) ([]domain.Member, bool)) (bool, error) {
	key := s.key(roomID)
	var changed bool

	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrRoomNotFound
		}

		members := []domain.Member{}
		raw, err := tx.HGet(ctx, key, fieldMembers).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &members); err != nil {
				return fmt.Errorf("failed to decode members of room %s: %w", roomID, err)
			}
		}

		var updated []domain.Member
		updated, changed = mutate(members)
		if !changed {
			return nil
		}

		data, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldMembers, data)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return changed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, domain.ErrRoomNotFound) {
			return false, err
		}
		return false, domain.Transient("update members", err)
	}

	return false, domain.Transient("update members", fmt.Errorf("room %s: too much contention", roomID))
}

func (s *RedisStore) SetPlayer(ctx context.Context, roomID string, p domain.Player) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key(roomID), fieldPlayer, data).Err(); err != nil {
		return domain.Transient("set player", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Close()
}
