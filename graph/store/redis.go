package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of Store[S].
//
// Key layout:
//
//	<prefix>snap:<instance>:<seq>   => JSON snapshot
//	<prefix>seqs:<instance>         => ZSET of stored seqs, scored by seq
//	<prefix>cp:<checkpoint>         => JSON Record{seq, state}
type RedisStore[S any] struct {
	client *redis.Client
	prefix string
}

var _ Store[int] = (*RedisStore[int])(nil)

// NewRedisStore creates a RedisStore on client. prefix is optional and
// defaults to "flowchart:".
func NewRedisStore[S any](client *redis.Client, prefix string) *RedisStore[S] {
	if prefix == "" {
		prefix = "flowchart:"
	}
	return &RedisStore[S]{client: client, prefix: prefix}
}

func (s *RedisStore[S]) keySnapshot(instanceID string, seq int) string {
	return s.prefix + "snap:" + instanceID + ":" + strconv.Itoa(seq)
}

func (s *RedisStore[S]) keySeqs(instanceID string) string {
	return s.prefix + "seqs:" + instanceID
}

func (s *RedisStore[S]) keyCheckpoint(cpID string) string {
	return s.prefix + "cp:" + cpID
}

// SaveSnapshot implements Store. The snapshot and its index entry are
// written in one MULTI/EXEC.
func (s *RedisStore[S]) SaveSnapshot(ctx context.Context, instanceID string, seq int, state S) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keySnapshot(instanceID, seq), data, 0)
	pipe.ZAdd(ctx, s.keySeqs(instanceID), redis.Z{Score: float64(seq), Member: strconv.Itoa(seq)})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadLatest implements Store.
func (s *RedisStore[S]) LoadLatest(ctx context.Context, instanceID string) (S, int, error) {
	var zero S

	members, err := s.client.ZRevRange(ctx, s.keySeqs(instanceID), 0, 0).Result()
	if err != nil {
		return zero, 0, fmt.Errorf("failed to read snapshot index: %w", err)
	}
	if len(members) == 0 {
		return zero, 0, ErrNotFound
	}
	seq, err := strconv.Atoi(members[0])
	if err != nil {
		return zero, 0, fmt.Errorf("corrupt snapshot index entry %q: %w", members[0], err)
	}

	data, err := s.client.Get(ctx, s.keySnapshot(instanceID, seq)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, 0, ErrNotFound
	}
	if err != nil {
		return zero, 0, fmt.Errorf("failed to load snapshot: %w", err)
	}

	state, err := decodeState[S](data)
	if err != nil {
		return zero, 0, err
	}
	return state, seq, nil
}

// SaveCheckpoint implements Store.
func (s *RedisStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, seq int) error {
	data, err := json.Marshal(Record[S]{Seq: seq, State: state})
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, s.keyCheckpoint(cpID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint implements Store.
func (s *RedisStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (S, int, error) {
	var zero S

	data, err := s.client.Get(ctx, s.keyCheckpoint(cpID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, 0, ErrNotFound
	}
	if err != nil {
		return zero, 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	rec, err := decodeState[Record[S]](data)
	if err != nil {
		return zero, 0, err
	}
	return rec.State, rec.Seq, nil
}

// DeleteInstance implements Store.
func (s *RedisStore[S]) DeleteInstance(ctx context.Context, instanceID string) error {
	members, err := s.client.ZRange(ctx, s.keySeqs(instanceID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to read snapshot index: %w", err)
	}

	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, s.prefix+"snap:"+instanceID+":"+m)
	}
	keys = append(keys, s.keySeqs(instanceID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	return nil
}
