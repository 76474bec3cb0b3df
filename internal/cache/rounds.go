package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"casino/internal/game"
)

const (
	keyRoundPrefix   = "sicbo:round:"
	keyRecentRounds  = "sicbo:rounds:recent"
	keyCycleDeadline = "sicbo:clock:deadline"

	roundTTL      = time.Hour
	recentMaxSize = 100
)

// RoundStore keeps round snapshots, a bounded archive of settled
// rounds, and the round clock's next-phase deadline. The deadline
// survives process restarts, which is what lets the clock resume a
// cycle instead of overlapping it.
type RoundStore struct {
	client *redis.Client
}

func NewRoundStore(client *redis.Client) *RoundStore {
	return &RoundStore{client: client}
}

// SaveRound stores the current snapshot of a round.
func (s *RoundStore) SaveRound(ctx context.Context, r *game.Round) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal round: %w", err)
	}
	return s.client.Set(ctx, keyRoundPrefix+r.RoundID, data, roundTTL).Err()
}

// ArchiveRound pushes a settled round onto the recent-history list,
// trimming it to a fixed size.
func (s *RoundStore) ArchiveRound(ctx context.Context, a *game.RoundArchive) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, keyRecentRounds, data)
	pipe.LTrim(ctx, keyRecentRounds, 0, recentMaxSize-1)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentRounds returns up to limit archived rounds, newest first.
func (s *RoundStore) RecentRounds(ctx context.Context, limit int) ([]*game.RoundArchive, error) {
	if limit <= 0 || limit > recentMaxSize {
		limit = recentMaxSize
	}
	raw, err := s.client.LRange(ctx, keyRecentRounds, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*game.RoundArchive, 0, len(raw))
	for _, item := range raw {
		var a game.RoundArchive
		if json.Unmarshal([]byte(item), &a) == nil {
			out = append(out, &a)
		}
	}
	return out, nil
}

// SetDeadline persists the end of the in-flight cycle.
func (s *RoundStore) SetDeadline(ctx context.Context, deadline time.Time) error {
	return s.client.Set(ctx, keyCycleDeadline, deadline.Format(time.RFC3339Nano), 0).Err()
}

// Deadline reads the persisted cycle deadline. ok is false when no
// deadline has been stored.
func (s *RoundStore) Deadline(ctx context.Context) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, keyCycleDeadline).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	deadline, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse deadline: %w", err)
	}
	return deadline, true, nil
}
