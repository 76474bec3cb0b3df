package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"casino/internal/game"
)

// testRoundStore connects to a local redis on DB 15, skipping the test
// when none is running.
func testRoundStore(t *testing.T) *RoundStore {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        getEnv("REDIS_URL", "localhost:6379"),
		DB:          15,
		DialTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush test db: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return NewRoundStore(client)
}

func TestRoundStore_SaveRound(t *testing.T) {
	store := testRoundStore(t)
	ctx := context.Background()

	round := &game.Round{
		RoundID:        uuid.NewString(),
		Phase:          game.PhaseBetting,
		HashCommitment: "commitment",
		ClientSeed:     "client",
		Nonce:          1,
		CreatedAt:      time.Now(),
	}

	if err := store.SaveRound(ctx, round); err != nil {
		t.Fatalf("SaveRound() error = %v", err)
	}
}

func TestRoundStore_ArchiveAndRecent(t *testing.T) {
	store := testRoundStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id := uuid.NewString()
		ids = append(ids, id)
		archive := &game.RoundArchive{
			Round: game.Round{
				RoundID: id,
				Phase:   game.PhaseCooldown,
				Nonce:   i + 1,
			},
			Wagers: []*game.Wager{
				{WagerID: uuid.NewString(), RoundID: id, Kind: game.WagerOver, Amount: 5000, Settled: true, Payout: 9750},
			},
			EndedAt: time.Now(),
		}
		if err := store.ArchiveRound(ctx, archive); err != nil {
			t.Fatalf("ArchiveRound() error = %v", err)
		}
	}

	recent, err := store.RecentRounds(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRounds() error = %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("RecentRounds() = %d rounds, want 3", len(recent))
	}

	// Newest first.
	if recent[0].Round.RoundID != ids[2] {
		t.Errorf("newest round = %v, want %v", recent[0].Round.RoundID, ids[2])
	}
	if len(recent[0].Wagers) != 1 || recent[0].Wagers[0].Payout != 9750 {
		t.Errorf("archived wagers did not round-trip: %+v", recent[0].Wagers)
	}
}

func TestRoundStore_Deadline(t *testing.T) {
	store := testRoundStore(t)
	ctx := context.Background()

	// No deadline stored yet.
	_, ok, err := store.Deadline(ctx)
	if err != nil {
		t.Fatalf("Deadline() error = %v", err)
	}
	if ok {
		t.Error("Deadline() ok = true on empty db, want false")
	}

	want := time.Now().Add(51 * time.Second).Truncate(time.Millisecond)
	if err := store.SetDeadline(ctx, want); err != nil {
		t.Fatalf("SetDeadline() error = %v", err)
	}

	got, ok, err := store.Deadline(ctx)
	if err != nil {
		t.Fatalf("Deadline() error = %v", err)
	}
	if !ok {
		t.Fatal("Deadline() ok = false after SetDeadline")
	}
	if !got.Equal(want) {
		t.Errorf("Deadline() = %v, want %v", got, want)
	}
}
