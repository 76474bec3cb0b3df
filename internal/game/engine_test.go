package game

import (
	"context"
	"testing"

	"github.com/coder/quartz"
)

func TestFactory_RegisterEngine(t *testing.T) {
	hub := NewHub()
	lgr := newFakeLedger()
	clk := quartz.NewReal()
	factory := NewFactory()

	t.Run("register round clock", func(t *testing.T) {
		rc := NewRoundClock(DefaultClockConfig(), hub, lgr, newFakeRoundStore(), clk)
		factory.RegisterEngine(rc)

		engine, exists := factory.GetEngine(GameTypeSicBo)
		if !exists {
			t.Error("sic bo engine should be registered")
		}
		if engine.GetType() != GameTypeSicBo {
			t.Error("retrieved engine should be sic bo type")
		}
	})

	t.Run("register table engine", func(t *testing.T) {
		te := NewTableEngine(DefaultTableConfig(), hub, lgr, clk)
		factory.RegisterEngine(te)

		engine, exists := factory.GetEngine(GameTypeBlackjack)
		if !exists {
			t.Error("blackjack engine should be registered")
		}
		if engine.GetType() != GameTypeBlackjack {
			t.Error("retrieved engine should be blackjack type")
		}
	})

	t.Run("get non-existent engine", func(t *testing.T) {
		_, exists := factory.GetEngine(GameType("roulette"))
		if exists {
			t.Error("roulette engine should not exist")
		}
	})
}

func TestFactory_StartStopAll(t *testing.T) {
	hub := NewHub()
	lgr := newFakeLedger()
	clk := quartz.NewReal()

	factory := NewFactory()
	factory.RegisterEngine(NewRoundClock(DefaultClockConfig(), hub, lgr, newFakeRoundStore(), clk))
	factory.RegisterEngine(NewTableEngine(DefaultTableConfig(), hub, lgr, clk))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := factory.StartAll(ctx); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}
	if err := factory.StopAll(); err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
}

func TestGameType_Constants(t *testing.T) {
	types := []GameType{GameTypeSicBo, GameTypeBlackjack}

	uniqueMap := make(map[GameType]bool)
	for _, gameType := range types {
		if string(gameType) == "" {
			t.Error("game type should not be empty")
		}
		if uniqueMap[gameType] {
			t.Errorf("duplicate game type: %v", gameType)
		}
		uniqueMap[gameType] = true
	}
}
