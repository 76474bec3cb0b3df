package game

import (
	"context"
	"log"
)

type GameType string

const (
	GameTypeSicBo     GameType = "sicbo"
	GameTypeBlackjack GameType = "blackjack"
)

// Engine is a game lifecycle owner the server starts and stops.
type Engine interface {
	GetType() GameType
	Start(ctx context.Context) error
	Stop() error
}

// Factory registers and runs every game engine.
type Factory struct {
	engines map[GameType]Engine
}

func NewFactory() *Factory {
	return &Factory{
		engines: make(map[GameType]Engine),
	}
}

func (f *Factory) RegisterEngine(engine Engine) {
	f.engines[engine.GetType()] = engine
}

func (f *Factory) GetEngine(gameType GameType) (Engine, bool) {
	engine, exists := f.engines[gameType]
	return engine, exists
}

func (f *Factory) StartAll(ctx context.Context) error {
	for gameType, engine := range f.engines {
		if err := engine.Start(ctx); err != nil {
			return err
		}
		log.Printf("[FACTORY] Started %s engine", gameType)
	}
	return nil
}

func (f *Factory) StopAll() error {
	for gameType, engine := range f.engines {
		if err := engine.Stop(); err != nil {
			return err
		}
		log.Printf("[FACTORY] Stopped %s engine", gameType)
	}
	return nil
}
