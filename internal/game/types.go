package game

import (
	"fmt"
	"time"
)

// RoundPhase is the lifecycle phase of a sic bo round.
type RoundPhase string

const (
	PhaseBetting    RoundPhase = "betting"
	PhaseRevealing  RoundPhase = "revealing"
	PhaseDisplaying RoundPhase = "displaying"
	PhaseCooldown   RoundPhase = "cooldown"
)

// WagerKind is the kind of sic bo wager. Decoded once at the boundary
// via ParseWagerKind; everything downstream works with the typed value.
type WagerKind string

const (
	WagerOver     WagerKind = "over"
	WagerUnder    WagerKind = "under"
	WagerExactSum WagerKind = "exact_sum"
	WagerPair     WagerKind = "pair"
)

// ParseWagerKind validates a wire-level wager kind string.
func ParseWagerKind(s string) (WagerKind, error) {
	switch WagerKind(s) {
	case WagerOver, WagerUnder, WagerExactSum, WagerPair:
		return WagerKind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWagerKind, s)
}

// NeedsTarget reports whether the kind requires a target value.
func (k WagerKind) NeedsTarget() bool {
	return k == WagerExactSum || k == WagerPair
}

// DiceOutcome is the result of one sic bo roll.
type DiceOutcome struct {
	Dice [3]int `json:"dice"`
	Sum  int    `json:"sum"`
}

// Round is one complete sic bo cycle. Outcome is nil until the
// Betting -> Revealing transition assigns it, exactly once.
type Round struct {
	RoundID         string       `json:"round_id"`
	Phase           RoundPhase   `json:"phase"`
	BettingClosesAt time.Time    `json:"betting_closes_at"`
	RevealAt        time.Time    `json:"reveal_at"`
	ClosesAt        time.Time    `json:"closes_at"`
	Outcome         *DiceOutcome `json:"outcome,omitempty"`
	ServerSeed      string       `json:"-"` // Never expose until reveal
	HashCommitment  string       `json:"hash_commitment"`
	ClientSeed      string       `json:"client_seed"`
	Nonce           int          `json:"nonce"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Wager is a single sic bo bet. Immutable after placement except for
// the one settlement write (Settled/Payout, or Flagged when a credit
// exhausted its retries and needs reconciliation).
type Wager struct {
	WagerID  string    `json:"wager_id"`
	RoundID  string    `json:"round_id"`
	BettorID string    `json:"bettor_id"`
	Kind     WagerKind `json:"kind"`
	Target   int       `json:"target,omitempty"`
	Amount   int64     `json:"amount"`
	Settled  bool      `json:"settled"`
	Payout   int64     `json:"payout"`
	Flagged  bool      `json:"flagged,omitempty"`
	PlacedAt time.Time `json:"placed_at"`
}

// WagerRequest funnels a bet into the round clock's loop.
type WagerRequest struct {
	BettorID     string             `json:"bettor_id"`
	Kind         string             `json:"kind"`
	Target       int                `json:"target,omitempty"`
	Amount       int64              `json:"amount"`
	ResponseChan chan WagerResponse `json:"-"`
}

// WagerResponse is the synchronous reply to a WagerRequest.
type WagerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	WagerID string `json:"wager_id,omitempty"`
	RoundID string `json:"round_id,omitempty"`
	Balance int64  `json:"balance,omitempty"`
}

// RoundArchive is the settled form of a round pushed to history.
type RoundArchive struct {
	Round   Round     `json:"round"`
	Wagers  []*Wager  `json:"wagers"`
	EndedAt time.Time `json:"ended_at"`
}
