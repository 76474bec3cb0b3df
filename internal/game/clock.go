package game

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"casino/internal/ledger"
)

const (
	wagerQueueSize    = 1000
	placeWagerTimeout = 5 * time.Second
	ledgerCallTimeout = 5 * time.Second
)

// ClockConfig is the round clock's tuning surface.
type ClockConfig struct {
	BettingSeconds  int
	RevealSeconds   int
	CooldownSeconds int
	MinWager        int64
	MaxWager        int64
	Paytable        Paytable
	SettleAttempts  int
}

// DefaultClockConfig mirrors the production cycle: 36s betting, 10s
// result display, 5s gap.
func DefaultClockConfig() ClockConfig {
	return ClockConfig{
		BettingSeconds:  36,
		RevealSeconds:   10,
		CooldownSeconds: 5,
		MinWager:        1000,
		MaxWager:        10_000_000,
		Paytable:        DefaultPaytable(),
		SettleAttempts:  3,
	}
}

func (c ClockConfig) cycle() time.Duration {
	return time.Duration(c.BettingSeconds+c.RevealSeconds+c.CooldownSeconds) * time.Second
}

// RoundStore persists round snapshots and the next-phase deadline so a
// restarted process can pick up where the in-flight cycle left off.
type RoundStore interface {
	SaveRound(ctx context.Context, r *Round) error
	ArchiveRound(ctx context.Context, a *RoundArchive) error
	SetDeadline(ctx context.Context, deadline time.Time) error
	Deadline(ctx context.Context) (time.Time, bool, error)
}

// RoundClock drives sic bo rounds through their time-boxed phases with
// no external stimulus. One goroutine owns all round mutation; wagers
// arrive over a channel and are answered on per-request channels, so
// every operation on the active round is serialized.
type RoundClock struct {
	cfg    ClockConfig
	hub    *Hub
	ledger ledger.Service
	store  RoundStore
	clock  quartz.Clock

	ctx          context.Context
	stateMutex   sync.RWMutex
	currentRound *Round
	wagers       map[string]*Wager
	wagerChannel chan WagerRequest
	stopChan     chan struct{}
	stopOnce     sync.Once
	nonce        int
}

func NewRoundClock(cfg ClockConfig, hub *Hub, lgr ledger.Service, store RoundStore, clk quartz.Clock) *RoundClock {
	return &RoundClock{
		cfg:          cfg,
		hub:          hub,
		ledger:       lgr,
		store:        store,
		clock:        clk,
		ctx:          context.Background(),
		wagers:       make(map[string]*Wager),
		wagerChannel: make(chan WagerRequest, wagerQueueSize),
		stopChan:     make(chan struct{}),
	}
}

// GetType implements Engine.
func (rc *RoundClock) GetType() GameType {
	return GameTypeSicBo
}

// Start implements Engine.
func (rc *RoundClock) Start(ctx context.Context) error {
	rc.ctx = ctx
	go rc.gameLoop()
	return nil
}

// Stop implements Engine.
func (rc *RoundClock) Stop() error {
	rc.stopOnce.Do(func() { close(rc.stopChan) })
	return nil
}

// GetCurrentRound returns a copy of the active round, nil before the
// first round opens.
func (rc *RoundClock) GetCurrentRound() *Round {
	rc.stateMutex.RLock()
	defer rc.stateMutex.RUnlock()
	if rc.currentRound == nil {
		return nil
	}
	roundCopy := *rc.currentRound
	return &roundCopy
}

// RoundWagers returns copies of the active round's wagers.
func (rc *RoundClock) RoundWagers() []*Wager {
	rc.stateMutex.RLock()
	defer rc.stateMutex.RUnlock()
	out := make([]*Wager, 0, len(rc.wagers))
	for _, w := range rc.wagers {
		wagerCopy := *w
		out = append(out, &wagerCopy)
	}
	return out
}

// PlaceWager submits a wager into the active round and waits for the
// loop's verdict.
func (rc *RoundClock) PlaceWager(req WagerRequest) WagerResponse {
	respChan := make(chan WagerResponse, 1)
	req.ResponseChan = respChan

	select {
	case rc.wagerChannel <- req:
		select {
		case resp := <-respChan:
			return resp
		case <-time.After(placeWagerTimeout):
			return WagerResponse{Success: false, Message: "wager timeout"}
		}
	default:
		return WagerResponse{Success: false, Message: "wager queue full"}
	}
}

func (rc *RoundClock) gameLoop() {
	rc.recoverFromDeadline()
	for {
		select {
		case <-rc.stopChan:
			log.Println("[CLOCK] Round loop stopped")
			return
		default:
			if !rc.runRound() {
				return
			}
		}
	}
}

// recoverFromDeadline honors a cycle deadline persisted by a previous
// process: if it is still in the future, the clock waits it out before
// opening a fresh round so two cycles can never overlap across a
// restart.
func (rc *RoundClock) recoverFromDeadline() {
	deadline, ok, err := rc.store.Deadline(rc.ctx)
	if err != nil {
		log.Printf("[CLOCK] Deadline lookup failed: %v", err)
		return
	}
	if !ok {
		return
	}
	remaining := deadline.Sub(rc.clock.Now())
	if remaining <= 0 {
		return
	}
	log.Printf("[CLOCK] Recovered deadline %s ahead, waiting out previous cycle", remaining)
	rc.waitPhase(remaining, false)
}

// runRound executes one full cycle. Returns false when stopped.
func (rc *RoundClock) runRound() bool {
	rc.nonce++

	serverSeed := GenerateSeed()
	clientSeed := GenerateSeed() // In production, aggregate from player inputs
	now := rc.clock.Now()

	round := &Round{
		RoundID:         uuid.NewString(),
		Phase:           PhaseBetting,
		BettingClosesAt: now.Add(time.Duration(rc.cfg.BettingSeconds) * time.Second),
		RevealAt:        now.Add(time.Duration(rc.cfg.BettingSeconds+rc.cfg.RevealSeconds) * time.Second),
		ClosesAt:        now.Add(rc.cfg.cycle()),
		ServerSeed:      serverSeed,
		HashCommitment:  HashCommitment(serverSeed),
		ClientSeed:      clientSeed,
		Nonce:           rc.nonce,
		CreatedAt:       now,
	}

	rc.stateMutex.Lock()
	rc.currentRound = round
	rc.wagers = make(map[string]*Wager)
	rc.stateMutex.Unlock()

	rc.persistRound()
	if err := rc.store.SetDeadline(rc.ctx, round.ClosesAt); err != nil {
		log.Printf("[CLOCK] Persist deadline failed: %v", err)
	}

	log.Printf("[CLOCK] Round %s open, commitment %s", round.RoundID, round.HashCommitment[:16]+"...")
	rc.hub.Broadcast(EventRoundPhaseChanged, RoundPhaseChanged{RoundID: round.RoundID, Phase: PhaseBetting})

	if !rc.waitPhase(time.Duration(rc.cfg.BettingSeconds)*time.Second, true) {
		return false
	}

	rc.reveal()

	if !rc.waitPhase(time.Duration(rc.cfg.RevealSeconds)*time.Second, false) {
		return false
	}

	rc.setPhase(PhaseCooldown)
	if !rc.waitPhase(time.Duration(rc.cfg.CooldownSeconds)*time.Second, false) {
		return false
	}

	rc.archive()
	return true
}

// waitPhase blocks for d while serving the wager channel. Outside the
// betting window requests are rejected instead of queueing into the
// next round. Returns false when the clock is stopped.
func (rc *RoundClock) waitPhase(d time.Duration, betting bool) bool {
	timer := rc.clock.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return true
		case req := <-rc.wagerChannel:
			if betting {
				rc.processWager(req)
			} else {
				rc.respond(req, WagerResponse{Success: false, Message: ErrBettingClosed.Error()})
			}
		case <-rc.stopChan:
			return false
		}
	}
}

func (rc *RoundClock) respond(req WagerRequest, resp WagerResponse) {
	if req.ResponseChan != nil {
		req.ResponseChan <- resp
	}
}

// processWager validates one wager, debits the ledger, and records the
// wager. The wager exists only if its debit committed.
func (rc *RoundClock) processWager(req WagerRequest) {
	resp := WagerResponse{Success: false}
	defer func() { rc.respond(req, resp) }()

	kind, err := ParseWagerKind(req.Kind)
	if err != nil {
		resp.Message = err.Error()
		return
	}
	if req.Amount <= 0 || req.Amount < rc.cfg.MinWager || req.Amount > rc.cfg.MaxWager {
		resp.Message = fmt.Sprintf("amount must be between %d and %d", rc.cfg.MinWager, rc.cfg.MaxWager)
		return
	}
	if kind.NeedsTarget() {
		if kind == WagerExactSum && (req.Target < 3 || req.Target > 18) {
			resp.Message = ErrMissingTarget.Error()
			return
		}
		if kind == WagerPair && (req.Target < 1 || req.Target > 6) {
			resp.Message = ErrMissingTarget.Error()
			return
		}
	}

	rc.stateMutex.RLock()
	round := rc.currentRound
	open := round != nil && round.Phase == PhaseBetting
	roundID := ""
	if round != nil {
		roundID = round.RoundID
	}
	rc.stateMutex.RUnlock()
	if !open {
		resp.Message = ErrBettingClosed.Error()
		return
	}

	wagerID := uuid.NewString()
	ctx, cancel := context.WithTimeout(rc.ctx, ledgerCallTimeout)
	defer cancel()
	balance, err := rc.ledger.Debit(ctx, req.BettorID, req.Amount, ledger.TxWager, wagerRef(roundID, wagerID))
	if err != nil {
		resp.Message = err.Error()
		resp.Balance = balance
		return
	}

	wager := &Wager{
		WagerID:  wagerID,
		RoundID:  roundID,
		BettorID: req.BettorID,
		Kind:     kind,
		Target:   req.Target,
		Amount:   req.Amount,
		PlacedAt: rc.clock.Now(),
	}

	rc.stateMutex.Lock()
	rc.wagers[wagerID] = wager
	rc.stateMutex.Unlock()

	resp.Success = true
	resp.Message = "wager placed"
	resp.WagerID = wagerID
	resp.RoundID = roundID
	resp.Balance = balance

	rc.hub.Broadcast(EventWagerPlaced, WagerPlaced{
		RoundID:  roundID,
		WagerID:  wagerID,
		BettorID: req.BettorID,
		Amount:   req.Amount,
	})
}

// reveal closes betting, rolls the dice, settles every wager, and
// moves the round into the display phase. The outcome is assigned
// exactly once, here.
func (rc *RoundClock) reveal() {
	rc.stateMutex.Lock()
	round := rc.currentRound
	round.Phase = PhaseRevealing
	outcome := RollDice(round.ServerSeed, round.ClientSeed, round.Nonce)
	round.Outcome = &outcome
	rc.stateMutex.Unlock()

	rc.persistRound()
	rc.hub.Broadcast(EventRoundPhaseChanged, RoundPhaseChanged{RoundID: round.RoundID, Phase: PhaseRevealing})
	rc.hub.Broadcast(EventRoundRevealed, RoundRevealed{
		RoundID:    round.RoundID,
		Outcome:    outcome,
		ServerSeed: round.ServerSeed,
	})

	log.Printf("[CLOCK] Round %s revealed %v (sum %d)", round.RoundID, outcome.Dice, outcome.Sum)

	rc.settle(round.RoundID, outcome)

	rc.stateMutex.Lock()
	round.Phase = PhaseDisplaying
	rc.stateMutex.Unlock()
	rc.persistRound()
	rc.hub.Broadcast(EventRoundPhaseChanged, RoundPhaseChanged{RoundID: round.RoundID, Phase: PhaseDisplaying})
}

// settle resolves every wager exactly once. Credits go to the ledger
// with idempotent refs and bounded retries; a wager whose credit keeps
// failing is flagged for reconciliation instead of blocking the rest
// of the round or being silently dropped.
func (rc *RoundClock) settle(roundID string, outcome DiceOutcome) {
	rc.stateMutex.RLock()
	pending := make([]*Wager, 0, len(rc.wagers))
	for _, w := range rc.wagers {
		if !w.Settled {
			pending = append(pending, w)
		}
	}
	rc.stateMutex.RUnlock()

	for _, w := range pending {
		mult := rc.cfg.Paytable.Classify(w.Kind, w.Target, outcome)
		payout := PayoutAmount(w.Amount, mult)

		if payout > 0 {
			if !rc.creditWithRetry(w.BettorID, payout, payoutRef(roundID, w.WagerID)) {
				rc.stateMutex.Lock()
				w.Flagged = true
				rc.stateMutex.Unlock()
				log.Printf("[SETTLE] Wager %s flagged for reconciliation (payout %d)", w.WagerID, payout)
				continue
			}
		}

		rc.stateMutex.Lock()
		w.Payout = payout
		w.Settled = true
		rc.stateMutex.Unlock()
	}

	rc.hub.Broadcast(EventRoundSettled, RoundSettled{RoundID: roundID, Wagers: rc.RoundWagers()})
}

func (rc *RoundClock) creditWithRetry(playerID string, amount int64, ref string) bool {
	for attempt := 1; attempt <= rc.cfg.SettleAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(rc.ctx, ledgerCallTimeout)
		_, err := rc.ledger.Credit(ctx, playerID, amount, ledger.TxPayout, ref)
		cancel()
		if err == nil {
			return true
		}
		log.Printf("[SETTLE] Credit attempt %d/%d failed for %s: %v", attempt, rc.cfg.SettleAttempts, playerID, err)
	}
	return false
}

func (rc *RoundClock) setPhase(phase RoundPhase) {
	rc.stateMutex.Lock()
	round := rc.currentRound
	round.Phase = phase
	rc.stateMutex.Unlock()
	rc.persistRound()
	rc.hub.Broadcast(EventRoundPhaseChanged, RoundPhaseChanged{RoundID: round.RoundID, Phase: phase})
}

func (rc *RoundClock) persistRound() {
	round := rc.GetCurrentRound()
	if round == nil {
		return
	}
	if err := rc.store.SaveRound(rc.ctx, round); err != nil {
		log.Printf("[CLOCK] Persist round failed: %v", err)
	}
}

func (rc *RoundClock) archive() {
	rc.stateMutex.RLock()
	round := *rc.currentRound
	wagers := make([]*Wager, 0, len(rc.wagers))
	for _, w := range rc.wagers {
		wagerCopy := *w
		wagers = append(wagers, &wagerCopy)
	}
	rc.stateMutex.RUnlock()

	if err := rc.store.ArchiveRound(rc.ctx, &RoundArchive{
		Round:   round,
		Wagers:  wagers,
		EndedAt: rc.clock.Now(),
	}); err != nil {
		log.Printf("[CLOCK] Archive round failed: %v", err)
	}
}

func wagerRef(roundID, wagerID string) string {
	return fmt.Sprintf("sicbo:%s:%s:wager", roundID, wagerID)
}

func payoutRef(roundID, wagerID string) string {
	return fmt.Sprintf("sicbo:%s:%s:payout", roundID, wagerID)
}
