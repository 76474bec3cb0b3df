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

// SeatStatus is the per-cycle state of a seat. Within a cycle it moves
// one way: idle/playing -> stood/busted -> won/lost/push -> idle.
type SeatStatus string

const (
	SeatIdle    SeatStatus = "idle"
	SeatPlaying SeatStatus = "playing"
	SeatStood   SeatStatus = "stood"
	SeatBusted  SeatStatus = "busted"
	SeatWon     SeatStatus = "won"
	SeatLost    SeatStatus = "lost"
	SeatPush    SeatStatus = "push"
)

// TablePhase is the lifecycle phase of a blackjack table.
type TablePhase string

const (
	TableLobby       TablePhase = "lobby"
	TableDealing     TablePhase = "dealing"
	TablePlayerTurns TablePhase = "player_turns"
	TableDealerTurn  TablePhase = "dealer_turn"
	TableSettlement  TablePhase = "settlement"
)

// PlayerAction is a decoded player move.
type PlayerAction string

const (
	ActionHit    PlayerAction = "hit"
	ActionStand  PlayerAction = "stand"
	ActionDouble PlayerAction = "double"
)

// ParsePlayerAction validates a wire-level action string.
func ParsePlayerAction(s string) (PlayerAction, error) {
	switch PlayerAction(s) {
	case ActionHit, ActionStand, ActionDouble:
		return PlayerAction(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Seat is a player's slot at a table.
type Seat struct {
	PlayerID string
	Wager    int64
	Hand     []Card
	Ready    bool
	Status   SeatStatus
	Flagged  bool
	JoinedAt time.Time
}

// SeatSnapshot is the observer-facing view of a seat.
type SeatSnapshot struct {
	PlayerID string     `json:"player_id"`
	Wager    int64      `json:"wager"`
	Hand     []Card     `json:"hand"`
	Total    int        `json:"total"`
	Ready    bool       `json:"ready"`
	Status   SeatStatus `json:"status"`
	Flagged  bool       `json:"flagged,omitempty"`
}

// SeatResult is one seat's settlement outcome.
type SeatResult struct {
	PlayerID string     `json:"player_id"`
	Status   SeatStatus `json:"status"`
	Payout   int64      `json:"payout"`
	Total    int        `json:"total"`
}

// TableSnapshot is an immutable copy of a table's visible state. The
// dealer's hole card is omitted until the dealer turn reveals it.
type TableSnapshot struct {
	TableID         string         `json:"table_id"`
	Name            string         `json:"name"`
	Capacity        int            `json:"capacity"`
	MinWager        int64          `json:"min_wager"`
	Private         bool           `json:"private"`
	Phase           TablePhase     `json:"phase"`
	Seats           []SeatSnapshot `json:"seats"`
	DealerHand      []Card         `json:"dealer_hand"`
	DealerHidden    bool           `json:"dealer_hidden"`
	ActiveSeatIndex int            `json:"active_seat_index"`
	Results         []SeatResult   `json:"results,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Table is one blackjack room. All mutation happens under mu, so a
// table has exactly one logical writer at any instant; distinct tables
// proceed in parallel.
type Table struct {
	TableID   string
	Name      string
	Capacity  int
	MinWager  int64
	Private   bool
	CreatedAt time.Time

	mu           sync.Mutex
	phase        TablePhase
	seats        []*Seat
	shoe         []Card
	dealer       []Card
	dealerHidden bool
	active       int
	cycle        int
	results      []SeatResult
	turnTimer    *quartz.Timer
}

// TableConfig is the blackjack engine's tuning surface.
type TableConfig struct {
	DefaultCapacity int
	MinWager        int64
	TurnSeconds     int
	SettleAttempts  int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		DefaultCapacity: 6,
		MinWager:        1000,
		TurnSeconds:     30,
		SettleAttempts:  3,
	}
}

// TableEngine owns every blackjack table: seats, turn order, dealer
// auto-play, the server-side turn timeout, and per-seat settlement.
type TableEngine struct {
	cfg    TableConfig
	hub    *Hub
	ledger ledger.Service
	clock  quartz.Clock
	ctx    context.Context

	mu     sync.RWMutex
	tables map[string]*Table

	// newShoe is swapped in tests to rig the deal.
	newShoe func() []Card
}

func NewTableEngine(cfg TableConfig, hub *Hub, lgr ledger.Service, clk quartz.Clock) *TableEngine {
	return &TableEngine{
		cfg:     cfg,
		hub:     hub,
		ledger:  lgr,
		clock:   clk,
		ctx:     context.Background(),
		tables:  make(map[string]*Table),
		newShoe: NewShoe,
	}
}

// GetType implements Engine.
func (e *TableEngine) GetType() GameType {
	return GameTypeBlackjack
}

// Start implements Engine.
func (e *TableEngine) Start(ctx context.Context) error {
	e.ctx = ctx
	log.Println("[TABLE] Engine started")
	return nil
}

// Stop implements Engine.
func (e *TableEngine) Stop() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, t := range e.tables {
		t.mu.Lock()
		if t.turnTimer != nil {
			t.turnTimer.Stop()
			t.turnTimer = nil
		}
		t.mu.Unlock()
	}
	log.Println("[TABLE] Engine stopped")
	return nil
}

// maxTableCapacity keeps a single 52-card shoe ample for the initial
// deal, player hits, and the dealer draw.
const maxTableCapacity = 7

// CreateTable opens a new room. Zero capacity/minWager fall back to the
// engine defaults; capacity is clamped to what one shoe can seat.
func (e *TableEngine) CreateTable(name string, capacity int, minWager int64, private bool) *TableSnapshot {
	if capacity <= 0 {
		capacity = e.cfg.DefaultCapacity
	}
	if capacity > maxTableCapacity {
		capacity = maxTableCapacity
	}
	if minWager <= 0 {
		minWager = e.cfg.MinWager
	}
	t := &Table{
		TableID:   uuid.NewString(),
		Name:      name,
		Capacity:  capacity,
		MinWager:  minWager,
		Private:   private,
		CreatedAt: time.Now(),
		phase:     TableLobby,
		active:    -1,
	}

	e.mu.Lock()
	e.tables[t.TableID] = t
	e.mu.Unlock()

	log.Printf("[TABLE] Created table %s (%q, capacity %d)", t.TableID, name, capacity)
	return e.snapshotOf(t)
}

// ListTables returns snapshots of every table.
func (e *TableEngine) ListTables() []*TableSnapshot {
	e.mu.RLock()
	tables := make([]*Table, 0, len(e.tables))
	for _, t := range e.tables {
		tables = append(tables, t)
	}
	e.mu.RUnlock()

	out := make([]*TableSnapshot, 0, len(tables))
	for _, t := range tables {
		out = append(out, e.snapshotOf(t))
	}
	return out
}

// GetTable returns a snapshot of one table.
func (e *TableEngine) GetTable(tableID string) (*TableSnapshot, error) {
	t, err := e.table(tableID)
	if err != nil {
		return nil, err
	}
	return e.snapshotOf(t), nil
}

func (e *TableEngine) table(tableID string) (*Table, error) {
	e.mu.RLock()
	t, ok := e.tables[tableID]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrTableNotFound
	}
	return t, nil
}

// Join seats a player. Joining a table you already sit at is a no-op
// returning the current snapshot.
func (e *TableEngine) Join(tableID, playerID string) (*TableSnapshot, error) {
	t, err := e.table(tableID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.seatIndex(playerID) >= 0 {
		snap := t.snapshot()
		t.mu.Unlock()
		return snap, nil
	}
	if len(t.seats) >= t.Capacity {
		t.mu.Unlock()
		return nil, ErrTableFull
	}
	t.seats = append(t.seats, &Seat{
		PlayerID: playerID,
		Status:   SeatIdle,
		JoinedAt: time.Now(),
	})
	snap := t.snapshot()
	e.hub.Broadcast(EventTableUpdated, TableUpdated{TableID: t.TableID, Table: snap})
	t.mu.Unlock()
	return snap, nil
}

// Leave removes the player's seat. Mid-cycle the seat simply drops out
// of turn order and settlement; its escrowed wager is forfeited. In the
// lobby a ready seat's escrow is refunded.
func (e *TableEngine) Leave(tableID, playerID string) (*TableSnapshot, error) {
	t, err := e.table(tableID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	idx := t.seatIndex(playerID)
	if idx < 0 {
		snap := t.snapshot()
		t.mu.Unlock()
		return snap, nil
	}
	seat := t.seats[idx]
	refund := int64(0)
	if t.phase == TableLobby && seat.Ready {
		refund = seat.Wager
	}

	wasActive := t.phase == TablePlayerTurns && idx == t.active
	t.seats = append(t.seats[:idx], t.seats[idx+1:]...)
	if t.active > idx {
		t.active--
	}

	if len(t.seats) == 0 && t.phase != TableLobby {
		t.resetCycle()
	} else if wasActive {
		// the departed seat held the turn; hand it to the next player
		t.active--
		e.advanceTurn(t)
	}

	snap := t.snapshot()
	e.hub.Broadcast(EventTableUpdated, TableUpdated{TableID: t.TableID, Table: snap})
	t.mu.Unlock()

	if refund > 0 {
		e.creditWithRetry(t, seat, playerID, refund, ledger.TxRefund, uuid.NewString())
	}
	return snap, nil
}

// SetReady escrows the wager for the whole cycle and marks the seat
// ready. When every seated player is ready the table deals.
func (e *TableEngine) SetReady(tableID, playerID string, amount int64) (*TableSnapshot, error) {
	t, err := e.table(tableID)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	t.mu.Lock()
	if t.phase != TableLobby {
		t.mu.Unlock()
		return nil, ErrCycleInProgress
	}
	idx := t.seatIndex(playerID)
	if idx < 0 {
		t.mu.Unlock()
		return nil, ErrNotSeated
	}
	if t.seats[idx].Ready {
		t.mu.Unlock()
		return nil, ErrAlreadyReady
	}
	if amount < t.MinWager {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: table minimum is %d", ErrInvalidAmount, t.MinWager)
	}
	cycle := t.cycle
	t.mu.Unlock()

	// Escrow before committing the ready flag; the ledger call must not
	// run under the table lock.
	ctx, cancel := context.WithTimeout(e.ctx, ledgerCallTimeout)
	defer cancel()
	ref := uuid.NewString()
	if _, err := e.ledger.Debit(ctx, playerID, amount, ledger.TxWager, ref); err != nil {
		return nil, err
	}

	t.mu.Lock()
	idx = t.seatIndex(playerID)
	stale := t.phase != TableLobby || t.cycle != cycle || idx < 0 || t.seats[idx].Ready
	if stale {
		t.mu.Unlock()
		// the table moved on while we were escrowing; give the money back
		e.creditWithRetry(t, nil, playerID, amount, ledger.TxRefund, "unwind:"+ref)
		return nil, ErrCycleInProgress
	}

	seat := t.seats[idx]
	seat.Ready = true
	seat.Wager = amount

	allReady := len(t.seats) > 0
	for _, s := range t.seats {
		if !s.Ready {
			allReady = false
			break
		}
	}

	snap := t.snapshot()
	e.hub.Broadcast(EventTableUpdated, TableUpdated{TableID: t.TableID, Table: snap})

	if allReady {
		e.deal(t)
		snap = t.snapshot()
	}
	t.mu.Unlock()
	return snap, nil
}

// Unready cancels a ready flag before dealing and refunds the escrow.
func (e *TableEngine) Unready(tableID, playerID string) (*TableSnapshot, error) {
	t, err := e.table(tableID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.phase != TableLobby {
		t.mu.Unlock()
		return nil, ErrCycleInProgress
	}
	idx := t.seatIndex(playerID)
	if idx < 0 {
		t.mu.Unlock()
		return nil, ErrNotSeated
	}
	seat := t.seats[idx]
	if !seat.Ready {
		snap := t.snapshot()
		t.mu.Unlock()
		return snap, nil
	}
	refund := seat.Wager
	seat.Ready = false
	seat.Wager = 0
	snap := t.snapshot()
	e.hub.Broadcast(EventTableUpdated, TableUpdated{TableID: t.TableID, Table: snap})
	t.mu.Unlock()

	if refund > 0 {
		e.creditWithRetry(t, seat, playerID, refund, ledger.TxRefund, uuid.NewString())
	}
	return snap, nil
}

// deal starts a cycle: fresh shuffled shoe, two cards per seat in seat
// order, two to the dealer with the second held face down. Caller holds
// the table lock.
func (e *TableEngine) deal(t *Table) {
	t.phase = TableDealing
	t.cycle++
	t.shoe = e.newShoe()
	t.dealer = nil
	t.results = nil

	for _, seat := range t.seats {
		seat.Hand = []Card{e.draw(t), e.draw(t)}
		seat.Status = SeatPlaying
	}
	t.dealer = []Card{e.draw(t), e.draw(t)}
	t.dealerHidden = true

	t.active = 0
	t.phase = TablePlayerTurns
	e.armTurnTimer(t)

	log.Printf("[TABLE] Table %s dealt cycle %d to %d seats", t.TableID, t.cycle, len(t.seats))
	e.hub.Broadcast(EventTableDealt, TableDealt{
		TableID:         t.TableID,
		DealerHand:      t.visibleDealer(),
		Seats:           t.seatSnapshots(),
		ActiveSeatIndex: t.active,
	})
}

// draw takes the next card, starting a fresh shoe if this one runs dry
// mid-cycle.
func (e *TableEngine) draw(t *Table) Card {
	if len(t.shoe) == 0 {
		t.shoe = e.newShoe()
	}
	c := t.shoe[0]
	t.shoe = t.shoe[1:]
	return c
}

// Act applies one player action. The dealer's auto-play and settlement
// run inline when the last active seat finishes.
func (e *TableEngine) Act(tableID, playerID, action string) (*TableSnapshot, error) {
	act, err := ParsePlayerAction(action)
	if err != nil {
		return nil, err
	}
	t, err := e.table(tableID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.phase != TablePlayerTurns {
		t.mu.Unlock()
		return nil, ErrNoActiveCycle
	}
	idx := t.seatIndex(playerID)
	if idx < 0 {
		t.mu.Unlock()
		return nil, ErrNotSeated
	}
	if idx != t.active || t.seats[idx].Status != SeatPlaying {
		t.mu.Unlock()
		return nil, ErrNotYourTurn
	}
	seat := t.seats[idx]

	switch act {
	case ActionHit:
		seat.Hand = append(seat.Hand, e.draw(t))
		switch total := HandTotal(seat.Hand); {
		case total > 21:
			seat.Status = SeatBusted
			e.advanceTurn(t)
		case total == 21:
			seat.Status = SeatStood
			e.advanceTurn(t)
		default:
			e.armTurnTimer(t)
			e.hub.Broadcast(EventTableUpdated, TableUpdated{TableID: t.TableID, Table: t.snapshot()})
		}

	case ActionStand:
		seat.Status = SeatStood
		e.advanceTurn(t)

	case ActionDouble:
		// The extra debit equals the wager as it stood before doubling.
		extra := seat.Wager
		cycle := t.cycle
		t.mu.Unlock()

		ctx, cancel := context.WithTimeout(e.ctx, ledgerCallTimeout)
		ref := uuid.NewString()
		_, derr := e.ledger.Debit(ctx, playerID, extra, ledger.TxWager, ref)
		cancel()
		if derr != nil {
			return nil, derr
		}

		t.mu.Lock()
		if t.phase != TablePlayerTurns || t.cycle != cycle ||
			t.seatIndex(playerID) != t.active || seat.Status != SeatPlaying {
			t.mu.Unlock()
			e.creditWithRetry(t, nil, playerID, extra, ledger.TxRefund, "unwind:"+ref)
			return nil, ErrNotYourTurn
		}
		seat.Wager += extra
		seat.Hand = append(seat.Hand, e.draw(t))
		if HandTotal(seat.Hand) > 21 {
			seat.Status = SeatBusted
		} else {
			seat.Status = SeatStood
		}
		e.advanceTurn(t)
	}

	snap := t.snapshot()
	t.mu.Unlock()
	return snap, nil
}

// advanceTurn moves to the next seat still playing, or hands the cycle
// to the dealer when none remains. Caller holds the table lock.
func (e *TableEngine) advanceTurn(t *Table) {
	if t.turnTimer != nil {
		t.turnTimer.Stop()
		t.turnTimer = nil
	}
	for idx := t.active + 1; idx < len(t.seats); idx++ {
		if t.seats[idx].Status == SeatPlaying {
			t.active = idx
			e.armTurnTimer(t)
			e.hub.Broadcast(EventTableUpdated, TableUpdated{TableID: t.TableID, Table: t.snapshot()})
			return
		}
	}
	t.active = -1
	e.dealerTurn(t)
}

// armTurnTimer starts the server-authoritative action window for the
// active seat. Expiry force-stands the seat; clients never decide it.
// The timer is keyed on the player, not the seat index, so departures
// that shift seat indices cannot detach it.
func (e *TableEngine) armTurnTimer(t *Table) {
	if t.turnTimer != nil {
		t.turnTimer.Stop()
	}
	tableID := t.TableID
	cycle := t.cycle
	playerID := t.seats[t.active].PlayerID
	t.turnTimer = e.clock.AfterFunc(time.Duration(e.cfg.TurnSeconds)*time.Second, func() {
		e.forceStand(tableID, cycle, playerID)
	})
}

// forceStand is the turn-timeout path. It re-checks that the table is
// still on the same cycle and the player still holds the turn.
func (e *TableEngine) forceStand(tableID string, cycle int, playerID string) {
	t, err := e.table(tableID)
	if err != nil {
		return
	}
	t.mu.Lock()
	idx := t.seatIndex(playerID)
	if t.phase != TablePlayerTurns || t.cycle != cycle || idx < 0 ||
		idx != t.active || t.seats[idx].Status != SeatPlaying {
		t.mu.Unlock()
		return
	}
	log.Printf("[TABLE] Table %s player %s timed out, forcing stand", tableID, playerID)
	t.seats[idx].Status = SeatStood
	e.advanceTurn(t)
	t.mu.Unlock()
}

// dealerTurn reveals the hole card and draws to 17, then settles.
// Caller holds the table lock.
func (e *TableEngine) dealerTurn(t *Table) {
	t.phase = TableDealerTurn
	t.dealerHidden = false
	for HandTotal(t.dealer) < 17 {
		t.dealer = append(t.dealer, e.draw(t))
	}
	e.hub.Broadcast(EventTableUpdated, TableUpdated{TableID: t.TableID, Table: t.snapshot()})
	e.settleTable(t)
}

// pendingCredit is a settlement payout queued while the lock is held.
type pendingCredit struct {
	seat   *Seat
	player string
	amount int64
	ref    string
}

// settleTable resolves every seat exactly once, pays winners through
// the ledger with idempotent per-cycle refs, then resets the table to
// the lobby. Credits run outside the table lock.
func (e *TableEngine) settleTable(t *Table) {
	t.phase = TableSettlement
	cycle := t.cycle
	dealerHand := append([]Card(nil), t.dealer...)

	var credits []pendingCredit
	results := make([]SeatResult, 0, len(t.seats))
	for _, seat := range t.seats {
		if len(seat.Hand) == 0 {
			// seated after the deal; not part of this cycle
			continue
		}
		var status SeatStatus
		var payout int64
		if seat.Status == SeatBusted {
			status, payout = SeatLost, 0
		} else {
			status, payout = ResolveSeat(seat.Hand, seat.Wager, dealerHand)
		}
		seat.Status = status
		results = append(results, SeatResult{
			PlayerID: seat.PlayerID,
			Status:   status,
			Payout:   payout,
			Total:    HandTotal(seat.Hand),
		})
		if payout > 0 {
			credits = append(credits, pendingCredit{
				seat:   seat,
				player: seat.PlayerID,
				amount: payout,
				ref:    settleRef(t.TableID, cycle, seat.PlayerID),
			})
		}
	}
	t.results = results

	t.mu.Unlock()
	for _, c := range credits {
		e.creditWithRetry(t, c.seat, c.player, c.amount, ledger.TxPayout, c.ref)
	}
	t.mu.Lock()

	e.hub.Broadcast(EventTableFinished, TableFinished{
		TableID:    t.TableID,
		DealerHand: dealerHand,
		Results:    results,
	})

	if t.cycle != cycle || t.phase != TableSettlement {
		// settlement is the only writer allowed to move past this phase
		return
	}
	t.resetCycle()
	e.hub.Broadcast(EventTableUpdated, TableUpdated{TableID: t.TableID, Table: t.snapshot()})
}

// resetCycle discards per-cycle state and returns the table to the
// lobby. Caller holds the table lock.
func (t *Table) resetCycle() {
	for _, seat := range t.seats {
		seat.Status = SeatIdle
		seat.Ready = false
		seat.Wager = 0
		seat.Hand = nil
	}
	t.shoe = nil
	t.dealer = nil
	t.dealerHidden = false
	t.active = -1
	t.phase = TableLobby
	if t.turnTimer != nil {
		t.turnTimer.Stop()
		t.turnTimer = nil
	}
}

// creditWithRetry pays out with bounded retries. On exhaustion the seat
// is flagged for reconciliation rather than silently losing the payout.
// Callers must not hold the table lock; the flag is committed under it.
func (e *TableEngine) creditWithRetry(t *Table, seat *Seat, playerID string, amount int64, txType, ref string) {
	for attempt := 1; attempt <= e.cfg.SettleAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(e.ctx, ledgerCallTimeout)
		_, err := e.ledger.Credit(ctx, playerID, amount, txType, ref)
		cancel()
		if err == nil {
			return
		}
		log.Printf("[TABLE] Credit attempt %d/%d failed for %s: %v", attempt, e.cfg.SettleAttempts, playerID, err)
	}
	if seat != nil {
		t.mu.Lock()
		seat.Flagged = true
		t.mu.Unlock()
	}
	log.Printf("[TABLE] Credit of %d to %s flagged for reconciliation (ref %s)", amount, playerID, ref)
}

func (t *Table) seatIndex(playerID string) int {
	for i, s := range t.seats {
		if s.PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (t *Table) visibleDealer() []Card {
	if t.dealerHidden && len(t.dealer) > 0 {
		return t.dealer[:1]
	}
	return append([]Card(nil), t.dealer...)
}

func (t *Table) seatSnapshots() []SeatSnapshot {
	out := make([]SeatSnapshot, 0, len(t.seats))
	for _, s := range t.seats {
		out = append(out, SeatSnapshot{
			PlayerID: s.PlayerID,
			Wager:    s.Wager,
			Hand:     append([]Card(nil), s.Hand...),
			Total:    HandTotal(s.Hand),
			Ready:    s.Ready,
			Status:   s.Status,
			Flagged:  s.Flagged,
		})
	}
	return out
}

// snapshot builds an immutable view. Caller holds the table lock.
func (t *Table) snapshot() *TableSnapshot {
	return &TableSnapshot{
		TableID:         t.TableID,
		Name:            t.Name,
		Capacity:        t.Capacity,
		MinWager:        t.MinWager,
		Private:         t.Private,
		Phase:           t.phase,
		Seats:           t.seatSnapshots(),
		DealerHand:      t.visibleDealer(),
		DealerHidden:    t.dealerHidden,
		ActiveSeatIndex: t.active,
		Results:         append([]SeatResult(nil), t.results...),
		CreatedAt:       t.CreatedAt,
	}
}

func (e *TableEngine) snapshotOf(t *Table) *TableSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func settleRef(tableID string, cycle int, playerID string) string {
	return fmt.Sprintf("bj:%s:%d:%s:payout", tableID, cycle, playerID)
}
