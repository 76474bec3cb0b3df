package game

// Event types fanned out through the hub. Per round/table they are
// emitted in phase order from a single writer, and the hub preserves
// that order.
const (
	EventRoundPhaseChanged = "round.phase_changed"
	EventRoundRevealed     = "round.revealed"
	EventRoundSettled      = "round.settled"
	EventWagerPlaced       = "round.wager_placed"

	EventTableUpdated  = "table.updated"
	EventTableDealt    = "table.dealt"
	EventTableFinished = "table.finished"
)

// Event is the envelope every broadcast message uses.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type RoundPhaseChanged struct {
	RoundID string     `json:"round_id"`
	Phase   RoundPhase `json:"phase"`
}

type RoundRevealed struct {
	RoundID    string      `json:"round_id"`
	Outcome    DiceOutcome `json:"outcome"`
	ServerSeed string      `json:"server_seed"`
}

type RoundSettled struct {
	RoundID string   `json:"round_id"`
	Wagers  []*Wager `json:"wagers"`
}

type WagerPlaced struct {
	RoundID  string `json:"round_id"`
	WagerID  string `json:"wager_id"`
	BettorID string `json:"bettor_id"`
	Amount   int64  `json:"amount"`
}

type TableUpdated struct {
	TableID string         `json:"table_id"`
	Table   *TableSnapshot `json:"table"`
}

type TableDealt struct {
	TableID         string         `json:"table_id"`
	DealerHand      []Card         `json:"dealer_hand"`
	Seats           []SeatSnapshot `json:"seats"`
	ActiveSeatIndex int            `json:"active_seat_index"`
}

type TableFinished struct {
	TableID    string       `json:"table_id"`
	DealerHand []Card       `json:"dealer_hand"`
	Results    []SeatResult `json:"results"`
}
