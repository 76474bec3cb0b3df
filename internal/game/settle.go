package game

// Multipliers are expressed in hundredths so integer money never picks
// up float drift: 195 means 1.95x.
const (
	OverUnderMultX100 = 195
	BlackjackMultX100 = 250
	WinMultX100       = 200
	PushMultX100      = 100

	DefaultExactSumMultX100 = 1500
)

// Paytable holds the configurable sic bo multipliers.
type Paytable struct {
	ExactSumMultX100 int64
}

// DefaultPaytable returns the stock paytable.
func DefaultPaytable() Paytable {
	return Paytable{ExactSumMultX100: DefaultExactSumMultX100}
}

// Classify returns the payout multiplier (x100) a wager earns against
// an outcome, 0 for a loss. Over wins on sums 11-18, under on 3-10,
// exact sum on a matched total. Pair is accepted at placement but has
// no published paytable yet, so it always resolves as a loss.
func (p Paytable) Classify(kind WagerKind, target int, out DiceOutcome) int64 {
	switch kind {
	case WagerOver:
		if out.Sum >= 11 && out.Sum <= 18 {
			return OverUnderMultX100
		}
	case WagerUnder:
		if out.Sum >= 3 && out.Sum <= 10 {
			return OverUnderMultX100
		}
	case WagerExactSum:
		if out.Sum == target {
			return p.ExactSumMultX100
		}
	case WagerPair:
		return 0
	}
	return 0
}

// PayoutAmount applies a x100 multiplier to an amount, truncating any
// fractional unit toward zero.
func PayoutAmount(amount, multX100 int64) int64 {
	return amount * multX100 / 100
}

// SettleWager resolves one wager in place against an outcome and
// returns the payout owed. Settling an already-settled wager is a
// no-op returning 0, so replays never double-pay.
func (p Paytable) SettleWager(w *Wager, out DiceOutcome) int64 {
	if w.Settled {
		return 0
	}
	mult := p.Classify(w.Kind, w.Target, out)
	w.Payout = PayoutAmount(w.Amount, mult)
	w.Settled = true
	return w.Payout
}

// ResolveSeat computes the settlement outcome for one non-busted seat
// against the dealer's final hand: the terminal status and the amount
// to credit (winnings plus returned escrow; 0 on a loss).
func ResolveSeat(hand []Card, wager int64, dealerHand []Card) (SeatStatus, int64) {
	playerTotal := HandTotal(hand)
	dealerTotal := HandTotal(dealerHand)

	switch {
	case IsBlackjack(hand):
		if IsBlackjack(dealerHand) {
			return SeatPush, PayoutAmount(wager, PushMultX100)
		}
		return SeatWon, PayoutAmount(wager, BlackjackMultX100)
	case dealerTotal > 21:
		return SeatWon, PayoutAmount(wager, WinMultX100)
	case playerTotal > dealerTotal:
		return SeatWon, PayoutAmount(wager, WinMultX100)
	case playerTotal < dealerTotal:
		return SeatLost, 0
	default:
		return SeatPush, PayoutAmount(wager, PushMultX100)
	}
}
