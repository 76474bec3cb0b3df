package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
)

// Suit represents a card suit
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	default:
		return "?"
	}
}

// Rank represents a card rank
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

func (r Rank) String() string {
	switch r {
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	case Ten:
		return "10"
	default:
		return string(rune('0' + int(r)))
	}
}

// Card is one playing card. Cards are dealt face up; the dealer's
// second card is masked in snapshots until the dealer turn.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// blackjackValue is the hard value of the card; aces are handled by
// HandTotal's flex rule.
func (c Card) blackjackValue() int {
	switch {
	case c.Rank >= Ten && c.Rank <= King:
		return 10
	case c.Rank == Ace:
		return 11
	default:
		return int(c.Rank)
	}
}

// NewShoe builds a full 52-card shoe shuffled with Fisher-Yates over a
// crypto-seeded source.
func NewShoe() []Card {
	shoe := make([]Card, 0, 52)
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			shoe = append(shoe, Card{Suit: suit, Rank: rank})
		}
	}

	var seed [8]byte
	crand.Read(seed[:])
	rng := rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))
	for i := len(shoe) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		shoe[i], shoe[j] = shoe[j], shoe[i]
	}
	return shoe
}

// HandTotal computes a blackjack hand total. Each ace counts 11 unless
// that busts the hand, in which case it drops to 1, one ace at a time.
func HandTotal(cards []Card) int {
	total, aces := 0, 0
	for _, c := range cards {
		v := c.blackjackValue()
		if c.Rank == Ace {
			aces++
		}
		total += v
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// IsBlackjack reports a natural: 21 from exactly two cards.
func IsBlackjack(cards []Card) bool {
	return len(cards) == 2 && HandTotal(cards) == 21
}
