package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// RollDice derives three dice in [1,6] from the round's seeds using
// HMAC-SHA256. The server seed is committed to before betting opens and
// revealed with the outcome, so players can re-derive the roll.
// Rejection sampling over single bytes keeps each die uniform: bytes
// 252-255 are skipped because 252 is the largest multiple of 6 below 256.
func RollDice(serverSeed, clientSeed string, nonce int) DiceOutcome {
	var dice [3]int
	die := 0
	for counter := 0; die < 3; counter++ {
		data := fmt.Sprintf("%s:%d:%d", clientSeed, nonce, counter)
		h := hmac.New(sha256.New, []byte(serverSeed))
		h.Write([]byte(data))
		for _, b := range h.Sum(nil) {
			if b >= 252 {
				continue
			}
			dice[die] = int(b%6) + 1
			die++
			if die == 3 {
				break
			}
		}
	}

	return DiceOutcome{
		Dice: dice,
		Sum:  dice[0] + dice[1] + dice[2],
	}
}

// GenerateSeed creates a cryptographically secure random seed
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashCommitment creates a SHA256 hash of the seed for commitment
func HashCommitment(seed string) string {
	h := sha256.New()
	h.Write([]byte(seed))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyRoll allows players to verify the fairness of a revealed round:
// the seed must match the published commitment and re-derive the dice.
func VerifyRoll(serverSeed, clientSeed, commitment string, nonce int, claimed DiceOutcome) bool {
	if HashCommitment(serverSeed) != commitment {
		return false
	}
	derived := RollDice(serverSeed, clientSeed, nonce)
	return derived == claimed
}
