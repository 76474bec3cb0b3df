package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"casino/internal/game"
	"casino/internal/ledger"
)

// getCurrentRoundHandler returns the active sic bo round
func (s *FiberServer) getCurrentRoundHandler(c *fiber.Ctx) error {
	round := s.roundClock.GetCurrentRound()
	if round == nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "No active round",
		})
	}
	return c.JSON(fiber.Map{
		"round":  round,
		"wagers": s.roundClock.RoundWagers(),
	})
}

// getRecentRoundsHandler lists recently settled rounds
func (s *FiberServer) getRecentRoundsHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	rounds, err := s.cache.Rounds().RecentRounds(c.Context(), limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to load round history",
		})
	}
	return c.JSON(rounds)
}

// placeWagerHandler handles sic bo wager placement
func (s *FiberServer) placeWagerHandler(c *fiber.Ctx) error {
	var req game.WagerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.BettorID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Bettor ID is required",
		})
	}

	resp := s.roundClock.PlaceWager(req)
	if !resp.Success {
		return c.Status(400).JSON(resp)
	}
	return c.JSON(resp)
}

// getBalanceHandler returns a player's balance
func (s *FiberServer) getBalanceHandler(c *fiber.Ctx) error {
	playerID := c.Params("userId")
	if playerID == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	balance, err := s.ledger.Balance(c.Context(), playerID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to read balance",
		})
	}
	return c.JSON(fiber.Map{
		"player_id": playerID,
		"balance":   balance,
	})
}

// depositHandler credits a player's balance
func (s *FiberServer) depositHandler(c *fiber.Ctx) error {
	playerID := c.Params("userId")
	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil || body.Amount <= 0 {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid amount",
		})
	}

	balance, err := s.ledger.Credit(c.Context(), playerID, body.Amount, ledger.TxDeposit, uuid.NewString())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Deposit failed",
		})
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"player_id": playerID,
		"balance":   balance,
	})
}

// withdrawHandler debits a player's balance
func (s *FiberServer) withdrawHandler(c *fiber.Ctx) error {
	playerID := c.Params("userId")
	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil || body.Amount <= 0 {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid amount",
		})
	}

	balance, err := s.ledger.Debit(c.Context(), playerID, body.Amount, ledger.TxWithdraw, uuid.NewString())
	if errors.Is(err, ledger.ErrInsufficientBalance) {
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Withdraw failed",
		})
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"player_id": playerID,
		"balance":   balance,
	})
}

// getTransactionsHandler lists a player's recent ledger transactions
func (s *FiberServer) getTransactionsHandler(c *fiber.Ctx) error {
	playerID := c.Params("userId")
	limit := c.QueryInt("limit", 200)

	txs, err := s.ledger.History(c.Context(), playerID, limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to load transactions",
		})
	}
	return c.JSON(txs)
}
