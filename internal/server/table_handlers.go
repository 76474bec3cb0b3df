package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"casino/internal/game"
	"casino/internal/ledger"
)

// tableErrorStatus maps core errors onto HTTP statuses: unknown table
// is 404, everything the caller can fix is 400.
func tableErrorStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrTableNotFound):
		return 404
	case errors.Is(err, game.ErrTableFull),
		errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrNoActiveCycle),
		errors.Is(err, game.ErrAlreadyReady),
		errors.Is(err, game.ErrCycleInProgress),
		errors.Is(err, game.ErrNotSeated),
		errors.Is(err, game.ErrUnknownAction),
		errors.Is(err, game.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInsufficientBalance):
		return 400
	default:
		return 500
	}
}

func tableError(c *fiber.Ctx, err error) error {
	return c.Status(tableErrorStatus(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func missingPlayer(c *fiber.Ctx) error {
	return c.Status(400).JSON(fiber.Map{
		"error": "Player ID is required",
	})
}

// listTablesHandler returns all blackjack tables
func (s *FiberServer) listTablesHandler(c *fiber.Ctx) error {
	return c.JSON(s.tables.ListTables())
}

// createTableHandler opens a new blackjack table
func (s *FiberServer) createTableHandler(c *fiber.Ctx) error {
	var body struct {
		Name     string `json:"name"`
		Capacity int    `json:"capacity"`
		MinWager int64  `json:"min_wager"`
		Private  bool   `json:"private"`
	}
	if err := c.BodyParser(&body); err != nil || body.Name == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "Table name is required",
		})
	}
	return c.JSON(s.tables.CreateTable(body.Name, body.Capacity, body.MinWager, body.Private))
}

// getTableHandler returns a single table snapshot
func (s *FiberServer) getTableHandler(c *fiber.Ctx) error {
	snap, err := s.tables.GetTable(c.Params("tableId"))
	if err != nil {
		return tableError(c, err)
	}
	return c.JSON(snap)
}

// joinTableHandler seats a player
func (s *FiberServer) joinTableHandler(c *fiber.Ctx) error {
	var body struct {
		PlayerID string `json:"player_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.PlayerID == "" {
		return missingPlayer(c)
	}

	snap, err := s.tables.Join(c.Params("tableId"), body.PlayerID)
	if err != nil {
		return tableError(c, err)
	}
	return c.JSON(snap)
}

// leaveTableHandler removes a player's seat
func (s *FiberServer) leaveTableHandler(c *fiber.Ctx) error {
	var body struct {
		PlayerID string `json:"player_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.PlayerID == "" {
		return missingPlayer(c)
	}

	snap, err := s.tables.Leave(c.Params("tableId"), body.PlayerID)
	if err != nil {
		return tableError(c, err)
	}
	return c.JSON(snap)
}

// readyHandler escrows a wager and marks the seat ready
func (s *FiberServer) readyHandler(c *fiber.Ctx) error {
	var body struct {
		PlayerID string `json:"player_id"`
		Wager    int64  `json:"wager"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.PlayerID == "" {
		return missingPlayer(c)
	}

	snap, err := s.tables.SetReady(c.Params("tableId"), body.PlayerID, body.Wager)
	if err != nil {
		return tableError(c, err)
	}
	return c.JSON(snap)
}

// unreadyHandler cancels a ready flag and refunds the escrow
func (s *FiberServer) unreadyHandler(c *fiber.Ctx) error {
	var body struct {
		PlayerID string `json:"player_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.PlayerID == "" {
		return missingPlayer(c)
	}

	snap, err := s.tables.Unready(c.Params("tableId"), body.PlayerID)
	if err != nil {
		return tableError(c, err)
	}
	return c.JSON(snap)
}

// actionHandler applies hit/stand/double for the active seat
func (s *FiberServer) actionHandler(c *fiber.Ctx) error {
	var body struct {
		PlayerID string `json:"player_id"`
		Action   string `json:"action"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if body.PlayerID == "" {
		return missingPlayer(c)
	}

	snap, err := s.tables.Act(c.Params("tableId"), body.PlayerID, body.Action)
	if err != nil {
		return tableError(c, err)
	}
	return c.JSON(snap)
}
