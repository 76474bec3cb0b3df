package server

import (
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/gofiber/contrib/websocket"

	"casino/internal/game"
)

func (s *FiberServer) RegisterFiberRoutes() {
	// Apply CORS middleware
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	// Basic routes
	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	// Sic bo round routes
	api.Get("/rounds/current", s.getCurrentRoundHandler)
	api.Get("/rounds/recent", s.getRecentRoundsHandler)
	api.Post("/rounds/wager", s.placeWagerHandler)

	// Blackjack table routes
	api.Get("/tables", s.listTablesHandler)
	api.Post("/tables", s.createTableHandler)
	api.Get("/tables/:tableId", s.getTableHandler)
	api.Post("/tables/:tableId/join", s.joinTableHandler)
	api.Post("/tables/:tableId/leave", s.leaveTableHandler)
	api.Post("/tables/:tableId/ready", s.readyHandler)
	api.Post("/tables/:tableId/unready", s.unreadyHandler)
	api.Post("/tables/:tableId/action", s.actionHandler)

	// Wallet routes
	api.Get("/user/:userId/balance", s.getBalanceHandler)
	api.Post("/user/:userId/deposit", s.depositHandler)
	api.Post("/user/:userId/withdraw", s.withdrawHandler)
	api.Get("/user/:userId/transactions", s.getTransactionsHandler)

	// WebSocket route
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"database": s.db.Health(),
		"cache":    s.cache.Health(),
		"game": fiber.Map{
			"status":            "running",
			"connected_clients": s.hub.GetClientCount(),
		},
	}
	return c.JSON(health)
}

// gameWebSocketHandler handles WebSocket connections for real-time game updates
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	// Extract player ID from query params
	playerID := conn.Query("player_id", "anonymous")

	log.Printf("[WS] New connection from player: %s", playerID)

	client := s.hub.RegisterClient(conn, playerID)

	// Send initial state
	if currentRound := s.roundClock.GetCurrentRound(); currentRound != nil {
		client.SendEvent("initial_state", currentRound)
	}

	// Handle incoming messages
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] Read error for player %s: %v", playerID, err)
			s.hub.UnregisterClient(conn)
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var clientMsg struct {
			Type   string `json:"type"`
			Kind   string `json:"kind"`
			Target int    `json:"target"`
			Amount int64  `json:"amount"`
		}
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			continue
		}

		switch clientMsg.Type {
		case "place_wager":
			resp := s.roundClock.PlaceWager(game.WagerRequest{
				BettorID: playerID,
				Kind:     clientMsg.Kind,
				Target:   clientMsg.Target,
				Amount:   clientMsg.Amount,
			})
			respJSON, _ := json.Marshal(resp)
			conn.WriteMessage(websocket.TextMessage, respJSON)

		case "ping":
			pongJSON, _ := json.Marshal(map[string]string{"type": "pong"})
			conn.WriteMessage(websocket.TextMessage, pongJSON)
		}
	}
}
