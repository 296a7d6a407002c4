package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/noah-isme/codearena-api/internal/dto"
	"github.com/noah-isme/codearena-api/internal/utils"
)

const (
	localSocketContest  = "socket_contest_id"
	localSocketSnapshot = "socket_snapshot"
	socketWriteTimeout  = 10 * time.Second
)

// SocketMessage is the frame written to leaderboard websocket clients.
type SocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// upgradeLeaderboard resolves the contest before the handshake so unknown contests still get a
// JSON 404 instead of a socket that closes immediately.
func (h *LeaderboardHandler) upgradeLeaderboard(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return utils.SendError(c, fiber.StatusUpgradeRequired, "websocket upgrade required")
	}

	contestID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	board, err := h.leaderboard.Leaderboard(requestContext(c), dto.LeaderboardRequest{ContestID: contestID})
	if err != nil {
		return h.handleError(c, err)
	}

	c.Locals(localSocketContest, contestID)
	c.Locals(localSocketSnapshot, board)
	return c.Next()
}

func (h *LeaderboardHandler) socket(conn *websocket.Conn) {
	contestID, _ := conn.Locals(localSocketContest).(uint)
	board, _ := conn.Locals(localSocketSnapshot).(dto.LeaderboardResponse)
	logger := h.logger.With().Uint("contest_id", contestID).Str("transport", "websocket").Logger()

	stream, cleanup := h.leaderboard.Subscribe(contestID)
	defer cleanup()

	// Clients never send anything meaningful; reading only detects the close.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeSocketMessage(conn, "snapshot", board); err != nil {
		logger.Debug().Err(err).Msg("failed to write leaderboard snapshot")
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-stream:
			if !ok {
				return
			}
			if err := writeSocketMessage(conn, "leaderboard", event); err != nil {
				logger.Debug().Err(err).Msg("failed to write leaderboard event")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(socketWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keep-alive"), deadline); err != nil {
				logger.Debug().Err(err).Msg("leaderboard socket closed")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeSocketMessage(conn *websocket.Conn, kind string, payload interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(SocketMessage{Type: kind, Data: payload})
}
