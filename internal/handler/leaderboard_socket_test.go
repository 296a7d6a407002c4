package handler_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/codearena-api/internal/dto"
)

func startServer(t *testing.T, app *fiber.App) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()
	t.Cleanup(func() {
		_ = app.ShutdownWithTimeout(time.Second)
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	})

	return listener.Addr().String()
}

func readSocketMessage(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg.Type, msg.Data
}

func TestLeaderboardSocketSendsSnapshotThenEvents(t *testing.T) {
	a := setupArenaApp(t)
	contestID := a.createContest(t, "Socket Round", time.Now().Add(-time.Minute), 60, 10)
	addr := startServer(t, a.app)

	url := "ws://" + addr + fmt.Sprintf("/api/v1/contests/%d/leaderboard/ws", contestID)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	kind, data := readSocketMessage(t, conn)
	require.Equal(t, "snapshot", kind)
	var board dto.LeaderboardResponse
	require.NoError(t, json.Unmarshal(data, &board))
	require.Equal(t, contestID, board.ContestID)
	require.Empty(t, board.Items)

	joinResp, env := a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/contests/%d/join", contestID), nil, 21, "participant")
	require.Equal(t, fiber.StatusCreated, joinResp.StatusCode, env.Message)

	kind, data = readSocketMessage(t, conn)
	require.Equal(t, "leaderboard", kind)
	var event dto.LeaderboardEvent
	require.NoError(t, json.Unmarshal(data, &event))
	require.Equal(t, contestID, event.ContestID)
	require.Equal(t, uint(21), event.UserID)
}

func TestLeaderboardSocketRejectsUnknownContest(t *testing.T) {
	a := setupArenaApp(t)
	addr := startServer(t, a.app)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/contests/999/leaderboard/ws", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestLeaderboardSocketRequiresUpgrade(t *testing.T) {
	a := setupArenaApp(t)
	contestID := a.createContest(t, "Plain Round", time.Now().Add(time.Hour), 60, 10)

	resp, env := a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/contests/%d/leaderboard/ws", contestID), nil, 0, "")
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
	require.True(t, strings.Contains(env.Message, "upgrade"))
}
