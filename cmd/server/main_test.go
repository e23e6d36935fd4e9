package main

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"llmhub/internal/config"
	"llmhub/internal/hub"
	"llmhub/internal/models"
	"llmhub/pkg/client"
	"llmhub/pkg/logger"
)

func TestRunJoin_HeartbeatsThenLeaves(t *testing.T) {
	logger.GlobalLogger.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.Auth.PasswordCost = bcrypt.MinCost
	log := logrus.New()
	log.SetOutput(io.Discard)
	h := hub.New(cfg, log)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	defer h.Close()

	c := client.New(srv.URL)
	room, err := c.Create(context.Background(), "room", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runJoin(ctx, c, joinOptions{
			code:     room.Room.Code,
			req:      models.JoinRoomRequest{ID: "p1", Model: "llama3", Endpoint: "http://localhost:11434"},
			interval: 10 * time.Millisecond,
		})
	}()

	require.Eventually(t, func() bool {
		ps, err := c.Participants(context.Background(), room.Room.Code)
		return err == nil && len(ps) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ps, err := c.Participants(context.Background(), room.Room.Code)
	require.NoError(t, err)
	assert.Equal(t, "llama3", ps[0].Nickname, "nickname defaults to the model")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("join loop did not stop")
	}

	ps, err = c.Participants(context.Background(), room.Room.Code)
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestRunJoin_UnknownRoom(t *testing.T) {
	cfg := config.Default()
	log := logrus.New()
	log.SetOutput(io.Discard)
	h := hub.New(cfg, log)
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()
	defer h.Close()

	err := runJoin(context.Background(), client.New(srv.URL), joinOptions{
		code: "ZZZZZZ",
		req:  models.JoinRoomRequest{ID: "p1", Model: "m", Endpoint: "http://x"},
	})
	assert.True(t, client.IsStatus(err, 404))
}
