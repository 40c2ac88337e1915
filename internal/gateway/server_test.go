// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package gateway_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/quizhub/internal/auth"
	"github.com/quizhub/quizhub/internal/clock"
	"github.com/quizhub/quizhub/internal/core"
	"github.com/quizhub/quizhub/internal/gateway"
	"github.com/quizhub/quizhub/internal/leaderboard"
	"github.com/quizhub/quizhub/internal/quiz"
	"github.com/quizhub/quizhub/internal/session"
)

// presenceRecorder captures every online-list broadcast.
type presenceRecorder struct {
	mu    sync.Mutex
	lists [][]string
}

func (r *presenceRecorder) notify(usernames []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists = append(r.lists, append([]string(nil), usernames...))
}

func (r *presenceRecorder) last() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lists) == 0 {
		return nil
	}
	return r.lists[len(r.lists)-1]
}

func TestServer_RunAndLiveness(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	accounts := newMemAccounts()
	recorder := &presenceRecorder{}

	// The registry is gated on the server's liveness view, matching the
	// production wiring where the server variable is assigned later.
	var server *gateway.Server
	registry := session.NewRegistry(recorder.notify, session.WithLivenessCheck(func(connID ulid.ULID) bool {
		return server.IsLive(connID)
	}))

	server = gateway.NewServer("127.0.0.1:0", gateway.Deps{
		Auth:        auth.NewService(accounts, auth.NewDigestHasher(), auth.NewLockoutTracker(clk), clk),
		Registry:    registry,
		Quiz:        quiz.NewService(&memQuestions{}, accounts),
		Leaderboard: leaderboard.NewService(accounts, nil, 0, nil),
		Broadcaster: core.NewBroadcaster(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- server.Run(ctx) }()

	require.Eventually(t, func() bool { return server.Addr() != "" },
		2*time.Second, 10*time.Millisecond, "server did not start")

	conn, err := net.Dial("tcp", server.Addr())
	require.NoError(t, err)

	scanner := bufio.NewScanner(conn)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.True(t, scanner.Scan(), "expected hello line")

	// Guest login establishes a session through the liveness gate.
	line, err := json.Marshal(gateway.Request{Type: gateway.ReqGuestLogin})
	require.NoError(t, err)
	_, err = conn.Write(append(line, '\n'))
	require.NoError(t, err)

	require.True(t, scanner.Scan(), "expected login result")
	var resp gateway.Response
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	require.True(t, resp.OK, resp.Message)
	require.Len(t, recorder.last(), 1, "session should be registered")

	// Dropping the connection empties the registry.
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return len(recorder.last()) == 0 },
		2*time.Second, 10*time.Millisecond, "session should be removed on disconnect")

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop on context cancellation")
	}
}
