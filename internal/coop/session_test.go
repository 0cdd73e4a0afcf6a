package coop

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/proof"
)

const waitTimeout = 5 * time.Second

func startHost(t *testing.T, eventID string) (*Host, string) {
	t.Helper()
	h := NewHost(Player{ID: "host", Name: "Host"}, WithLogger(zap.NewNop()))
	addr, err := h.Start(context.Background(), proof.CanonicalPieces, "127.0.0.1:0", eventID)
	require.NoError(t, err)
	t.Cleanup(h.Stop)
	return h, addr.String()
}

func joinClient(t *testing.T, addr, id string) *Client {
	t.Helper()
	c := NewClient(Player{ID: id, Name: id}, WithLogger(zap.NewNop()))
	require.NoError(t, c.Connect(context.Background(), addr))
	t.Cleanup(c.Stop)
	return c
}

func waitFor(t *testing.T, ch <-chan Notification, match func(Notification) bool) Notification {
	t.Helper()
	timer := time.NewTimer(waitTimeout)
	defer timer.Stop()
	for {
		select {
		case n, ok := <-ch:
			require.True(t, ok, "subscription closed")
			if match(n) {
				return n
			}
		case <-timer.C:
			t.Fatal("timed out waiting for notification")
			return Notification{}
		}
	}
}

func isWin(n Notification) bool { return n.Kind == NotifyWin }

func TestSession_ThreeClientsReachIdenticalWonState(t *testing.T) {
	const eventID = "evt-1"
	host, addr := startHost(t, eventID)
	hostSub, cancel := host.Subscribe()
	defer cancel()

	clients := make([]*Client, 3)
	subs := make([]<-chan Notification, 3)
	for i := range clients {
		clients[i] = joinClient(t, addr, fmt.Sprintf("guest-%d", i))
		sub, cancel := clients[i].Subscribe()
		t.Cleanup(cancel)
		subs[i] = sub
	}

	require.Eventually(t, func() bool {
		if len(host.State().Players) != 4 {
			return false
		}
		for _, c := range clients {
			st := c.State()
			if len(st.Players) != 4 || st.EventID != eventID {
				return false
			}
		}
		return true
	}, waitTimeout, 10*time.Millisecond)

	require.NoError(t, host.Submit(encodePiece(t, eventID, "p1", "")))
	for i, c := range clients {
		require.NoError(t, c.Submit(encodePiece(t, eventID, proof.CanonicalPieces[i+1], "")))
	}

	final := waitFor(t, hostSub, isWin).State
	for _, sub := range subs {
		n := waitFor(t, sub, isWin)
		assert.Equal(t, final, n.State)
	}

	assert.Equal(t, StatusWon, final.Status)
	require.Len(t, final.Pieces, 4)
	assert.Equal(t, "host", final.Pieces[0].FoundBy)
	for i, piece := range final.Pieces[1:] {
		assert.Equal(t, fmt.Sprintf("guest-%d", i), piece.FoundBy)
		assert.Equal(t, proof.Sign(eventID, piece.ID, ""), piece.Signature)
	}
	for _, c := range clients {
		assert.Equal(t, final, c.State())
	}
	assert.Equal(t, final, host.State())

	proofRaw, err := SecureClaimFromWin(clients[0].State(), time.Now())
	require.NoError(t, err)
	assert.Contains(t, proofRaw, `"type":"secure"`)
}

func TestSession_MissionMismatchLeavesStateUntouched(t *testing.T) {
	const eventID = "evt-1"
	host, addr := startHost(t, eventID)

	require.NoError(t, host.Submit(encodePiece(t, eventID, "p1", "badge-2")))
	before := host.State()
	require.Equal(t, "badge-2", before.BadgeID)

	err := host.Submit(encodePiece(t, eventID, "p2", "badge-1"))
	assert.ErrorIs(t, err, domain.ErrMissionMismatch)
	err = host.Submit(encodePiece(t, eventID, "p2", ""))
	assert.ErrorIs(t, err, domain.ErrMissionMismatch)
	err = host.Submit(encodePiece(t, "evt-9", "p2", "badge-2"))
	assert.ErrorIs(t, err, domain.ErrEventMismatch)
	assert.Equal(t, before, host.State())

	c := joinClient(t, addr, "guest")
	require.Eventually(t, func() bool { return c.State().BadgeID == "badge-2" }, waitTimeout, 10*time.Millisecond)
	err = c.Submit(encodePiece(t, eventID, "p2", "badge-1"))
	assert.ErrorIs(t, err, domain.ErrMissionMismatch)

	// A peer that skips local validation is rejected by the host.
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	sendRaw(t, conn, Join{Player: Player{ID: "rogue"}})
	piece := proof.NewPiece(eventID, "p2", "badge-1")
	sendRaw(t, conn, PieceFound{PieceID: "p2", PlayerID: "rogue", Signature: piece.Signature, EventID: eventID, BadgeID: "badge-1"})

	rejection := readUntil(t, conn, TypeError).(ErrorMessage)
	assert.ErrorIs(t, rejection.Err(), domain.ErrMissionMismatch)

	after := host.State()
	assert.Equal(t, before.Pieces, after.Pieces)
	assert.Equal(t, "badge-2", after.BadgeID)
}

func TestSession_LegacyPieces(t *testing.T) {
	host, _ := startHost(t, "")

	require.NoError(t, host.Submit("p1"))
	st := host.State()
	assert.Equal(t, "host", st.Pieces[0].FoundBy)

	bound, _ := startHost(t, "evt-1")
	assert.ErrorIs(t, bound.Submit("p1"), proof.ErrMalformedPiece)
	assert.Empty(t, bound.State().Pieces[0].FoundBy)
}

func TestSession_UnknownPieceIsRejected(t *testing.T) {
	const eventID = "evt-1"
	host, addr := startHost(t, eventID)
	before := host.State()

	err := host.Submit(encodePiece(t, eventID, "p9", ""))
	assert.ErrorIs(t, err, ErrUnknownPiece)
	assert.Equal(t, before, host.State())

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	sendRaw(t, conn, Join{Player: Player{ID: "rogue"}})
	piece := proof.NewPiece(eventID, "p9", "")
	sendRaw(t, conn, PieceFound{PieceID: "p9", PlayerID: "rogue", Signature: piece.Signature, EventID: eventID})

	rejection := readUntil(t, conn, TypeError).(ErrorMessage)
	assert.Equal(t, codeUnknownPiece, rejection.Code)
	assert.ErrorIs(t, rejection.Err(), ErrUnknownPiece)
	assert.Equal(t, before.Pieces, host.State().Pieces)
}

func TestSession_ConcurrentClaimsOfOnePieceHaveOneFinder(t *testing.T) {
	const eventID = "evt-1"
	host, addr := startHost(t, eventID)

	ids := []string{"guest-a", "guest-b"}
	conns := make([]net.Conn, len(ids))
	for i, id := range ids {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		sendRaw(t, conn, Join{Player: Player{ID: id, Name: id}})
		conns[i] = conn
	}
	require.Eventually(t, func() bool { return len(host.State().Players) == 3 }, waitTimeout, 10*time.Millisecond)

	p2 := proof.NewPiece(eventID, "p2", "")
	unknown := proof.NewPiece(eventID, "p9", "")
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(conn net.Conn, id string) {
			defer wg.Done()
			// Messages of one peer are handled in order, so the rejection
			// of the unknown piece marks the claim as processed.
			for _, msg := range []Message{
				PieceFound{PieceID: "p2", PlayerID: id, Signature: p2.Signature, EventID: eventID},
				PieceFound{PieceID: "p9", PlayerID: id, Signature: unknown.Signature, EventID: eventID},
			} {
				body, err := encodeMessage(msg)
				if assert.NoError(t, err) {
					assert.NoError(t, writeFrame(conn, body))
				}
			}
		}(conns[i], id)
	}
	wg.Wait()

	finder := ""
	for _, conn := range conns {
		updates := statesUntilError(t, conn)
		var seen []string
		for _, st := range updates {
			if by := st.Pieces[1].FoundBy; by != "" {
				seen = append(seen, by)
			}
		}
		require.Len(t, seen, 1, "one state change for the contested piece")
		if finder == "" {
			finder = seen[0]
		}
		assert.Equal(t, finder, seen[0])
	}

	assert.Contains(t, ids, finder)
	assert.Equal(t, finder, host.State().Pieces[1].FoundBy)
}

func TestSession_MalformedMessageDropsOnlyThatPeer(t *testing.T) {
	host, addr := startHost(t, "evt-1")

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, writeFrame(conn, []byte(`{"type":"WELCOME","payload":{}}`)))

	rejection := readUntil(t, conn, TypeError).(ErrorMessage)
	assert.Equal(t, codeBadMessage, rejection.Code)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitTimeout)))
	_, err = readFrame(conn)
	assert.Error(t, err, "host closes the offending connection")

	c := joinClient(t, addr, "guest")
	require.Eventually(t, func() bool { return len(c.State().Players) == 2 }, waitTimeout, 10*time.Millisecond)
	assert.Len(t, host.State().Players, 2)
}

func TestHost_BeginAndStop(t *testing.T) {
	h := NewHost(Player{ID: "host"}, WithLogger(zap.NewNop()))
	h.Stop()
	assert.ErrorIs(t, h.Begin(), ErrNotRunning)
	assert.ErrorIs(t, h.Submit("p1"), ErrNotRunning)

	_, err := h.Start(context.Background(), proof.CanonicalPieces, "127.0.0.1:0", "evt-1")
	require.NoError(t, err)
	require.NoError(t, h.Begin())
	assert.Equal(t, StatusPlaying, h.State().Status)
	assert.ErrorIs(t, h.Begin(), ErrNotInLobby)

	h.Stop()
	h.Stop()
	assert.Equal(t, State{}, h.State())
	assert.Nil(t, h.Addr())
}

func TestHost_SubscriptionSurvivesRestart(t *testing.T) {
	h := NewHost(Player{ID: "host"}, WithLogger(zap.NewNop()))
	sub, cancel := h.Subscribe()
	defer cancel()

	_, err := h.Start(context.Background(), proof.CanonicalPieces, "127.0.0.1:0", "evt-1")
	require.NoError(t, err)
	waitFor(t, sub, func(n Notification) bool { return n.State.EventID == "evt-1" })
	h.Stop()

	_, err = h.Start(context.Background(), proof.CanonicalPieces, "127.0.0.1:0", "evt-2")
	require.NoError(t, err)
	defer h.Stop()
	require.NoError(t, h.Begin())
	n := waitFor(t, sub, func(n Notification) bool { return n.State.Status == StatusPlaying })
	assert.Equal(t, "evt-2", n.State.EventID)
}

func TestClient_HostStopEndsConnection(t *testing.T) {
	host, addr := startHost(t, "evt-1")
	c := joinClient(t, addr, "guest")
	sub, cancel := c.Subscribe()
	defer cancel()

	require.Eventually(t, func() bool { return len(c.State().Players) == 2 }, waitTimeout, 10*time.Millisecond)
	host.Stop()

	n := waitFor(t, sub, func(n Notification) bool { return n.Kind == NotifyError })
	assert.ErrorIs(t, n.Err, domain.ErrSocket)
	select {
	case <-c.Done():
	case <-time.After(waitTimeout):
		t.Fatal("client connection still open")
	}

	c.Stop()
	c.Stop()
	assert.ErrorIs(t, c.Submit("p1"), ErrNotRunning)
}

func sendRaw(t *testing.T, conn net.Conn, msg Message) {
	t.Helper()
	body, err := encodeMessage(msg)
	require.NoError(t, err)
	require.NoError(t, writeFrame(conn, body))
}

// statesUntilError returns the states broadcast to conn before the next ERROR.
func statesUntilError(t *testing.T, conn net.Conn) []State {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitTimeout)))
	var states []State
	for {
		body, err := readFrame(conn)
		require.NoError(t, err)
		msg, err := decodeMessage(body)
		require.NoError(t, err)
		switch m := msg.(type) {
		case StateUpdate:
			states = append(states, m.State)
		case ErrorMessage:
			return states
		}
	}
}

func readUntil(t *testing.T, conn net.Conn, want MessageType) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitTimeout)))
	for {
		body, err := readFrame(conn)
		require.NoError(t, err)
		msg, err := decodeMessage(body)
		require.NoError(t, err)
		if msg.messageType() == want {
			return msg
		}
	}
}
