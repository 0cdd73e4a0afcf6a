// Package coop implements the cooperative LAN puzzle session. One device
// hosts the session and owns its state; the others join as clients and
// mirror whatever the host broadcasts.
package coop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eventpass/eventpass-api/internal/domain"
	"github.com/eventpass/eventpass-api/internal/proof"
)

const (
	writeTimeout = 5 * time.Second
	peerBuffer   = 32
)

type Option func(*options)

type options struct {
	logger *zap.Logger
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.L()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type Host struct {
	self   Player
	logger *zap.Logger
	obs    observers

	mu      sync.Mutex
	session *hostSession
}

type hostSession struct {
	ln     net.Listener
	events chan hostEvent
	quit   chan struct{}
	wg     sync.WaitGroup
}

func NewHost(self Player, opts ...Option) *Host {
	o := buildOptions(opts)
	return &Host{
		self:   self,
		logger: o.logger.With(zap.String("coop_role", "host")),
	}
}

// Subscribe registers a local observer. Subscriptions outlive Stop and Start.
func (h *Host) Subscribe() (<-chan Notification, func()) {
	return h.obs.subscribe()
}

// Start stops any running session, listens on bindAddr and opens a new
// session in the lobby.
func (h *Host) Start(ctx context.Context, pieceIDs []string, bindAddr, eventID string) (net.Addr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopLocked()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %v", domain.ErrSocket, bindAddr, err)
	}

	s := &hostSession{
		ln:     ln,
		events: make(chan hostEvent),
		quit:   make(chan struct{}),
	}
	loop := &hostLoop{
		host:    h,
		session: s,
		state:   newState(h.self, pieceIDs, eventID),
		peers:   make(map[*peer]struct{}),
	}

	s.wg.Add(2)
	go loop.run()
	go h.acceptLoop(s)
	h.session = s

	h.logger.Info("coop session started",
		zap.String("addr", ln.Addr().String()),
		zap.String("event_id", eventID),
	)
	return ln.Addr(), nil
}

// Stop closes the listener and every connection and forgets the session
// state. It is safe to call at any time.
func (h *Host) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
}

func (h *Host) stopLocked() {
	s := h.session
	if s == nil {
		return
	}
	h.session = nil

	close(s.quit)
	if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		h.logger.Warn("close listener", zap.Error(err))
	}
	s.wg.Wait()
	h.logger.Info("coop session stopped")
}

func (h *Host) current() (*hostSession, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return nil, ErrNotRunning
	}
	return h.session, nil
}

// Addr returns the listening address, or nil when no session runs.
func (h *Host) Addr() net.Addr {
	s, err := h.current()
	if err != nil {
		return nil
	}
	return s.ln.Addr()
}

// State returns a copy of the session state, or the zero State when no
// session runs.
func (h *Host) State() State {
	s, err := h.current()
	if err != nil {
		return State{}
	}
	st, err := ask(s, func(reply chan<- State) hostEvent { return snapshotRequest{reply: reply} })
	if err != nil {
		return State{}
	}
	return st
}

// Begin moves the session from the lobby to playing.
func (h *Host) Begin() error {
	s, err := h.current()
	if err != nil {
		return err
	}
	res, err := ask(s, func(reply chan<- error) hostEvent { return beginRequest{reply: reply} })
	if err != nil {
		return err
	}
	return res
}

// Submit validates a scanned piece and applies it as found by the host.
func (h *Host) Submit(raw string) error {
	s, err := h.current()
	if err != nil {
		return err
	}
	res, err := ask(s, func(reply chan<- error) hostEvent { return submitRequest{raw: raw, reply: reply} })
	if err != nil {
		return err
	}
	return res
}

func ask[T any](s *hostSession, build func(chan<- T) hostEvent) (T, error) {
	var zero T
	reply := make(chan T, 1)

	select {
	case s.events <- build(reply):
	case <-s.quit:
		return zero, ErrNotRunning
	}

	select {
	case v := <-reply:
		return v, nil
	case <-s.quit:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrNotRunning
		}
	}
}

func (s *hostSession) deliver(ev hostEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.quit:
		return false
	}
}

func (h *Host) acceptLoop(s *hostSession) {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-s.quit:
				return
			default:
			}
			h.logger.Warn("accept failed", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		p := &peer{conn: conn, send: make(chan []byte, peerBuffer)}
		if !s.deliver(peerConnected{peer: p}) {
			conn.Close()
			return
		}
		h.logger.Debug("peer connected", zap.String("remote", conn.RemoteAddr().String()))

		s.wg.Add(2)
		go h.writePump(s, p)
		go h.readPump(s, p)
	}
}

type peer struct {
	conn     net.Conn
	send     chan []byte
	playerID string
}

func (h *Host) writePump(s *hostSession, p *peer) {
	defer s.wg.Done()
	defer p.conn.Close()

	for body := range p.send {
		if err := p.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			h.logger.Warn("set write deadline", zap.Error(err))
			return
		}
		if err := writeFrame(p.conn, body); err != nil {
			h.logger.Warn("write to peer failed",
				zap.String("player_id", p.playerID),
				zap.Error(err),
			)
			return
		}
	}
}

func (h *Host) readPump(s *hostSession, p *peer) {
	defer s.wg.Done()

	for {
		body, err := readFrame(p.conn)
		if err != nil {
			s.deliver(peerLeft{peer: p, err: err})
			return
		}
		msg, err := decodeMessage(body)
		if err != nil {
			s.deliver(peerLeft{peer: p, err: err})
			return
		}
		if !s.deliver(peerMessage{peer: p, msg: msg}) {
			return
		}
	}
}

type hostEvent interface{}

type (
	peerConnected struct{ peer *peer }
	peerLeft      struct {
		peer *peer
		err  error
	}
	peerMessage struct {
		peer *peer
		msg  Message
	}
	submitRequest struct {
		raw   string
		reply chan<- error
	}
	beginRequest    struct{ reply chan<- error }
	snapshotRequest struct{ reply chan<- State }
)

// hostLoop is owned by a single goroutine. Every state mutation and every
// broadcast happens on it.
type hostLoop struct {
	host    *Host
	session *hostSession
	state   State
	peers   map[*peer]struct{}
}

func (l *hostLoop) run() {
	defer l.session.wg.Done()
	defer func() {
		for p := range l.peers {
			close(p.send)
			p.conn.Close()
		}
	}()

	l.host.obs.publish(Notification{Kind: NotifyState, State: l.state.clone()})

	for {
		select {
		case <-l.session.quit:
			return
		case ev := <-l.session.events:
			l.handle(ev)
		}
	}
}

func (l *hostLoop) handle(ev hostEvent) {
	switch ev := ev.(type) {
	case peerConnected:
		l.peers[ev.peer] = struct{}{}
	case peerLeft:
		l.dropPeer(ev.peer, ev.err)
	case peerMessage:
		if _, ok := l.peers[ev.peer]; ok {
			l.handleMessage(ev.peer, ev.msg)
		}
	case submitRequest:
		ev.reply <- l.submit(ev.raw)
	case beginRequest:
		ev.reply <- l.begin()
	case snapshotRequest:
		ev.reply <- l.state.clone()
	}
}

func (l *hostLoop) handleMessage(p *peer, msg Message) {
	switch m := msg.(type) {
	case Join:
		p.playerID = m.Player.ID
		if !l.state.HasPlayer(m.Player.ID) {
			l.state.Players = append(l.state.Players, m.Player)
		}
		l.broadcastState()
	case PieceFound:
		if err := l.applyPiece(m); err != nil {
			l.reject(p, err)
		}
	case BindBadge:
		if err := l.bindBadge(m.BadgeID); err != nil {
			l.reject(p, err)
		}
	case ErrorMessage:
		l.host.logger.Warn("peer reported error",
			zap.String("player_id", p.playerID),
			zap.String("code", m.Code),
			zap.String("message", m.Message),
		)
	default:
		l.dropPeer(p, fmt.Errorf("%w: unexpected %s from peer", domain.ErrSocket, msg.messageType()))
	}
}

func (l *hostLoop) submit(raw string) error {
	scan, err := ValidateScan(l.state, raw)
	if err != nil {
		return err
	}
	return l.applyPiece(scan.pieceFound(l.host.self.ID))
}

func (l *hostLoop) begin() error {
	if l.state.Status != StatusLobby {
		return ErrNotInLobby
	}
	l.state.Status = StatusPlaying
	l.broadcastState()
	return nil
}

func (l *hostLoop) applyPiece(m PieceFound) error {
	if l.state.Status == StatusWon {
		return ErrGameOver
	}
	if (m.EventID != "" || m.Signature != "") && proof.Sign(m.EventID, m.PieceID, m.BadgeID) != m.Signature {
		return ErrForgedPiece
	}
	if !l.state.hasPiece(m.PieceID) {
		return fmt.Errorf("%w: %q", ErrUnknownPiece, m.PieceID)
	}

	bind, err := l.state.checkBinding(m.EventID, m.BadgeID)
	if err != nil {
		return err
	}
	if bind {
		l.state.BadgeID = m.BadgeID
	}

	claimed := l.state.claim(m.PieceID, m.PlayerID, m.Signature)
	if !claimed && !bind {
		return nil
	}
	l.broadcastState()

	if claimed && l.state.AllFound() {
		l.state.Status = StatusWon
		won := l.state.clone()
		l.broadcast(GameWin{State: won})
		l.host.obs.publish(Notification{Kind: NotifyState, State: won})
		l.host.obs.publish(Notification{Kind: NotifyWin, State: won})
		l.host.logger.Info("coop game won", zap.String("event_id", won.EventID), zap.String("badge_id", won.BadgeID))
	}
	return nil
}

func (l *hostLoop) bindBadge(badgeID string) error {
	if l.state.Status == StatusWon {
		return ErrGameOver
	}
	switch l.state.BadgeID {
	case badgeID:
		return nil
	case "":
		l.state.BadgeID = badgeID
		l.broadcastState()
		return nil
	default:
		return fmt.Errorf("%w: session already bound to %q", domain.ErrMissionMismatch, l.state.BadgeID)
	}
}

func (l *hostLoop) broadcastState() {
	st := l.state.clone()
	l.broadcast(StateUpdate{State: st})
	l.host.obs.publish(Notification{Kind: NotifyState, State: st})
}

// broadcast is best effort. A peer whose queue is full is dropped.
func (l *hostLoop) broadcast(msg Message) {
	body, err := encodeMessage(msg)
	if err != nil {
		l.host.logger.Error("encode broadcast", zap.Error(err))
		return
	}
	for p := range l.peers {
		if p.playerID == "" {
			continue
		}
		if !p.enqueue(body) {
			l.dropPeer(p, fmt.Errorf("%w: peer queue full", domain.ErrSocket))
		}
	}
}

func (l *hostLoop) reject(p *peer, err error) {
	l.host.logger.Info("peer request rejected", zap.String("player_id", p.playerID), zap.Error(err))
	body, encErr := encodeMessage(errorMessageFor(err))
	if encErr != nil {
		return
	}
	if !p.enqueue(body) {
		l.dropPeer(p, fmt.Errorf("%w: peer queue full", domain.ErrSocket))
	}
}

// dropPeer removes p. Protocol errors are answered with an ERROR message
// which the write pump flushes before closing the connection.
func (l *hostLoop) dropPeer(p *peer, cause error) {
	if _, ok := l.peers[p]; !ok {
		return
	}
	delete(l.peers, p)

	switch {
	case errors.Is(cause, io.EOF), errors.Is(cause, net.ErrClosed):
		l.host.logger.Info("peer disconnected", zap.String("player_id", p.playerID))
	case errors.Is(cause, domain.ErrSocket):
		l.host.logger.Warn("peer dropped", zap.String("player_id", p.playerID), zap.Error(cause))
		if body, err := encodeMessage(errorMessageFor(cause)); err == nil {
			p.enqueue(body)
		}
	default:
		l.host.logger.Warn("peer connection failed", zap.String("player_id", p.playerID), zap.Error(cause))
	}
	close(p.send)
}

func (p *peer) enqueue(body []byte) bool {
	select {
	case p.send <- body:
		return true
	default:
		return false
	}
}
