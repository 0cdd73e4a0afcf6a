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
)

// Client joins a hosted session and mirrors its state.
type Client struct {
	self   Player
	logger *zap.Logger
	obs    observers

	mu    sync.Mutex
	conn  net.Conn
	state State
	done  chan struct{}

	writeMu sync.Mutex
}

func NewClient(self Player, opts ...Option) *Client {
	o := buildOptions(opts)
	return &Client{
		self:   self,
		logger: o.logger.With(zap.String("coop_role", "client")),
	}
}

func (c *Client) Subscribe() (<-chan Notification, func()) {
	return c.obs.subscribe()
}

// Connect drops any previous connection, dials addr and sends JOIN.
func (c *Client) Connect(ctx context.Context, addr string) error {
	c.Stop()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", domain.ErrSocket, addr, err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.state = State{}
	c.done = done
	c.mu.Unlock()

	go c.readLoop(conn, done)

	if err := c.send(conn, Join{Player: c.self}); err != nil {
		c.Stop()
		return err
	}
	c.logger.Info("joined coop session", zap.String("addr", addr))
	return nil
}

// Stop closes the connection and resets the mirrored state. It is safe to
// call at any time.
func (c *Client) Stop() {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.state = State{}
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Warn("close connection", zap.Error(err))
	}
	<-done
}

// Done is closed when the current connection ends.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.done
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Submit validates a scanned piece against the mirrored state and sends it
// to the host. The host re-checks it and answers with ERROR on rejection.
func (c *Client) Submit(raw string) error {
	c.mu.Lock()
	conn, st := c.conn, c.state.clone()
	c.mu.Unlock()
	if conn == nil {
		return ErrNotRunning
	}

	scan, err := ValidateScan(st, raw)
	if err != nil {
		return err
	}
	if scan.BindsBadge {
		if err := c.send(conn, BindBadge{BadgeID: scan.BadgeID}); err != nil {
			return err
		}
	}
	return c.send(conn, scan.pieceFound(c.self.ID))
}

func (c *Client) send(conn net.Conn, msg Message) error {
	body, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSocket, err)
	}
	if err := writeFrame(conn, body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSocket, err)
	}
	return nil
}

func (c *Client) readLoop(conn net.Conn, done chan struct{}) {
	defer close(done)

	for {
		body, err := readFrame(conn)
		if err != nil {
			c.closed(conn, err)
			return
		}
		msg, err := decodeMessage(body)
		if err != nil {
			c.closed(conn, err)
			return
		}

		switch m := msg.(type) {
		case StateUpdate:
			if c.mirror(conn, m.State) {
				c.obs.publish(Notification{Kind: NotifyState, State: m.State.clone()})
			}
		case GameWin:
			if c.mirror(conn, m.State) {
				c.obs.publish(Notification{Kind: NotifyState, State: m.State.clone()})
				c.obs.publish(Notification{Kind: NotifyWin, State: m.State.clone()})
			}
		case ErrorMessage:
			c.logger.Info("host rejected request", zap.String("code", m.Code), zap.String("message", m.Message))
			c.obs.publish(Notification{Kind: NotifyError, State: c.State(), Err: m.Err()})
		default:
			c.closed(conn, fmt.Errorf("%w: unexpected %s from host", domain.ErrSocket, msg.messageType()))
			return
		}
	}
}

func (c *Client) mirror(conn net.Conn, st State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return false
	}
	c.state = st.clone()
	return true
}

func (c *Client) closed(conn net.Conn, cause error) {
	conn.Close()

	c.mu.Lock()
	current := c.conn == conn
	c.mu.Unlock()
	if !current || errors.Is(cause, net.ErrClosed) {
		return
	}

	if errors.Is(cause, io.EOF) {
		c.logger.Info("host closed connection")
	} else {
		c.logger.Warn("coop connection failed", zap.Error(cause))
	}
	if !errors.Is(cause, domain.ErrSocket) {
		cause = fmt.Errorf("%w: %v", domain.ErrSocket, cause)
	}
	c.obs.publish(Notification{Kind: NotifyError, Err: cause})
}
