// Package client implements the autoref side of the game controller
// connection: registration, signed delivery of decisions with at-least-once
// semantics, and config deltas pushed by the controller.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/robocup-autoref/autoref/internal/queue"
	"github.com/robocup-autoref/autoref/pkg/core"
	"github.com/robocup-autoref/autoref/pkg/protocol"
)

var (
	// ErrRejected is returned when the controller refuses the registration.
	ErrRejected = errors.New("registration rejected")
	// ErrMalformedReply is returned for a reply without a next token.
	ErrMalformedReply = errors.New("malformed reply")
	// ErrClosed is returned once the client is stopped.
	ErrClosed = errors.New("client stopped")

	errReplyTimeout = errors.New("reply timeout")
)

// maxMalformedReplies is how many malformed replies in a row end a session.
const maxMalformedReplies = 3

// Config holds the connection settings.
type Config struct {
	Host       string `json:"host" mapstructure:"host"`
	Port       int    `json:"port" mapstructure:"port"`
	Identifier string `json:"identifier" mapstructure:"identifier"`
	// KeyFile is a PEM RSA private key. Records are sent unsigned without one.
	KeyFile string `json:"keyFile" mapstructure:"keyFile"`

	DialTimeout    time.Duration `json:"dialTimeout" mapstructure:"dialTimeout"`
	ReplyTimeout   time.Duration `json:"replyTimeout" mapstructure:"replyTimeout"`
	StopTimeout    time.Duration `json:"stopTimeout" mapstructure:"stopTimeout"`
	InitialBackoff time.Duration `json:"initialBackoff" mapstructure:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff" mapstructure:"maxBackoff"`
}

// DefaultConfig returns the settings for a game controller on localhost.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           10007,
		Identifier:     "autoref-go",
		DialTimeout:    2 * time.Second,
		ReplyTimeout:   2 * time.Second,
		StopTimeout:    time.Second,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// Reply is the controller's answer to one delivered decision.
type Reply struct {
	Command core.RefboxCommand
	Status  protocol.StatusCode
	Reason  string
}

// Client delivers decisions to the game controller. SendEvent may be called
// from any goroutine; delivery happens on the client's own writer.
type Client struct {
	cfg      Config
	logger   *slog.Logger
	signer   *Signer
	outgoing *queue.Queue[core.RefboxCommand]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	addr      string
	conn      net.Conn
	started   bool
	stopOnce  sync.Once
	onReply   []func(Reply)
	onConfig  []func(protocol.ConfigDelta)
	connected atomic.Bool

	// OTEL metrics
	sent       metric.Int64Counter
	rejected   metric.Int64Counter
	requeued   metric.Int64Counter
	reconnects metric.Int64Counter
}

// New creates a client. signer may be nil.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger *slog.Logger, cfg Config, signer *Signer) (*Client, error) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:      cfg,
		logger:   logger,
		signer:   signer,
		outgoing: queue.New[core.RefboxCommand](),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	m := meter()
	var err error
	for _, counter := range []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&c.sent, "client.records.sent", "Decisions acknowledged by the game controller"},
		{&c.rejected, "client.records.rejected", "Decisions rejected by the game controller"},
		{&c.requeued, "client.records.requeued", "Decisions put back for redelivery"},
		{&c.reconnects, "client.reconnects", "Connections lost and re-established"},
	} {
		*counter.dst, err = m.Int64Counter(counter.name, metric.WithDescription(counter.desc))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("creating %s counter: %w", counter.name, err)
		}
	}
	return c, nil
}

// OnReply registers fn for every reply. Observers run on the writer
// goroutine and must not block.
func (c *Client) OnReply(fn func(Reply)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReply = append(c.onReply, fn)
}

// OnConfig registers fn for config deltas pushed by the controller.
// Observers run on the reader goroutine.
func (c *Client) OnConfig(fn func(protocol.ConfigDelta)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConfig = append(c.onConfig, fn)
}

// Connected reports whether a registered session is up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Pending returns the number of decisions waiting for delivery.
func (c *Client) Pending() int {
	return c.outgoing.Len()
}

// SendEvent queues a decision. It is delivered in order once a session is
// up and redelivered after connection failures.
func (c *Client) SendEvent(cmd core.RefboxCommand) {
	c.outgoing.Push(cmd)
}

// Connect starts the connection loop and waits until the first registration
// succeeded or ctx is done. The loop keeps reconnecting until Stop.
func (c *Client) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return errors.New("client already connected")
	}
	c.started = true
	c.addr = net.JoinHostPort(host, strconv.Itoa(port))
	c.mu.Unlock()

	ready := make(chan struct{})
	go c.run(ready)

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for registration with %s: %w", c.addr, ctx.Err())
	case <-c.done:
		return ErrClosed
	}
}

// Stop ends the connection loop. It waits up to StopTimeout for the writer
// and then closes the socket. Undelivered decisions are dropped.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		started := c.started
		c.cancel()
		c.mu.Unlock()
		c.outgoing.Close()

		if started {
			select {
			case <-c.done:
			case <-time.After(c.cfg.StopTimeout):
				c.logger.Warn("client writer did not stop in time, closing connection")
			}
		}
		c.closeConn()
		if n := len(c.outgoing.GetAndEmpty()); n > 0 {
			c.logger.Warn("dropping undelivered decisions", "count", n)
		}
	})
}

type session struct {
	conn  net.Conn
	r     *bufio.Reader
	token string

	// awaiting is set while a delivered decision waits for its reply.
	awaiting atomic.Bool
}

func (c *Client) run(ready chan struct{}) {
	defer close(c.done)
	var readyOnce sync.Once
	for {
		sess, err := backoff.Retry(c.ctx, c.dial,
			backoff.WithBackOff(c.backOff()),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, next time.Duration) {
				c.logger.Warn("connecting to game controller failed", "addr", c.addr, "error", err, "retryIn", next)
			}),
		)
		if err != nil {
			return
		}
		c.setConn(sess.conn)
		c.connected.Store(true)
		c.logger.Info("registered with game controller", "addr", c.addr)
		readyOnce.Do(func() { close(ready) })

		err = c.serve(sess)
		c.connected.Store(false)
		c.closeConn()
		if c.ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
			return
		}
		c.reconnects.Add(context.Background(), 1)
		c.logger.Warn("game controller connection lost", "error", err)
	}
}

func (c *Client) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	return b
}

// dial connects and registers.
func (c *Client) dial() (*session, error) {
	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := d.DialContext(c.ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", c.addr, err)
	}
	r := bufio.NewReader(conn)
	token, err := c.handshake(conn, r)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &session{conn: conn, r: r, token: token}, nil
}

// handshake reads the initial token, sends the signed registration and
// returns the token for the first decision.
func (c *Client) handshake(conn net.Conn, r *bufio.Reader) (string, error) {
	_ = conn.SetDeadline(time.Now().Add(c.cfg.ReplyTimeout))
	defer conn.SetDeadline(time.Time{})

	hello, err := readReply(r)
	if err != nil {
		return "", fmt.Errorf("reading initial token: %w", err)
	}
	if hello.NextToken == "" {
		return "", fmt.Errorf("initial token: %w", ErrMalformedReply)
	}

	reg := &protocol.Registration{Identifier: c.cfg.Identifier}
	if err := c.signer.SignRegistration(reg, hello.NextToken); err != nil {
		return "", err
	}
	if err := protocol.WriteRecord(conn, reg.Marshal()); err != nil {
		return "", fmt.Errorf("sending registration: %w", err)
	}

	reply, err := readReply(r)
	if err != nil {
		return "", fmt.Errorf("reading registration reply: %w", err)
	}
	if reply.Status != protocol.StatusOK {
		return "", fmt.Errorf("%w: %s", ErrRejected, reply.Reason)
	}
	if reply.NextToken == "" {
		return "", fmt.Errorf("registration reply: %w", ErrMalformedReply)
	}
	return reply.NextToken, nil
}

// readReply reads records until one carries a reply.
func readReply(r *bufio.Reader) (*protocol.ControllerReply, error) {
	for {
		b, err := protocol.ReadRecord(r)
		if err != nil {
			return nil, err
		}
		msg, err := protocol.UnmarshalControllerToAutoRef(b)
		if err != nil {
			return nil, err
		}
		if msg.Reply != nil {
			return msg.Reply, nil
		}
	}
}

// serve runs the writer for one session until an I/O error or Stop. A read
// error cancels the session even while the writer waits for a decision.
func (c *Client) serve(sess *session) error {
	ctx, cancel := context.WithCancelCause(c.ctx)
	defer cancel(nil)
	replies := make(chan *protocol.ControllerReply, 1)
	go c.readLoop(sess, replies, cancel)

	token := sess.token
	strikes := 0
	for {
		cmd, err := c.outgoing.Take(ctx)
		if err != nil {
			return sessionErr(ctx, err)
		}
		next, err := c.deliver(ctx, sess, token, cmd, replies)
		if err == nil {
			token = next
			strikes = 0
			continue
		}
		c.outgoing.PushFront(cmd)
		c.requeued.Add(context.Background(), 1)
		if !errors.Is(err, ErrMalformedReply) {
			return err
		}
		strikes++
		c.logger.Warn("malformed reply, decision requeued", "command", cmd.String(), "strikes", strikes)
		if strikes >= maxMalformedReplies {
			return fmt.Errorf("%d replies in a row: %w", strikes, ErrMalformedReply)
		}
		select {
		case <-time.After(c.cfg.InitialBackoff):
		case <-ctx.Done():
			return sessionErr(ctx, ctx.Err())
		}
	}
}

// sessionErr prefers the read error that ended the session over the bare
// cancellation.
func sessionErr(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return fmt.Errorf("connection lost: %w", cause)
	}
	return err
}

// deliver sends one decision and waits for its reply. It returns the token
// for the next decision.
func (c *Client) deliver(ctx context.Context, sess *session, token string, cmd core.RefboxCommand, replies <-chan *protocol.ControllerReply) (string, error) {
	msg := protocol.FromCommand(cmd)
	if err := c.signer.SignMessage(msg, token); err != nil {
		return token, err
	}

	sess.awaiting.Store(true)
	defer sess.awaiting.Store(false)
	_ = sess.conn.SetWriteDeadline(time.Now().Add(c.cfg.ReplyTimeout))
	if err := protocol.WriteRecord(sess.conn, msg.Marshal()); err != nil {
		return token, fmt.Errorf("sending %s: %w", cmd, err)
	}

	timer := time.NewTimer(c.cfg.ReplyTimeout)
	defer timer.Stop()
	select {
	case r := <-replies:
		if r.NextToken == "" {
			return token, ErrMalformedReply
		}
		attrs := metric.WithAttributes(attribute.String("command", cmd.Command.String()))
		if r.Status == protocol.StatusOK {
			c.sent.Add(context.Background(), 1, attrs)
		} else {
			c.rejected.Add(context.Background(), 1, attrs)
			c.logger.Info("decision rejected", "command", cmd.String(), "reason", r.Reason)
		}
		c.notifyReply(Reply{Command: cmd, Status: r.Status, Reason: r.Reason})
		return r.NextToken, nil
	case <-timer.C:
		return token, errReplyTimeout
	case <-ctx.Done():
		return token, sessionErr(ctx, fmt.Errorf("waiting for reply: %w", ctx.Err()))
	}
}

// readLoop hands replies to the writer and cancels the session on the first
// read error. Replies arriving while no decision is outstanding are dropped.
func (c *Client) readLoop(sess *session, replies chan<- *protocol.ControllerReply, cancel context.CancelCauseFunc) {
	for {
		b, err := protocol.ReadRecord(sess.r)
		if err != nil {
			cancel(err)
			return
		}
		msg, err := protocol.UnmarshalControllerToAutoRef(b)
		if err != nil {
			c.logger.Warn("dropping undecodable record", "error", err)
			continue
		}
		if msg.ConfigDelta != nil {
			c.notifyConfig(*msg.ConfigDelta)
		}
		if msg.Reply == nil {
			continue
		}
		if !sess.awaiting.CompareAndSwap(true, false) {
			c.logger.Warn("dropping unexpected reply", "status", msg.Reply.Status.String())
			continue
		}
		replies <- msg.Reply
	}
}

func (c *Client) notifyReply(r Reply) {
	c.mu.Lock()
	observers := c.onReply
	c.mu.Unlock()
	for _, fn := range observers {
		fn(r)
	}
}

func (c *Client) notifyConfig(d protocol.ConfigDelta) {
	c.mu.Lock()
	observers := c.onConfig
	c.mu.Unlock()
	for _, fn := range observers {
		fn(d)
	}
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
