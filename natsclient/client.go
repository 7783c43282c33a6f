package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/schoolcache/errors"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error messages
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
)

// Client manages a NATS connection with a circuit breaker.
type Client struct {
	url    string
	status atomic.Value // ConnectionStatus
	logger *slog.Logger

	conn *nats.Conn
	js   jetstream.JetStream

	failures         atomic.Int32
	circuitThreshold int32

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration

	username   string
	password   string
	token      string
	clientName string

	listenersMu sync.RWMutex
	listeners   map[int]func(bool)
	nextID      int

	mu     sync.RWMutex
	closed atomic.Bool
}

// NewClient creates a client; it does not connect.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           slog.Default().With("component", "natsclient"),
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		timeout:          5 * time.Second,
		circuitThreshold: 5,
		listeners:        make(map[int]func(bool)),
	}
	c.status.Store(StatusDisconnected)

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}
	return c, nil
}

// URL returns the NATS server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	return c.status.Load().(ConnectionStatus)
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(s)
}

// IsHealthy reports whether the client is connected
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the consecutive failure count
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

// GetConnection returns the underlying connection, nil before Connect.
func (c *Client) GetConnection() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) recordFailure() {
	if c.failures.Add(1) >= c.circuitThreshold {
		if c.Status() != StatusCircuitOpen {
			c.logger.Warn("circuit breaker opened", "failures", c.failures.Load())
		}
		c.setStatus(StatusCircuitOpen)
	}
}

// ResetCircuit clears the failure count and closes an open circuit.
func (c *Client) ResetCircuit() {
	c.failures.Store(0)
	if c.Status() == StatusCircuitOpen {
		c.setStatus(StatusDisconnected)
	}
}

// OnHealthChange registers fn to be called with true on connect/reconnect and
// false on disconnect/close. It returns a function that removes fn.
func (c *Client) OnHealthChange(fn func(bool)) func() {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Client) notifyHealth(healthy bool) {
	c.listenersMu.RLock()
	fns := make([]func(bool), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(healthy)
	}
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setStatus(StatusReconnecting)
			c.logger.Warn("NATS disconnected", "error", err)
			c.notifyHealth(false)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.setStatus(StatusConnected)
			c.failures.Store(0)
			c.logger.Info("NATS reconnected")
			c.notifyHealth(true)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.setStatus(StatusDisconnected)
			c.notifyHealth(false)
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			c.logger.Error("NATS error", "error", err)
		}),
	}

	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	return opts
}

// Connect dials the server and initialises JetStream.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("connecting to NATS", "url", c.url)

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.connectionOptions()...)
		done <- result{conn, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		c.recordFailure()
		if c.Status() != StatusCircuitOpen {
			c.setStatus(StatusDisconnected)
		}
		// drain the dial in the background so the connection is not leaked
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	if res.err != nil {
		c.recordFailure()
		if c.Status() == StatusCircuitOpen {
			return ErrCircuitOpen
		}
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(res.err, "Client", "Connect", "establish connection")
	}

	js, err := jetstream.New(res.conn)
	if err != nil {
		res.conn.Close()
		c.setStatus(StatusDisconnected)
		return errors.WrapFatal(err, "Client", "Connect", "initialise JetStream")
	}

	c.mu.Lock()
	c.conn = res.conn
	c.js = js
	c.mu.Unlock()

	c.setStatus(StatusConnected)
	c.failures.Store(0)
	c.logger.Info("connected to NATS", "url", c.url)
	c.notifyHealth(true)
	return nil
}

// WaitForConnection blocks until the client is connected or ctx ends.
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.IsHealthy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "Client", "WaitForConnection", "wait for connection")
		case <-ticker.C:
		}
	}
}

// Close drains and closes the connection. Safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.js = nil
	c.mu.Unlock()

	if conn == nil {
		c.setStatus(StatusDisconnected)
		return nil
	}

	drained := make(chan error, 1)
	go func() { drained <- conn.Drain() }()

	select {
	case err := <-drained:
		if err != nil {
			conn.Close()
			return errors.WrapTransient(err, "Client", "Close", "drain connection")
		}
	case <-ctx.Done():
		conn.Close()
	}
	c.setStatus(StatusDisconnected)
	return nil
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, ErrNotConnected
	}
	return c.js, nil
}

func (c *Client) ready() (jetstream.JetStream, error) {
	switch c.Status() {
	case StatusCircuitOpen:
		return nil, ErrCircuitOpen
	case StatusConnected:
		return c.JetStream()
	default:
		return nil, ErrNotConnected
	}
}

// CreateKeyValueBucket returns the named bucket, creating it when missing.
func (c *Client) CreateKeyValueBucket(ctx context.Context, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	js, err := c.ready()
	if err != nil {
		return nil, err
	}

	if bucket, err := js.KeyValue(ctx, cfg.Bucket); err == nil {
		c.failures.Store(0)
		return bucket, nil
	}

	bucket, err := js.CreateKeyValue(ctx, cfg)
	if err != nil {
		if !isAlreadyExistsError(err) {
			c.recordFailure()
			return nil, errors.WrapTransient(err, "Client", "CreateKeyValueBucket",
				fmt.Sprintf("create bucket %s", cfg.Bucket))
		}
		// lost a creation race
		bucket, err = js.KeyValue(ctx, cfg.Bucket)
		if err != nil {
			c.recordFailure()
			return nil, errors.WrapTransient(err, "Client", "CreateKeyValueBucket",
				fmt.Sprintf("access existing bucket %s", cfg.Bucket))
		}
	} else {
		c.logger.Info("created KV bucket", "bucket", cfg.Bucket)
	}

	c.failures.Store(0)
	return bucket, nil
}

// GetKeyValueBucket gets an existing bucket.
func (c *Client) GetKeyValueBucket(ctx context.Context, name string) (jetstream.KeyValue, error) {
	js, err := c.ready()
	if err != nil {
		return nil, err
	}

	bucket, err := js.KeyValue(ctx, name)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrBucketNotFound) {
			return nil, errors.WrapInvalid(errors.ErrBucketNotFound, "Client", "GetKeyValueBucket", name)
		}
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "GetKeyValueBucket", name)
	}
	c.failures.Store(0)
	return bucket, nil
}

// DeleteKeyValueBucket deletes a bucket.
func (c *Client) DeleteKeyValueBucket(ctx context.Context, name string) error {
	js, err := c.ready()
	if err != nil {
		return err
	}
	if err := js.DeleteKeyValue(ctx, name); err != nil {
		c.recordFailure()
		return errors.WrapTransient(err, "Client", "DeleteKeyValueBucket", name)
	}
	return nil
}

func isAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, jetstream.ErrBucketExists) || stderrors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "already in use") || strings.Contains(msg, "already exists")
}
