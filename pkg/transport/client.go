// Package transport owns the MQTT session between the backend and the field
// devices: connection lifecycle, the ingestion subscription and synchronous
// publishing.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// State is the connection state of the Client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned by Publish when the live connection check fails.
	ErrNotConnected = errors.New("transport: not connected")
	errClosed       = errors.New("transport: client closed")
)

type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	ClientIDPrefix string
	SubscribeTopic string // subscribed on every successful (re)connect, empty to skip
	QoS            byte
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	MaxReconnects  int
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 1883
	}
	if c.ClientIDPrefix == "" {
		c.ClientIDPrefix = "hydro-monitor"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 4 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = 5
	}
	return c
}

// Broker returns the broker URL built from Host and Port.
func (c Config) Broker() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// MessageHandler receives every message delivered on the subscribed topic.
type MessageHandler func(topic string, payload []byte)

type Option func(*Client)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithClientFactory replaces mqtt.NewClient, mainly for tests.
func WithClientFactory(f func(*mqtt.ClientOptions) mqtt.Client) Option {
	return func(c *Client) { c.newClient = f }
}

// WithReconnectCounter counts every reconnect attempt.
func WithReconnectCounter(ctr prometheus.Counter) Option {
	return func(c *Client) { c.reconnects = ctr }
}

// Client is the process-wide MQTT session. It is created once in main and
// injected wherever publishing or connection state is needed.
type Client struct {
	cfg        Config
	clientID   string
	log        zerolog.Logger
	newClient  func(*mqtt.ClientOptions) mqtt.Client
	reconnects prometheus.Counter
	sleep      func(ctx context.Context, d time.Duration) error

	mu           sync.RWMutex
	state        State
	conn         mqtt.Client
	handler      MessageHandler
	baseCtx      context.Context
	closed       bool
	reconnecting bool
	cancelLoop   context.CancelFunc
	wg           sync.WaitGroup
}

func New(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:       cfg,
		clientID:  fmt.Sprintf("%s-%s", cfg.ClientIDPrefix, uuid.New().String()[:8]),
		log:       zerolog.Nop(),
		newClient: mqtt.NewClient,
		sleep:     sleepCtx,
		state:     StateDisconnected,
		baseCtx:   context.Background(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With().Str("component", "transport").Str("client_id", c.clientID).Logger()
	return c
}

func (c *Client) ClientID() string { return c.clientID }

// OnMessage registers the handler for the subscribed topic. Call before Connect.
func (c *Client) OnMessage(h MessageHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// State returns the cached state. It is advisory; use IsConnected before acting on it.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports the live socket state, not just the cached flag.
func (c *Client) IsConnected() bool {
	_, ok := c.liveConn()
	return ok
}

func (c *Client) liveConn() (mqtt.Client, bool) {
	c.mu.RLock()
	st, conn := c.state, c.conn
	c.mu.RUnlock()
	if st != StateConnected || conn == nil {
		return nil, false
	}
	return conn, conn.IsConnectionOpen()
}

// Connect performs one connection attempt. On failure the client moves to
// Disconnected, which starts automatic reconnection, and the error is returned
// for the caller to log.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting || c.reconnecting {
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	c.baseCtx = ctx
	c.mu.Unlock()

	if err := c.connectOnce(); err != nil {
		c.log.Warn().Err(err).Str("broker", c.cfg.Broker()).Msg("initial connect failed")
		c.startReconnect()
		return fmt.Errorf("transport: connect %s: %w", c.cfg.Broker(), err)
	}
	c.log.Info().Str("broker", c.cfg.Broker()).Msg("connected to MQTT broker")
	return nil
}

// Restart stops any running reconnect loop and connects again. It is the only
// way out of Disconnected once the reconnect cap has been reached.
func (c *Client) Restart(ctx context.Context) error {
	c.stopLoop()
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Disconnect(250)
		c.conn = nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()
	return c.Connect(ctx)
}

// Close disconnects and moves the client to Offline.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.state = StateOffline
	conn := c.conn
	c.conn = nil
	if c.cancelLoop != nil {
		c.cancelLoop()
	}
	c.mu.Unlock()

	c.wg.Wait()
	if conn != nil && conn.IsConnected() {
		conn.Disconnect(250)
		c.log.Info().Msg("MQTT connection closed")
	}
}

// Publish sends payload synchronously. It never queues: a down connection
// fails immediately with ErrNotConnected.
func (c *Client) Publish(topic string, payload []byte) error {
	conn, ok := c.liveConn()
	if !ok {
		return ErrNotConnected
	}
	token := conn.Publish(topic, c.cfg.QoS, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("transport: publish to %s: %w", topic, err)
	}
	return nil
}

func (c *Client) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.Broker())
	opts.SetUsername(c.cfg.User)
	opts.SetPassword(c.cfg.Password)
	opts.SetClientID(c.clientID)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	// reconnection is driven by reconnectLoop only
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.handleConnectionLost(err)
	})
	return opts
}

func (c *Client) connectOnce() error {
	if !c.transition(StateConnecting) {
		return errClosed
	}

	conn := c.newClient(c.options())
	token := conn.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		conn.Disconnect(0)
		c.transition(StateDisconnected)
		return fmt.Errorf("connect timed out after %s", c.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		c.transition(StateDisconnected)
		return err
	}
	if err := c.subscribe(conn); err != nil {
		conn.Disconnect(250)
		c.transition(StateDisconnected)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		conn.Disconnect(250)
		return errClosed
	}
	c.conn = conn
	c.state = StateConnected
	c.reconnecting = false
	return nil
}

func (c *Client) subscribe(conn mqtt.Client) error {
	topic := c.cfg.SubscribeTopic
	if topic == "" {
		return nil
	}
	token := conn.Subscribe(topic, c.cfg.QoS, func(_ mqtt.Client, m mqtt.Message) {
		c.dispatch(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		return fmt.Errorf("subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	c.log.Info().Str("topic", topic).Msg("subscribed")
	return nil
}

func (c *Client) dispatch(topic string, payload []byte) {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h == nil {
		c.log.Warn().Str("topic", topic).Msg("no handler registered, dropping message")
		return
	}
	h(topic, payload)
}

func (c *Client) handleConnectionLost(err error) {
	c.log.Warn().Err(err).Msg("MQTT connection lost")
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	c.startReconnect()
}

// transition sets the cached state unless the client was closed.
func (c *Client) transition(s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.state = s
	return true
}

func (c *Client) startReconnect() {
	c.mu.Lock()
	if c.closed || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.reconnecting = true
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancelLoop = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer cancel()
		if !c.reconnectLoop(ctx) {
			c.mu.Lock()
			c.reconnecting = false
			c.mu.Unlock()
		}
	}()
}

func (c *Client) stopLoop() {
	c.mu.Lock()
	if c.cancelLoop != nil {
		c.cancelLoop()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// reconnectLoop retries with a fixed delay, at most MaxReconnects times.
// After the cap the client stays Disconnected until Restart. It reports
// whether the connection was re-established.
func (c *Client) reconnectLoop(ctx context.Context) bool {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.ReconnectDelay), uint64(c.cfg.MaxReconnects))
	for attempt := 1; ; attempt++ {
		delay := b.NextBackOff()
		if delay == backoff.Stop {
			c.transition(StateDisconnected)
			c.log.Error().Int("attempts", attempt-1).Msg("reconnect attempts exhausted, staying disconnected until restart")
			return false
		}
		if err := c.sleep(ctx, delay); err != nil {
			return false
		}
		if c.reconnects != nil {
			c.reconnects.Inc()
		}
		err := c.connectOnce()
		if err == nil {
			c.log.Info().Int("attempt", attempt).Msg("reconnected to MQTT broker")
			return true
		}
		if errors.Is(err, errClosed) {
			return false
		}
		c.log.Warn().Err(err).Int("attempt", attempt).Int("max", c.cfg.MaxReconnects).Msg("reconnect failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
