package transport

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"invoker/internal/metrics"
)

// WorkerClaims is the JWT payload a worker presents to answer an
// AUTH_CHALLENGE, identifying itself to the manager.
type WorkerClaims struct {
	jwt.RegisteredClaims
	WorkerID string `json:"worker_id"`
}

// Client owns one websocket connection to the manager and speaks the
// TYPE/KEY line framing over it.
type Client struct {
	managerHost string
	authSecret  []byte // empty disables the auth handshake
	workerID    string
	logger      *zap.Logger

	limiter *rate.Limiter
	conn    *websocket.Conn
	token   uuid.UUID
}

// NewClient builds a Client targeting host:port. authSecret may be nil to
// skip the AUTH_CHALLENGE/AUTH_RESPONSE handshake entirely.
func NewClient(managerHost string, authSecret []byte, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		managerHost: managerHost,
		authSecret:  authSecret,
		workerID:    uuid.NewString(),
		logger:      logger,
		limiter:     rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

// Connect dials the manager, completes the AUTH_CHALLENGE handshake if
// authSecret is set, and sends this worker's TOKEN.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("transport: reconnect throttled: %w", err)
	}

	u := url.URL{Scheme: "ws", Host: c.managerHost, Path: "/worker"}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		metrics.Get().TransportReconnects.Inc()
		return fmt.Errorf("transport: dial %s: %w", c.managerHost, err)
	}
	c.conn = conn

	if len(c.authSecret) > 0 {
		if err := c.handshake(); err != nil {
			conn.Close()
			return err
		}
	}

	c.token = uuid.New()
	if err := c.send(Outbound{Type: "TOKEN", Token: c.token.String()}); err != nil {
		conn.Close()
		return fmt.Errorf("transport: send token: %w", err)
	}

	return nil
}

func (c *Client) handshake() error {
	msg, err := c.recvRaw()
	if err != nil {
		return fmt.Errorf("transport: read auth challenge: %w", err)
	}
	in, err := decodeInbound(decode(msg))
	if err != nil {
		return err
	}
	if in.Type != "AUTH_CHALLENGE" {
		return fmt.Errorf("transport: expected AUTH_CHALLENGE, got %s", in.Type)
	}

	claims := WorkerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.workerID,
			ID:        in.AuthChallenge,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		WorkerID: c.workerID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.authSecret)
	if err != nil {
		return fmt.Errorf("transport: sign auth response: %w", err)
	}
	if err := c.send(Outbound{Type: "AUTH_RESPONSE", AuthResponse: signed}); err != nil {
		return fmt.Errorf("transport: send auth response: %w", err)
	}

	msg, err = c.recvRaw()
	if err != nil {
		return fmt.Errorf("transport: read auth verdict: %w", err)
	}
	in, err = decodeInbound(decode(msg))
	if err != nil {
		return err
	}
	if in.Type != "AUTH_VERDICT" || !in.AuthOK {
		return fmt.Errorf("transport: auth rejected by manager")
	}
	return nil
}

// Send writes one Outbound message as a binary websocket frame.
func (c *Client) Send(m Outbound) error {
	return c.send(m)
}

func (c *Client) send(m Outbound) error {
	return c.conn.WriteMessage(websocket.BinaryMessage, encodeOutbound(m))
}

func (c *Client) recvRaw() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Recv blocks for the next inbound message.
func (c *Client) Recv() (Inbound, error) {
	raw, err := c.recvRaw()
	if err != nil {
		return Inbound{}, fmt.Errorf("transport: read: %w", err)
	}
	return decodeInbound(decode(raw))
}

// Close closes the underlying websocket connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
