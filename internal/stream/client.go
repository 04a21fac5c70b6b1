package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rayhanf/livetrack-companion/internal/normalize"
)

// Default buffer sizes for channels.
const (
	DefaultEventBufferSize = 64
	DefaultErrorBufferSize = 16
)

// Dial timeout bounds. Values outside the range are clamped.
const (
	MinDialTimeout     = 10 * time.Second
	MaxDialTimeout     = 60 * time.Second
	DefaultDialTimeout = 30 * time.Second
)

// Read/keepalive tuning for the relay connection.
const (
	pingInterval = 30 * time.Second
	pongWait     = 75 * time.Second
	writeWait    = 10 * time.Second
)

// WSSource implements Source using a websocket connection to a live relay.
// It reconnects with exponential backoff and surfaces connection state as
// synthetic connect/disconnect events on the event channel.
type WSSource struct {
	relayURL        string
	account         string
	dialTimeout     time.Duration
	dialer          *websocket.Dialer
	backoff         *BackoffCalculator
	logger          *slog.Logger
	eventBufferSize int
	errorBufferSize int
}

// WSOption configures WSSource.
type WSOption func(*WSSource)

// WithDialTimeout sets the websocket dial timeout.
// Values are clamped to [MinDialTimeout, MaxDialTimeout].
func WithDialTimeout(d time.Duration) WSOption {
	return func(s *WSSource) {
		if d < MinDialTimeout {
			d = MinDialTimeout
		}
		if d > MaxDialTimeout {
			d = MaxDialTimeout
		}
		s.dialTimeout = d
	}
}

// WithSourceLogger sets the logger for the source.
// If logger is nil, it is ignored and the default logger is retained.
func WithSourceLogger(logger *slog.Logger) WSOption {
	return func(s *WSSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDialer sets a custom websocket dialer. Useful for tests and for
// proxied environments.
func WithDialer(d *websocket.Dialer) WSOption {
	return func(s *WSSource) { s.dialer = d }
}

// WithBackoff sets a custom backoff calculator for reconnects.
func WithBackoff(b *BackoffCalculator) WSOption {
	return func(s *WSSource) {
		if b != nil {
			s.backoff = b
		}
	}
}

// WithEventBufferSize sets the event channel buffer size.
func WithEventBufferSize(size int) WSOption {
	return func(s *WSSource) { s.eventBufferSize = size }
}

// WithErrorBufferSize sets the error channel buffer size.
func WithErrorBufferSize(size int) WSOption {
	return func(s *WSSource) { s.errorBufferSize = size }
}

// NewWSSource creates a websocket source for the given relay URL and
// account username.
func NewWSSource(relayURL, account string, opts ...WSOption) *WSSource {
	s := &WSSource{
		relayURL:        relayURL,
		account:         account,
		dialTimeout:     DefaultDialTimeout,
		backoff:         NewBackoffCalculator(DefaultBackoffConfig),
		logger:          slog.Default(),
		eventBufferSize: DefaultEventBufferSize,
		errorBufferSize: DefaultErrorBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.eventBufferSize < 1 {
		s.eventBufferSize = 1
	}
	if s.errorBufferSize < 1 {
		s.errorBufferSize = 1
	}
	return s
}

// buildURL appends the account username to the relay URL as a query
// parameter so one relay can serve multiple trackers.
func (s *WSSource) buildURL() (string, error) {
	u, err := url.Parse(s.relayURL)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("unique_id", s.account)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Start connects to the relay and returns event/error channels.
// Both channels close when ctx is cancelled. Connection failures are
// reported on the error channel and retried with backoff; Start only
// returns an error for unrecoverable setup problems.
func (s *WSSource) Start(ctx context.Context) (<-chan normalize.RawEvent, <-chan error, error) {
	if s.logger == nil {
		s.logger = slog.Default()
	}

	target, err := s.buildURL()
	if err != nil {
		return nil, nil, err
	}

	eventCh := make(chan normalize.RawEvent, s.eventBufferSize)
	errCh := make(chan error, s.errorBufferSize)

	s.logger.Info("starting live feed client",
		"account", s.account,
		"dial_timeout", s.dialTimeout,
	)

	go s.run(ctx, target, eventCh, errCh)

	return eventCh, errCh, nil
}

// run is the reconnect loop. It dials, pumps messages until the
// connection drops, then sleeps per the backoff schedule and retries.
func (s *WSSource) run(ctx context.Context, target string, eventCh chan<- normalize.RawEvent, errCh chan<- error) {
	defer close(eventCh)
	defer close(errCh)

	var droppedErrors int64
	defer func() {
		if droppedErrors > 0 {
			s.logger.Warn("errors dropped due to full buffer", "count", droppedErrors)
		}
	}()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dial(ctx, target)
		if err != nil {
			s.reportError(ctx, errCh, fmt.Errorf("dial relay: %w", err), &droppedErrors)
			attempt++
			if !s.sleep(ctx, s.backoff.Calculate(attempt-1)) {
				return
			}
			continue
		}

		attempt = 0
		if !s.emit(ctx, eventCh, normalize.RawEvent{
			Type:   normalize.RawTypeConnect,
			Ts:     time.Now(),
			Fields: map[string]any{"account": s.account},
		}) {
			conn.Close()
			return
		}

		err = s.pump(ctx, conn, eventCh, errCh, &droppedErrors)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		reason := "connection closed"
		if err != nil {
			reason = err.Error()
			s.reportError(ctx, errCh, fmt.Errorf("read relay: %w", err), &droppedErrors)
		}
		if !s.emit(ctx, eventCh, normalize.RawEvent{
			Type:   normalize.RawTypeDisconnect,
			Ts:     time.Now(),
			Fields: map[string]any{"reason": reason},
		}) {
			return
		}

		attempt++
		s.logger.Info("reconnecting to relay", "attempt", attempt)
		if !s.sleep(ctx, s.backoff.Calculate(attempt-1)) {
			return
		}
	}
}

func (s *WSSource) dial(ctx context.Context, target string) (*websocket.Conn, error) {
	dialer := s.dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	dialCtx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, target, nil)
	return conn, err
}

// pump reads messages until the connection drops or ctx is cancelled.
// A background ticker sends pings; missing pongs trip the read deadline.
func (s *WSSource) pump(ctx context.Context, conn *websocket.Conn, eventCh chan<- normalize.RawEvent, errCh chan<- error, dropped *int64) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-pingDone:
				return
			case <-ctx.Done():
				conn.Close()
				return
			}
		}
	}()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}

		raw, err := normalize.DecodeRawEvent(msg, time.Now())
		if err != nil {
			s.reportError(ctx, errCh, &DecodeError{Payload: string(msg), Err: err}, dropped)
			continue
		}
		if !s.emit(ctx, eventCh, raw) {
			return nil
		}
	}
}

// emit sends an event, blocking until delivered or ctx is cancelled.
// Returns false when the source should stop.
func (s *WSSource) emit(ctx context.Context, eventCh chan<- normalize.RawEvent, raw normalize.RawEvent) bool {
	select {
	case eventCh <- raw:
		return true
	case <-ctx.Done():
		return false
	}
}

// reportError delivers a non-fatal error without ever blocking the
// read loop. Errors are dropped when the buffer is full.
func (s *WSSource) reportError(ctx context.Context, errCh chan<- error, err error, dropped *int64) {
	select {
	case errCh <- err:
	case <-ctx.Done():
	default:
		*dropped++
	}
}

func (s *WSSource) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
