// Package hardware drives external devices over a serial link.
// Without a connected device the controller degrades to tracking-only
// mode: commands are logged and dropped, never surfaced as errors.
package hardware

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Command is a single device instruction.
type Command struct {
	Device   string
	Action   string
	Duration int // milliseconds
	Params   string
}

// String renders the firmware wire format.
func (c Command) String() string {
	return fmt.Sprintf("CMD:%s:%s:%d:%s", c.Device, c.Action, c.Duration, c.Params)
}

// Well-known commands understood by the firmware.
var (
	pingCommand = Command{Device: "TEST", Action: "PING"}
	stopCommand = Command{Device: "ALL", Action: "STOP"}
)

// Status reports the controller's current state.
type Status struct {
	Connected       bool   `json:"connected"`
	TrackingOnly    bool   `json:"tracking_only"`
	LastError       string `json:"last_error,omitempty"`
	DroppedCommands int64  `json:"dropped_commands"`
}

// DefaultQueueSize is the command channel buffer size.
const DefaultQueueSize = 64

// Dispatch pacing: a stuck or slow port must not backlog unbounded.
var defaultRateLimit = rate.Limit(10) // commands per second

// Controller queues commands and drains them on a dedicated goroutine.
// SendCommand is fire-and-forget and safe from any goroutine.
type Controller struct {
	port      Port // nil in tracking-only mode
	limiter   *rate.Limiter
	logger    *slog.Logger
	queueSize int

	cmdCh  chan Command
	stopCh chan struct{}
	doneCh chan struct{}

	mu     sync.Mutex
	status Status

	stopOnce sync.Once
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithQueueSize sets the command channel buffer size.
func WithQueueSize(size int) ControllerOption {
	return func(c *Controller) {
		if size > 0 {
			c.queueSize = size
		}
	}
}

// WithRateLimit overrides dispatch pacing (commands per second).
func WithRateLimit(perSecond float64) ControllerOption {
	return func(c *Controller) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewController creates a controller over the given port.
// A nil port puts the controller in tracking-only mode.
// Call Run() to start the dispatch loop.
func NewController(port Port, opts ...ControllerOption) *Controller {
	c := &Controller{
		port:      port,
		limiter:   rate.NewLimiter(defaultRateLimit, 1),
		logger:    slog.Default(),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cmdCh = make(chan Command, c.queueSize)
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.status = Status{
		Connected:    port != nil,
		TrackingOnly: port == nil,
	}
	return c
}

// Ping verifies the device is responsive. The firmware answers the
// ping command with a line containing PONG or OK.
func (c *Controller) Ping() error {
	if c.port == nil {
		return fmt.Errorf("no device connected")
	}
	if err := c.write(pingCommand); err != nil {
		return err
	}
	line, err := bufio.NewReader(c.port).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read ping response: %w", err)
	}
	if !strings.Contains(line, "PONG") && !strings.Contains(line, "OK") {
		return fmt.Errorf("unexpected ping response: %q", strings.TrimSpace(line))
	}
	return nil
}

// SendCommand queues a command for dispatch.
// Non-blocking: if the queue is full, the command is dropped.
func (c *Controller) SendCommand(device, action string, duration int, params string) {
	cmd := Command{Device: device, Action: action, Duration: duration, Params: params}

	if c.port == nil {
		c.logger.Info("tracking only, device command skipped", "command", cmd.String())
		return
	}

	select {
	case c.cmdCh <- cmd:
	default:
		c.mu.Lock()
		c.status.DroppedCommands++
		c.mu.Unlock()
		c.logger.Warn("device queue full, command dropped", "command", cmd.String())
	}
}

// EmergencyStop writes the stop command immediately, bypassing the
// queue and the rate limiter.
func (c *Controller) EmergencyStop() {
	if c.port == nil {
		return
	}
	if err := c.write(stopCommand); err != nil {
		c.logger.Error("emergency stop failed", "error", err)
		return
	}
	c.logger.Warn("emergency stop sent")
}

// Run drains the command queue until Stop is called or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.doneCh)

	if c.port == nil {
		c.logger.Info("hardware controller running in tracking-only mode")
		select {
		case <-c.stopCh:
		case <-ctx.Done():
		}
		return
	}

	c.logger.Info("hardware dispatch loop started")
	for {
		select {
		case cmd := <-c.cmdCh:
			c.dispatch(ctx, cmd)

		case <-c.stopCh:
			c.EmergencyStop()
			return

		case <-ctx.Done():
			c.EmergencyStop()
			return
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, cmd Command) {
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}
	if err := c.write(cmd); err != nil {
		c.mu.Lock()
		c.status.Connected = false
		c.status.LastError = err.Error()
		c.mu.Unlock()
		c.logger.Error("device command failed", "command", cmd.String(), "error", err)
		return
	}

	c.mu.Lock()
	if !c.status.Connected {
		c.status.Connected = true
		c.status.LastError = ""
	}
	c.mu.Unlock()
	c.logger.Debug("device command sent", "command", cmd.String())
}

// write sends one framed command line. Serialized so EmergencyStop
// and the dispatch loop never interleave bytes.
func (c *Controller) write(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.port.Write([]byte(cmd.String() + "\n"))
	return err
}

// Stop stops the controller gracefully.
// The device receives a stop command before the loop exits.
// Safe to call multiple times.
func (c *Controller) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})

	select {
	case <-c.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop and releases the serial port.
func (c *Controller) Close(ctx context.Context) error {
	err := c.Stop(ctx)
	if c.port != nil {
		if cerr := c.port.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Status returns the current controller status.
// Safe for concurrent use.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// ClampDuration keeps requested durations inside what the firmware accepts.
func ClampDuration(ms int) int {
	const maxDuration = 60_000
	if ms < 0 {
		return 0
	}
	if ms > maxDuration {
		return maxDuration
	}
	return ms
}
