// Package ingest wires the live feed into the aggregator, trigger
// engine, store, and event hub.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rayhanf/livetrack-companion/internal/event"
	"github.com/rayhanf/livetrack-companion/internal/normalize"
	"github.com/rayhanf/livetrack-companion/internal/session"
	"github.com/rayhanf/livetrack-companion/internal/store"
	"github.com/rayhanf/livetrack-companion/internal/stream"
	"github.com/rayhanf/livetrack-companion/internal/trigger"
)

// DefaultActionDuration is the device actuation time used when a rule
// does not specify one, in milliseconds.
const DefaultActionDuration = 1000

// SessionStore defines the store operations needed by the Pipeline.
type SessionStore interface {
	CreateSession(ctx context.Context, accountID int64, startedAt time.Time) (store.Session, error)
	EndSession(ctx context.Context, sessionID int64, summary session.Summary) error
	InsertGiftLog(ctx context.Context, g *store.GiftLog) error
	InsertCommentLog(ctx context.Context, c *store.CommentLog) error
	InsertDecodeFailure(ctx context.Context, payload, errorMsg string) (bool, error)
	ListKeywordRules(ctx context.Context, accountID int64) ([]trigger.KeywordRule, error)
	ListGiftActions(ctx context.Context, accountID int64) ([]trigger.GiftAction, error)
}

// Publisher fans events out to live subscribers.
type Publisher interface {
	Publish(e *event.LiveEvent)
}

// Dispatcher sends device commands. Implementations must not block.
type Dispatcher interface {
	SendCommand(device, action string, duration int, params string)
}

// Valuer estimates the coin value of a single gift send.
type Valuer interface {
	Estimate(giftName string, diamondCount int) float64
}

// Clock provides time for deterministic testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Pipeline runs the delivery loop for one account: raw events in,
// normalized events folded into the aggregator, matched triggers
// dispatched, logs written asynchronously.
type Pipeline struct {
	source     stream.Source
	normalizer *normalize.Normalizer
	agg        *session.Aggregator
	engine     *trigger.Engine
	store      SessionStore
	hub        Publisher
	hardware   Dispatcher
	valuer     Valuer

	account   string
	accountID int64

	// mu guards the rule sets and session row ID, which the API
	// goroutines read while the run loop updates them.
	mu          sync.RWMutex
	rules       []trigger.KeywordRule
	giftActions []trigger.GiftAction
	sessionID   int64 // current store row, 0 when inactive

	writeCh chan func(ctx context.Context)

	logger *slog.Logger
	clock  Clock
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for the Pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock sets the clock for the Pipeline (for testing).
func WithClock(clock Clock) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// WithHub sets the live event publisher.
func WithHub(hub Publisher) Option {
	return func(p *Pipeline) { p.hub = hub }
}

// WithHardware sets the device dispatcher.
func WithHardware(hw Dispatcher) Option {
	return func(p *Pipeline) { p.hardware = hw }
}

// writeBufferSize bounds pending async store writes.
const writeBufferSize = 256

// New creates a Pipeline for one account.
func New(account string, accountID int64, src stream.Source, norm *normalize.Normalizer,
	agg *session.Aggregator, engine *trigger.Engine, st SessionStore, valuer Valuer, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:     src,
		normalizer: norm,
		agg:        agg,
		engine:     engine,
		store:      st,
		valuer:     valuer,
		account:    account,
		accountID:  accountID,
		writeCh:    make(chan func(ctx context.Context), writeBufferSize),
		logger:     slog.Default(),
		clock:      realClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ReloadRules replaces the trigger rule sets from the store.
// Called before Run and whenever rules change through the API.
func (p *Pipeline) ReloadRules(ctx context.Context) error {
	rules, err := p.store.ListKeywordRules(ctx, p.accountID)
	if err != nil {
		return err
	}
	actions, err := p.store.ListGiftActions(ctx, p.accountID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.rules = rules
	p.giftActions = actions
	p.mu.Unlock()
	p.logger.Info("trigger rules loaded",
		"keyword_rules", len(rules),
		"gift_actions", len(actions),
	)
	return nil
}

// Run starts the delivery loop. Blocks until ctx is cancelled or the
// source closes. Returns ctx.Err() on cancellation, nil on clean
// source shutdown.
func (p *Pipeline) Run(ctx context.Context) error {
	events, errs, err := p.source.Start(ctx)
	if err != nil {
		return err
	}
	if events == nil || errs == nil {
		return errors.New("source returned nil channel")
	}

	writerDone := make(chan struct{})
	go p.runWriter(ctx, writerDone)

	p.logger.Info("pipeline started", "account", p.account)
	defer p.logger.Info("pipeline stopped", "account", p.account)

	// Nil-channel pattern: nil each channel when closed, exit when both are nil.
	eventsCh := events
	errsCh := errs

	defer func() {
		p.closeSession(context.Background())
		close(p.writeCh)
		<-writerDone
	}()

	for eventsCh != nil || errsCh != nil {
		select {
		case raw, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			p.handleRaw(ctx, raw)
		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			p.handleError(err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// handleRaw processes a single raw event. A bad message never stops
// the loop.
func (p *Pipeline) handleRaw(ctx context.Context, raw normalize.RawEvent) {
	e, ok := p.normalizer.Normalize(raw)
	if !ok || e == nil {
		return
	}

	if e.Kind == event.KindConnectionStatus {
		p.handleConnection(ctx, e)
	}

	p.agg.Apply(e)

	switch e.Kind {
	case event.KindComment:
		p.handleComment(e)
	case event.KindGift:
		p.handleGift(e)
	}

	if p.hub != nil {
		p.hub.Publish(e)
	}
}

// handleConnection tracks the session lifecycle: a session runs while
// the stream is connected and closes when it drops or the live ends.
func (p *Pipeline) handleConnection(ctx context.Context, e *event.LiveEvent) {
	if e.Status == nil {
		return
	}

	if e.Status.Connected {
		if p.agg.Active() {
			return
		}
		sess, err := p.store.CreateSession(ctx, p.accountID, p.clock.Now())
		if err != nil {
			p.logger.Error("failed to create session row", "error", err)
			return
		}
		if err := p.agg.Start(p.account, sess.ExternalID); err != nil {
			p.logger.Error("failed to start session", "error", err)
			return
		}
		p.mu.Lock()
		p.sessionID = sess.ID
		p.mu.Unlock()
		p.engine.ResetCooldowns(p.accountID)
		return
	}

	p.closeSession(ctx)
}

// closeSession finalizes the active session, if any. The store write
// goes through the writer queue so it lands after pending log rows.
func (p *Pipeline) closeSession(ctx context.Context) {
	if !p.agg.Active() {
		return
	}
	summary, err := p.agg.End()
	if err != nil {
		return
	}
	p.mu.Lock()
	sessionID := p.sessionID
	p.sessionID = 0
	p.mu.Unlock()

	p.enqueueWrite(func(ctx context.Context) {
		if err := p.store.EndSession(ctx, sessionID, summary); err != nil {
			p.logger.Error("failed to finalize session row",
				"session_id", sessionID,
				"error", err,
			)
		}
	})
}

func (p *Pipeline) handleComment(e *event.LiveEvent) {
	if e.Comment == nil {
		return
	}

	p.mu.RLock()
	rules := p.rules
	sessionID := p.sessionID
	p.mu.RUnlock()

	var keyword, actionType string
	if action := p.engine.EvaluateComment(e, rules); action != nil {
		keyword = action.Matched
		actionType = action.ActionType
		p.dispatch(action)
	}

	if sessionID == 0 {
		return
	}
	log := &store.CommentLog{
		SessionID: sessionID,
		Ts:        e.Ts,
		Username:  e.DisplayName(),
		Comment:   e.Comment.Text,
		Keyword:   keyword,
		Action:    actionType,
	}
	p.enqueueWrite(func(ctx context.Context) {
		if err := p.store.InsertCommentLog(ctx, log); err != nil {
			p.logger.Error("failed to insert comment log", "error", err)
		}
	})
}

func (p *Pipeline) handleGift(e *event.LiveEvent) {
	if e.Gift == nil {
		return
	}

	p.mu.RLock()
	actions := p.giftActions
	sessionID := p.sessionID
	p.mu.RUnlock()

	var actionType string
	if action := p.engine.EvaluateGift(e, actions); action != nil {
		actionType = action.ActionType
		p.dispatch(action)
	}

	if sessionID == 0 {
		return
	}
	log := &store.GiftLog{
		SessionID:   sessionID,
		Ts:          e.Ts,
		Username:    e.DisplayName(),
		GiftName:    e.Gift.Name,
		GiftValue:   p.valuer.Estimate(e.Gift.Name, e.Gift.DiamondCount),
		RepeatCount: e.Gift.RepeatCount,
		Action:      actionType,
	}
	p.enqueueWrite(func(ctx context.Context) {
		if err := p.store.InsertGiftLog(ctx, log); err != nil {
			p.logger.Error("failed to insert gift log", "error", err)
		}
	})
}

// dispatch forwards a matched action to the hardware controller.
func (p *Pipeline) dispatch(action *trigger.ActionRequest) {
	if p.hardware == nil {
		return
	}
	p.hardware.SendCommand(action.DeviceTarget, action.ActionType, DefaultActionDuration, "")
}

// handleError processes an error from the source.
func (p *Pipeline) handleError(err error) {
	var decodeErr *stream.DecodeError
	if errors.As(err, &decodeErr) {
		msg := ""
		if decodeErr.Err != nil {
			msg = decodeErr.Err.Error()
		}
		payload := decodeErr.Payload
		p.enqueueWrite(func(ctx context.Context) {
			if _, err := p.store.InsertDecodeFailure(ctx, payload, msg); err != nil {
				p.logger.Error("failed to record decode failure", "error", err)
			}
		})
		return
	}

	p.logger.Warn("source error", "error", err)
}

// enqueueWrite hands a store write to the writer goroutine.
// Non-blocking: delivery must never stall on database latency.
func (p *Pipeline) enqueueWrite(op func(ctx context.Context)) {
	select {
	case p.writeCh <- op:
	default:
		p.logger.Warn("store write queue full, entry dropped")
	}
}

// runWriter drains queued store writes. After ctx is cancelled it
// keeps draining with a short grace period so buffered rows land.
func (p *Pipeline) runWriter(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for op := range p.writeCh {
		writeCtx := ctx
		if ctx.Err() != nil {
			var cancel context.CancelFunc
			writeCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
			op(writeCtx)
			cancel()
			continue
		}
		op(writeCtx)
	}
}

// SessionID returns the current store session row ID, 0 when inactive.
func (p *Pipeline) SessionID() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID
}
