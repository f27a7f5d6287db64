package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tariel-x/gopresence/internal/metrics"
	"github.com/tariel-x/gopresence/internal/models"
)

const defaultWriteTimeout = 10 * time.Second

// State is the reconciliation state of a controller.
type State int

const (
	// Synced displays the remote value.
	Synced State = iota
	// PendingWrite displays the user's intent until a remote observation confirms it.
	PendingWrite
)

func (s State) String() string {
	switch s {
	case Synced:
		return "synced"
	case PendingWrite:
		return "pending_write"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Controller reconciles one participant's optimistic availability intent with
// the remote record. One controller serves exactly one (session, participant).
//
// Events (ObserveRemote, UserToggle) are applied one at a time in arrival order.
// Writes are dispatched without waiting and reach the writer in the order the
// toggles were made; their outcome is only ever learned through a later
// ObserveRemote.
type Controller struct {
	mu sync.Mutex

	sessionID     string
	participantID string
	writer        AvailabilityWriter

	remote  models.AvailabilityRecord
	pending *bool

	view         View
	emitted      bool
	observations uint64

	sub    Subscription
	closed bool

	// Writes leave in toggle order through a single drainer.
	queued  []bool
	writing bool

	onChange     func(View)
	dispatch     func(func())
	writeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOnChange registers the rendering boundary. fn is called with the controller
// lock held, after every event that changed the derived view; it must not call
// back into the controller.
func WithOnChange(fn func(View)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithDispatcher replaces the goroutine that drains queued writes.
func WithDispatcher(dispatch func(func())) Option {
	return func(c *Controller) {
		if dispatch != nil {
			c.dispatch = dispatch
		}
	}
}

// New builds a Synced controller from an already known record. It holds no
// subscription; feed it with ObserveRemote.
func New(record models.AvailabilityRecord, writer AvailabilityWriter, opts ...Option) *Controller {
	c := &Controller{
		sessionID:     record.SessionID,
		participantID: record.ParticipantID,
		writer:        writer,
		remote:        record,
		dispatch:      func(fn func()) { go fn() },
		writeTimeout:  defaultWriteTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("session_id", c.sessionID, "participant_id", c.participantID)
	c.view = deriveView(c.displayedLocked(), c.remote.ConversationState)
	c.metrics.ControllerOpened()
	return c
}

// Open hydrates a controller from remote and subscribes it to record changes.
// The subscription is released by Close, or right here if Open fails after
// acquiring it.
func Open(ctx context.Context, remote Remote, sessionID, participantID string, opts ...Option) (*Controller, error) {
	record, err := remote.ReadRecord(ctx, sessionID, participantID)
	if err != nil {
		return nil, fmt.Errorf("read availability record: %w", err)
	}

	c := New(record, remote, opts...)

	sub, err := remote.SubscribeRecord(sessionID, participantID, c.ObserveRemote)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("subscribe to availability record: %w", err)
	}
	c.mu.Lock()
	c.sub = sub
	seen := c.observations
	c.mu.Unlock()

	// Changes between the first read and the subscription would otherwise be lost.
	record, err = remote.ReadRecord(ctx, sessionID, participantID)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("re-read availability record: %w", err)
	}

	c.mu.Lock()
	if c.observations == seen {
		c.observeLocked(record)
	}
	c.emitLocked()
	c.mu.Unlock()

	return c, nil
}

// ObserveRemote applies a remote record. A pending intent is resolved only by a
// record carrying the same value; any other value is treated as stale.
func (c *Controller) ObserveRemote(record models.AvailabilityRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.observations++
	c.observeLocked(record)
	c.emitLocked()
}

func (c *Controller) observeLocked(record models.AvailabilityRecord) {
	c.remote = record
	if c.pending != nil {
		if *c.pending == record.IsAvailableForCall {
			c.pending = nil
			c.metrics.RecordConfirmation()
			c.logger.Debug("pending availability confirmed", "value", record.IsAvailableForCall)
		} else {
			c.metrics.RecordStaleObservation()
			c.logger.Debug("remote availability ignored while write pending",
				"remote", record.IsAvailableForCall, "pending", *c.pending)
		}
	}
}

// UserToggle applies a user's intent. It reports false when the gate locks the
// control or the intent changes nothing; neither case issues a write.
func (c *Controller) UserToggle(requested bool) bool {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return false
	}

	if !CanToggle(c.remote.ConversationState) {
		c.mu.Unlock()
		c.metrics.RecordToggle(metrics.ToggleDenied)
		c.logger.Debug("availability toggle denied during conversation", "requested", requested)
		return false
	}

	if c.pending == nil && c.remote.IsAvailableForCall == requested {
		c.mu.Unlock()
		c.metrics.RecordToggle(metrics.ToggleUnchanged)
		return false
	}

	value := requested
	c.pending = &value
	c.emitLocked()
	c.queued = append(c.queued, requested)
	start := !c.writing
	c.writing = true
	c.mu.Unlock()

	c.metrics.RecordToggle(metrics.ToggleAccepted)
	if start {
		c.dispatch(c.drainWrites)
	}
	return true
}

// drainWrites sends queued writes one at a time until the queue is empty. A
// toggle made while a write is in flight is queued behind it.
func (c *Controller) drainWrites() {
	for {
		c.mu.Lock()
		if len(c.queued) == 0 {
			c.writing = false
			c.mu.Unlock()
			return
		}
		value := c.queued[0]
		c.queued = c.queued[1:]
		c.mu.Unlock()

		c.write(value)
	}
}

func (c *Controller) write(value bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()

	err := c.writer.WriteAvailability(ctx, c.sessionID, c.participantID, value)
	c.metrics.RecordWrite(err)
	if err != nil {
		c.logger.Warn("availability write failed", "value", value, "error", err)
	}
}

// View returns the current derived view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return PendingWrite
	}
	return Synced
}

// Pending returns the in-flight intent, if any.
func (c *Controller) Pending() (value bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return false, false
	}
	return *c.pending, true
}

// Intent is the availability the user asked for last, regardless of any
// conversation currently masking it.
func (c *Controller) Intent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intentLocked()
}

// Record returns the last observed remote record.
func (c *Controller) Record() models.AvailabilityRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

// Close releases the subscription. Writes already dispatched still run. Close is
// idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	c.metrics.ControllerClosed()
}

func (c *Controller) intentLocked() bool {
	if c.pending != nil {
		return *c.pending
	}
	return c.remote.IsAvailableForCall
}

func (c *Controller) displayedLocked() bool {
	if c.remote.ConversationState == models.ConversationActive {
		return false
	}
	return c.intentLocked()
}

func (c *Controller) emitLocked() {
	view := deriveView(c.displayedLocked(), c.remote.ConversationState)
	if c.emitted && view == c.view {
		return
	}
	c.view = view
	c.emitted = true
	if c.onChange != nil {
		c.onChange(view)
	}
}
