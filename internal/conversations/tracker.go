package conversations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/tariel-x/gopresence/internal/metrics"
	"github.com/tariel-x/gopresence/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationEnded    = errors.New("conversation already ended")
	ErrParticipantBusy      = errors.New("participant is already in a conversation")
	ErrSameParticipant      = errors.New("a conversation needs two different participants")
)

// End reasons, also used as metric labels.
const (
	ReasonEnded   = "ended"
	ReasonExpired = "expired"
	ReasonLeft    = "left"
)

// StateSetter moves a participant's record in and out of a conversation.
type StateSetter interface {
	SetConversationState(ctx context.Context, sessionID, participantID string, state models.ConversationState) (models.AvailabilityRecord, error)
}

// Tracker pairs participants into one-to-one conversations and keeps their
// records' conversation state in line with the pairing.
type Tracker struct {
	mu              sync.Mutex
	conversations   map[string]*models.Conversation
	busy            map[participantKey]string
	states          StateSetter
	ttl             time.Duration
	cleanupInterval time.Duration
	logger          *slog.Logger
	metrics         *metrics.Metrics
}

type participantKey struct {
	sessionID     string
	participantID string
}

type Option func(*Tracker)

func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

func WithCleanupInterval(interval time.Duration) Option {
	return func(t *Tracker) {
		t.cleanupInterval = interval
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

func NewTracker(states StateSetter, opts ...Option) *Tracker {
	t := &Tracker{
		conversations:   make(map[string]*models.Conversation),
		busy:            make(map[participantKey]string),
		states:          states,
		ttl:             2 * time.Hour,
		cleanupInterval: time.Minute,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start runs the expiry loop until ctx is done.
func (t *Tracker) Start(ctx context.Context) {
	if t.cleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(t.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := t.ExpireStale(ctx, now); n > 0 {
				t.logger.Info("expired stale conversations", "count", n)
			}
		}
	}
}

// Begin pairs two idle participants of a session. Both records are moved to
// InConversation; if the second move fails the first is rolled back.
func (t *Tracker) Begin(ctx context.Context, sessionID, first, second string, now time.Time) (*models.Conversation, error) {
	if first == second {
		return nil, ErrSameParticipant
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, pid := range []string{first, second} {
		if _, ok := t.busy[participantKey{sessionID, pid}]; ok {
			return nil, fmt.Errorf("%w: %s", ErrParticipantBusy, pid)
		}
	}

	id, err := gonanoid.New(16)
	if err != nil {
		return nil, err
	}

	if _, err := t.states.SetConversationState(ctx, sessionID, first, models.ConversationActive); err != nil {
		return nil, err
	}
	if _, err := t.states.SetConversationState(ctx, sessionID, second, models.ConversationActive); err != nil {
		if _, rbErr := t.states.SetConversationState(ctx, sessionID, first, models.ConversationIdle); rbErr != nil {
			t.logger.Error("failed to roll back conversation state",
				"session_id", sessionID, "participant_id", first, "error", rbErr)
		}
		return nil, err
	}

	conv := &models.Conversation{
		ID:           id,
		SessionID:    sessionID,
		Participants: [2]string{first, second},
		Status:       models.ConversationStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(t.ttl),
	}
	t.conversations[id] = conv
	t.busy[participantKey{sessionID, first}] = id
	t.busy[participantKey{sessionID, second}] = id
	t.metrics.ConversationStarted()

	t.logger.Info("conversation started", "conversation_id", id, "session_id", sessionID,
		"participants", conv.Participants)

	snapshot := *conv
	return &snapshot, nil
}

func (t *Tracker) Get(ctx context.Context, conversationID string, now time.Time) (*models.Conversation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conv, err := t.loadActiveLocked(ctx, conversationID, now)
	if err != nil {
		return nil, err
	}
	snapshot := *conv
	return &snapshot, nil
}

// End finishes a conversation and returns both participants to Idle.
func (t *Tracker) End(ctx context.Context, conversationID string, now time.Time) (*models.Conversation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conv, err := t.loadActiveLocked(ctx, conversationID, now)
	if err != nil {
		return nil, err
	}
	return t.endLocked(ctx, conv, ReasonEnded, now), nil
}

// EndForParticipant finishes the conversation a participant is in, if any.
func (t *Tracker) EndForParticipant(ctx context.Context, sessionID, participantID string, now time.Time) (*models.Conversation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.busy[participantKey{sessionID, participantID}]
	if !ok {
		return nil, false
	}
	conv, ok := t.conversations[id]
	if !ok {
		delete(t.busy, participantKey{sessionID, participantID})
		return nil, false
	}
	return t.endLocked(ctx, conv, ReasonLeft, now), true
}

// ListActive returns a session's live conversations, oldest first.
func (t *Tracker) ListActive(ctx context.Context, sessionID string, now time.Time) []*models.Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expireLocked(ctx, now)

	list := make([]*models.Conversation, 0)
	for _, conv := range t.conversations {
		if conv.SessionID != sessionID {
			continue
		}
		snapshot := *conv
		list = append(list, &snapshot)
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// ExpireStale ends every conversation past its TTL and reports how many.
func (t *Tracker) ExpireStale(ctx context.Context, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expireLocked(ctx, now)
}

func (t *Tracker) loadActiveLocked(ctx context.Context, conversationID string, now time.Time) (*models.Conversation, error) {
	conv, ok := t.conversations[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	if now.After(conv.ExpiresAt) {
		t.endLocked(ctx, conv, ReasonExpired, now)
		return nil, ErrConversationEnded
	}
	return conv, nil
}

func (t *Tracker) expireLocked(ctx context.Context, now time.Time) int {
	expired := 0
	for _, conv := range t.conversations {
		if now.After(conv.ExpiresAt) {
			t.endLocked(ctx, conv, ReasonExpired, now)
			expired++
		}
	}
	return expired
}

// endLocked removes conv and releases both participants. A participant whose
// record is already gone is skipped.
func (t *Tracker) endLocked(ctx context.Context, conv *models.Conversation, reason string, now time.Time) *models.Conversation {
	conv.Status = models.ConversationStatusEnded
	conv.UpdatedAt = now
	conv.ExpiresAt = now

	delete(t.conversations, conv.ID)
	for _, pid := range conv.Participants {
		key := participantKey{conv.SessionID, pid}
		if t.busy[key] == conv.ID {
			delete(t.busy, key)
		}
		if _, err := t.states.SetConversationState(ctx, conv.SessionID, pid, models.ConversationIdle); err != nil {
			t.logger.Warn("failed to release participant from conversation",
				"conversation_id", conv.ID, "participant_id", pid, "error", err)
		}
	}
	t.metrics.ConversationEnded(reason)
	t.logger.Info("conversation ended", "conversation_id", conv.ID, "reason", reason)

	snapshot := *conv
	return &snapshot
}
