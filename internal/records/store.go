package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tariel-x/gopresence/internal/models"
	"github.com/tariel-x/gopresence/internal/presence"
)

// Relay mirrors committed records to other server instances.
type Relay interface {
	Publish(ctx context.Context, rec models.AvailabilityRecord) error
}

// Store is the remote side of every presence controller: it persists records,
// and notifies subscribers of each committed change in commit order.
type Store struct {
	mu sync.Mutex

	repo             *Repository
	broker           *Broker
	relay            Relay
	defaultAvailable bool
	now              func() time.Time
	logger           *slog.Logger
}

type StoreOption func(*Store)

func WithRelay(relay Relay) StoreOption {
	return func(s *Store) {
		s.relay = relay
	}
}

// WithDefaultAvailability sets the availability of newly joined participants.
func WithDefaultAvailability(available bool) StoreOption {
	return func(s *Store) {
		s.defaultAvailable = available
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewStore(repo *Repository, broker *Broker, opts ...StoreOption) *Store {
	s := &Store{
		repo:             repo,
		broker:           broker,
		defaultAvailable: true,
		now:              time.Now,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ presence.Remote = (*Store)(nil)

func (s *Store) ReadRecord(ctx context.Context, sessionID, participantID string) (models.AvailabilityRecord, error) {
	return s.repo.Get(ctx, sessionID, participantID)
}

func (s *Store) SubscribeRecord(sessionID, participantID string, onChange func(models.AvailabilityRecord)) (presence.Subscription, error) {
	if sessionID == "" || participantID == "" {
		return nil, errors.New("session and participant are required")
	}
	return s.broker.Subscribe(sessionID, participantID, onChange), nil
}

func (s *Store) WriteAvailability(ctx context.Context, sessionID, participantID string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.repo.SetAvailability(ctx, sessionID, participantID, value, s.now())
	if err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	s.publishLocked(ctx, rec)
	return nil
}

// Join registers a participant in a session. An empty participantID gets a
// generated one.
func (s *Store) Join(ctx context.Context, sessionID, participantID string) (models.AvailabilityRecord, error) {
	if participantID == "" {
		participantID = uuid.NewString()
	}

	now := s.now()
	rec := models.AvailabilityRecord{
		SessionID:          sessionID,
		ParticipantID:      participantID,
		IsAvailableForCall: s.defaultAvailable,
		ConversationState:  models.ConversationIdle,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Create(ctx, &rec); err != nil {
		return models.AvailabilityRecord{}, err
	}
	s.logger.Info("participant joined", "session_id", sessionID, "participant_id", participantID)
	return rec, nil
}

// Leave removes a participant. Open subscriptions are dropped; their
// controllers keep the last state they observed.
func (s *Store) Leave(ctx context.Context, sessionID, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx, sessionID, participantID); err != nil {
		return err
	}
	s.broker.Drop(sessionID, participantID)
	s.logger.Info("participant left", "session_id", sessionID, "participant_id", participantID)
	return nil
}

func (s *Store) SetConversationState(ctx context.Context, sessionID, participantID string, state models.ConversationState) (models.AvailabilityRecord, error) {
	if !state.Valid() {
		return models.AvailabilityRecord{}, fmt.Errorf("invalid conversation state %q", state)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.repo.SetConversationState(ctx, sessionID, participantID, state, s.now())
	if err != nil {
		return models.AvailabilityRecord{}, fmt.Errorf("set conversation state: %w", err)
	}
	s.publishLocked(ctx, rec)
	return rec, nil
}

func (s *Store) List(ctx context.Context, sessionID string, networkableOnly bool) ([]models.AvailabilityRecord, error) {
	return s.repo.ListBySession(ctx, sessionID, networkableOnly)
}

// ApplyRemote delivers a record committed by another instance to local
// subscribers. It is not relayed again.
func (s *Store) ApplyRemote(rec models.AvailabilityRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broker.Publish(rec)
}

func (s *Store) publishLocked(ctx context.Context, rec models.AvailabilityRecord) {
	s.broker.Publish(rec)

	if s.relay == nil {
		return
	}
	if err := s.relay.Publish(ctx, rec); err != nil {
		s.logger.Warn("failed to relay availability record",
			"session_id", rec.SessionID, "participant_id", rec.ParticipantID, "error", err)
	}
}
