package presence

import (
	"context"
	"errors"
	"sync"

	"github.com/tariel-x/gopresence/internal/models"
)

// fakeRemote records writes and lets tests decide when (and whether) they echo.
type fakeRemote struct {
	mu sync.Mutex

	record   models.AvailabilityRecord
	readErr  error
	subErr   error
	writeErr error
	echo     bool
	// delay, when set, runs before a write reaches the record.
	delay func(value bool)

	reads    int
	writes   []bool
	onChange func(models.AvailabilityRecord)
	released int
}

func newFakeRemote(record models.AvailabilityRecord) *fakeRemote {
	return &fakeRemote{record: record}
}

func (f *fakeRemote) ReadRecord(ctx context.Context, sessionID, participantID string) (models.AvailabilityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return models.AvailabilityRecord{}, f.readErr
	}
	return f.record, nil
}

func (f *fakeRemote) SubscribeRecord(sessionID, participantID string, onChange func(models.AvailabilityRecord)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.onChange = onChange
	return fakeSubscription{remote: f}, nil
}

func (f *fakeRemote) WriteAvailability(ctx context.Context, sessionID, participantID string, value bool) error {
	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()
	if delay != nil {
		delay(value)
	}

	f.mu.Lock()
	f.writes = append(f.writes, value)
	if f.writeErr != nil {
		err := f.writeErr
		f.mu.Unlock()
		return err
	}
	f.record.IsAvailableForCall = value
	record := f.record
	echo := f.echo
	onChange := f.onChange
	f.mu.Unlock()

	if echo && onChange != nil {
		onChange(record)
	}
	return nil
}

// push delivers a record through the subscription, as the collaborator would.
func (f *fakeRemote) push(record models.AvailabilityRecord) {
	f.mu.Lock()
	f.record = record
	onChange := f.onChange
	f.mu.Unlock()
	if onChange != nil {
		onChange(record)
	}
}

func (f *fakeRemote) writeLog() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.writes...)
}

func (f *fakeRemote) releasedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

type fakeSubscription struct {
	remote *fakeRemote
}

func (s fakeSubscription) Unsubscribe() {
	s.remote.mu.Lock()
	defer s.remote.mu.Unlock()
	s.remote.released++
	s.remote.onChange = nil
}

var errUnavailable = errors.New("remote unavailable")

func syncDispatch(fn func()) { fn() }

func record(available bool, state models.ConversationState) models.AvailabilityRecord {
	return models.AvailabilityRecord{
		SessionID:          "session-1",
		ParticipantID:      "participant-1",
		IsAvailableForCall: available,
		ConversationState:  state,
	}
}
