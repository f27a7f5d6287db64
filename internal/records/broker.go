package records

import (
	"sync"

	"github.com/tariel-x/gopresence/internal/models"
)

// Broker fans record changes out to in-process subscribers of one
// (session, participant) pair.
type Broker struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[recordKey]map[uint64]func(models.AvailabilityRecord)
}

type recordKey struct {
	sessionID     string
	participantID string
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[recordKey]map[uint64]func(models.AvailabilityRecord)),
	}
}

func (b *Broker) Subscribe(sessionID, participantID string, fn func(models.AvailabilityRecord)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := recordKey{sessionID: sessionID, participantID: participantID}
	peers, ok := b.subs[key]
	if !ok {
		peers = make(map[uint64]func(models.AvailabilityRecord))
		b.subs[key] = peers
	}

	b.nextID++
	peers[b.nextID] = fn

	return &Subscription{broker: b, key: key, id: b.nextID}
}

// Publish delivers rec to every subscriber of its pair, outside the broker lock.
func (b *Broker) Publish(rec models.AvailabilityRecord) {
	b.mu.Lock()
	var fns []func(models.AvailabilityRecord)
	if peers, ok := b.subs[recordKey{sessionID: rec.SessionID, participantID: rec.ParticipantID}]; ok {
		fns = make([]func(models.AvailabilityRecord), 0, len(peers))
		for _, fn := range peers {
			fns = append(fns, fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(rec)
	}
}

// Drop removes every subscriber of a pair. Their controllers keep their last
// known state.
func (b *Broker) Drop(sessionID, participantID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, recordKey{sessionID: sessionID, participantID: participantID})
}

func (b *Broker) SubscriberCount(sessionID, participantID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[recordKey{sessionID: sessionID, participantID: participantID}])
}

func (b *Broker) remove(key recordKey, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	peers, ok := b.subs[key]
	if !ok {
		return
	}
	delete(peers, id)
	if len(peers) == 0 {
		delete(b.subs, key)
	}
}

// Subscription is a handle on one broker subscriber.
type Subscription struct {
	broker *Broker
	key    recordKey
	id     uint64
	once   sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.remove(s.key, s.id)
	})
}
