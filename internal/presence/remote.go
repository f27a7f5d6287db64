package presence

import (
	"context"

	"github.com/tariel-x/gopresence/internal/models"
)

// RecordReader hydrates a controller with the current remote record.
type RecordReader interface {
	ReadRecord(ctx context.Context, sessionID, participantID string) (models.AvailabilityRecord, error)
}

// RecordSubscriber delivers every change of one participant's record. Deliveries
// for a single subscription must be serial.
type RecordSubscriber interface {
	SubscribeRecord(sessionID, participantID string, onChange func(models.AvailabilityRecord)) (Subscription, error)
}

// AvailabilityWriter stores a new availability flag. The controller never waits
// for the outcome of a write on its event path.
type AvailabilityWriter interface {
	WriteAvailability(ctx context.Context, sessionID, participantID string, value bool) error
}

// Subscription is released exactly once by the controller that acquired it.
type Subscription interface {
	Unsubscribe()
}

// Remote is the full set of operations a controller consumes.
type Remote interface {
	RecordReader
	RecordSubscriber
	AvailabilityWriter
}
