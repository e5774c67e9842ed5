package presence

import "context"

// Tracker records which participants are attached to a room. Membership is
// a set: a participant counts once no matter how often it is attached.
type Tracker interface {
	// Attach adds participantID to the room. Attaching twice is a no-op.
	Attach(ctx context.Context, roomID, participantID string) error

	// Detach removes participantID and reports whether the room is now empty.
	Detach(ctx context.Context, roomID, participantID string) (empty bool, err error)

	// Count returns the number of attached participants.
	Count(ctx context.Context, roomID string) (int, error)

	Close() error
}
