package kafka

import (
	"context"

	"github.com/weiawesome/wes-io-collab/internal/domain"
)

// SnapshotProducer hands the final state of an ended session to the
// downstream history/record step.
type SnapshotProducer interface {
	ProduceSnapshot(ctx context.Context, snapshot *domain.SessionSnapshot) error
	Close() error
}
