package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-collab/internal/hub"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
)

const (
	publishTimeout = 3 * time.Second
	retryDelay     = 2 * time.Second
)

// Relay fans room broadcasts out to the other instances. A frame is
// delivered to local connections right away and published on the room's
// to_peers channel; peers deliver it to their own connections.
type Relay struct {
	hub        *hub.Hub
	ps         pubsub.PubSub
	instanceID string
	doneCh     chan struct{}
}

func New(h *hub.Hub, ps pubsub.PubSub, instanceID string) *Relay {
	return &Relay{
		hub:        h,
		ps:         ps,
		instanceID: instanceID,
		doneCh:     make(chan struct{}),
	}
}

// BroadcastToRoom delivers locally, then publishes to peers. A publish
// error is returned after local delivery has already happened.
func (r *Relay) BroadcastToRoom(roomID string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	r.hub.BroadcastRawToRoom(roomID, data, exclude)

	event, err := pubsub.NewEvent(pubsub.EventRoomFrame, roomID, r.instanceID, pubsub.RoomFramePayload{
		Exclude: exclude,
		Frame:   data,
	})
	if err != nil {
		return fmt.Errorf("failed to build relay event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := r.ps.Publish(ctx, pubsub.RoomToPeersChannel(roomID), event); err != nil {
		return fmt.Errorf("failed to relay frame to peers: %w", err)
	}
	return nil
}

// Start subscribes to every room's to_peers channel and keeps delivering
// peer frames until ctx is done. It returns once the first subscription
// is active.
func (r *Relay) Start(ctx context.Context) error {
	ch, err := r.ps.SubscribePattern(ctx, pubsub.PatternRoomToPeers)
	if err != nil {
		return fmt.Errorf("failed to subscribe relay: %w", err)
	}
	go r.run(ctx, ch)
	return nil
}

// Done returns a channel that is closed when the relay stops.
func (r *Relay) Done() <-chan struct{} { return r.doneCh }

func (r *Relay) run(ctx context.Context, ch <-chan *pubsub.Event) {
	defer close(r.doneCh)
	l := pkglog.L()

	for {
		if ch != nil {
			r.consume(ch)
		}
		if ctx.Err() != nil {
			return
		}

		l.Warn().Dur("retry_in", retryDelay).Msg("relay subscription closed, resubscribing")
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}

		var err error
		ch, err = r.ps.SubscribePattern(ctx, pubsub.PatternRoomToPeers)
		if err != nil {
			l.Error().Err(err).Msg("relay resubscribe failed")
			ch = nil
		}
	}
}

func (r *Relay) consume(ch <-chan *pubsub.Event) {
	for event := range ch {
		r.handleEvent(event)
	}
}

func (r *Relay) handleEvent(event *pubsub.Event) {
	if event.FromSource(r.instanceID) || event.Type != pubsub.EventRoomFrame {
		return
	}

	l := pkglog.L()
	var payload pubsub.RoomFramePayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		l.Warn().Err(err).Str(pkglog.FieldRoomID, event.RoomID).Msg("relay: invalid frame payload")
		return
	}
	if event.RoomID == "" || len(payload.Frame) == 0 {
		return
	}

	r.hub.BroadcastRawToRoom(event.RoomID, payload.Frame, payload.Exclude)
}
