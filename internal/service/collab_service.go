package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-collab/internal/audit"
	"github.com/weiawesome/wes-io-collab/internal/config"
	"github.com/weiawesome/wes-io-collab/internal/domain"
	"github.com/weiawesome/wes-io-collab/internal/hub"
	"github.com/weiawesome/wes-io-collab/internal/kafka"
	"github.com/weiawesome/wes-io-collab/internal/presence"
	"github.com/weiawesome/wes-io-collab/internal/store"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type collabService struct {
	hub             *hub.Hub
	broadcaster     Broadcaster
	store           store.RoomStore
	tracker         presence.Tracker
	producer        kafka.SnapshotProducer
	defaultDuration time.Duration
	locks           *roomLocks
	infoGroup       singleflight.Group
	now             func() time.Time
}

// NewCollabService wires the protocol handlers. broadcaster defaults to the
// hub itself; a nil producer disables the snapshot archive.
func NewCollabService(
	h *hub.Hub,
	broadcaster Broadcaster,
	st store.RoomStore,
	tracker presence.Tracker,
	producer kafka.SnapshotProducer,
	cfg config.SessionConfig,
) CollabService {
	if broadcaster == nil {
		broadcaster = h
	}
	duration := cfg.DefaultDuration
	if duration <= 0 {
		duration = time.Hour
	}
	return &collabService{
		hub:             h,
		broadcaster:     broadcaster,
		store:           st,
		tracker:         tracker,
		producer:        producer,
		defaultDuration: duration,
		locks:           newRoomLocks(),
		now:             time.Now,
	}
}

func (s *collabService) HandleJoinRoom(ctx context.Context, c *hub.Client, msg *domain.JoinRoomMessage) error {
	if c.Session.GetState() != domain.StateUnjoined {
		s.replyError(ctx, c, domain.ErrCodeAlreadyJoined, "Connection already joined a room")
		return ErrAlreadyJoined
	}

	roomID, participantID := msg.RoomID, msg.ParticipantID

	deadline, err := s.attach(ctx, c, roomID, participantID, msg.SessionDeadline)
	if errors.Is(err, errAttach) {
		s.replyError(ctx, c, domain.ErrCodeStoreUnavailable, "Failed to join room, try again")
		return err
	}

	audit.Log(ctx, audit.ActionJoinRoom, roomID, participantID, "participant joined room")
	s.broadcast(ctx, roomID, domain.NewPartnerConnection(participantID, true), "")

	if err != nil {
		// Joined, but the deadline could not be settled; the client can ask
		// again with get_session_timer.
		s.replyError(ctx, c, domain.ErrCodeStoreUnavailable, "Failed to load session state")
		return err
	}

	return s.replay(ctx, c, roomID, deadline)
}

var errAttach = errors.New("attach failed")

const roomInfoTimeout = 5 * time.Second

// attach binds the connection and settles the deadline under the room lock
// so two first joiners cannot both initialise it.
func (s *collabService) attach(ctx context.Context, c *hub.Client, roomID, participantID string, proposed *time.Time) (time.Time, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	if err := s.tracker.Attach(ctx, roomID, participantID); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errAttach, err)
	}
	c.Session.Join(participantID, roomID)
	s.hub.JoinRoom(c, roomID)

	return s.resolveDeadline(ctx, roomID, proposed)
}

func (s *collabService) resolveDeadline(ctx context.Context, roomID string, proposed *time.Time) (time.Time, error) {
	stored, err := s.store.GetSessionDeadline(ctx, roomID)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return time.Time{}, fmt.Errorf("failed to read session deadline: %w", err)
	}

	deadline := s.now().Add(s.defaultDuration).UTC()
	if proposed != nil && !proposed.IsZero() {
		deadline = proposed.UTC()
	}
	if err := s.store.SetSessionDeadline(ctx, roomID, deadline); err != nil {
		return time.Time{}, fmt.Errorf("failed to set session deadline: %w", err)
	}
	return deadline, nil
}

// replay re-sends cached room state to the whole room. Participants
// already present receive it again and treat it as a no-op.
func (s *collabService) replay(ctx context.Context, c *hub.Client, roomID string, deadline time.Time) error {
	var (
		content    string
		hasContent bool
		messages   []domain.ChatMessage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.store.GetContent(gctx, roomID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		content, hasContent = v, true
		return nil
	})
	g.Go(func() error {
		v, err := s.store.ListChatMessages(gctx, roomID)
		if err != nil {
			return err
		}
		messages = v
		return nil
	})
	if err := g.Wait(); err != nil {
		s.replyError(ctx, c, domain.ErrCodeStoreUnavailable, "Failed to load session state")
		return fmt.Errorf("failed to load room state: %w", err)
	}

	if hasContent && content != "" {
		s.broadcast(ctx, roomID, domain.NewCodeUpdate(content), "")
	}
	s.broadcast(ctx, roomID, domain.NewSessionTimer(&deadline), "")
	if len(messages) > 0 {
		s.broadcast(ctx, roomID, domain.NewUpdateChatList(messages), "")
	}
	return nil
}

func (s *collabService) HandleCodeChange(ctx context.Context, c *hub.Client, msg *domain.CodeChangeMessage) error {
	_, roomID, err := s.joinedRoom(ctx, c, msg.RoomID)
	if err != nil {
		return err
	}

	if err := s.store.SetContent(ctx, roomID, *msg.Content); err != nil {
		s.replyError(ctx, c, domain.ErrCodeStoreUnavailable, "Failed to save code, the next edit will retry")
		return fmt.Errorf("failed to save content: %w", err)
	}

	s.broadcast(ctx, roomID, domain.NewCodeUpdate(*msg.Content), c.ID)
	return nil
}

func (s *collabService) HandleSendChatMessage(ctx context.Context, c *hub.Client, msg *domain.SendChatMessage) error {
	participantID, roomID, err := s.joinedRoom(ctx, c, msg.RoomID)
	if err != nil {
		return err
	}

	chat := *msg.Message
	if err := s.store.AppendChatMessage(ctx, roomID, chat); err != nil {
		s.replyError(ctx, c, domain.ErrCodeStoreUnavailable, "Failed to send message")
		return fmt.Errorf("failed to append chat message: %w", err)
	}

	audit.LogWithDetail(ctx, audit.ActionSendChatMessage, roomID, participantID, chat.UUID, "chat message sent")
	s.broadcast(ctx, roomID, domain.NewUpdateChatMessage(chat), c.ID)
	return nil
}

func (s *collabService) HandleGetSessionTimer(ctx context.Context, c *hub.Client, msg *domain.RoomMessage) error {
	_, roomID, err := s.joinedRoom(ctx, c, msg.RoomID)
	if err != nil {
		return err
	}

	deadline, err := s.store.GetSessionDeadline(ctx, roomID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.reply(ctx, c, domain.NewSessionTimer(nil))
		return nil
	case err != nil:
		s.replyError(ctx, c, domain.ErrCodeStoreUnavailable, "Failed to read session timer")
		return fmt.Errorf("failed to read session deadline: %w", err)
	}

	s.reply(ctx, c, domain.NewSessionTimer(&deadline))
	return nil
}

func (s *collabService) HandleEndSession(ctx context.Context, c *hub.Client, msg *domain.RoomMessage) error {
	participantID, roomID, err := s.joinedRoom(ctx, c, msg.RoomID)
	if err != nil {
		return err
	}

	var (
		content  string
		deadline *time.Time
		messages []domain.ChatMessage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.store.GetContent(gctx, roomID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		content = v
		return nil
	})
	g.Go(func() error {
		v, err := s.store.GetSessionDeadline(gctx, roomID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		deadline = &v
		return nil
	})
	if s.producer != nil {
		g.Go(func() error {
			v, err := s.store.ListChatMessages(gctx, roomID)
			if err != nil {
				return err
			}
			messages = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.replyError(ctx, c, domain.ErrCodeStoreUnavailable, "Failed to read session snapshot")
		return fmt.Errorf("failed to read session snapshot: %w", err)
	}

	s.reply(ctx, c, &domain.EndSessionMessage{
		Type:            domain.MsgTypeEndSession,
		Content:         content,
		SessionDeadline: deadline,
	})
	audit.Log(ctx, audit.ActionEndSession, roomID, participantID, "session ended")

	if s.producer != nil {
		snapshot := &domain.SessionSnapshot{
			RoomID:          roomID,
			ParticipantID:   participantID,
			Content:         content,
			SessionDeadline: deadline,
			Messages:        messages,
			EndedAt:         s.now().UTC(),
		}
		if err := s.producer.ProduceSnapshot(ctx, snapshot); err != nil {
			l := pkglog.Ctx(ctx)
			l.Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to archive session snapshot")
		}
	}
	return nil
}

// HandleConfirmEndSession purges the room once nobody is attached. A
// confirmation from a connection that is still joined is remembered and
// acted on when that connection disconnects.
func (s *collabService) HandleConfirmEndSession(ctx context.Context, c *hub.Client, msg *domain.RoomMessage) error {
	participantID, roomID, joined := c.Session.Binding()
	switch {
	case joined && msg.RoomID != "" && msg.RoomID != roomID:
		s.replyError(ctx, c, domain.ErrCodeRoomMismatch, "Event targets a room this connection did not join")
		return ErrRoomMismatch
	case !joined:
		if msg.RoomID == "" {
			s.replyError(ctx, c, domain.ErrCodeBadRequest, "room_id is required")
			return ErrMissingRoomID
		}
		roomID = msg.RoomID
	}

	audit.Log(ctx, audit.ActionConfirmEndSession, roomID, participantID, "end of session confirmed")

	if joined {
		c.Session.MarkConfirmedEnd()
	}

	unlock := s.locks.Lock(roomID)
	defer unlock()

	_, err := s.purgeIfEmpty(ctx, roomID)
	return err
}

func (s *collabService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	participantID, roomID, confirmed, ok := c.Session.Leave()
	if !ok {
		return nil
	}

	return s.detach(ctx, c, roomID, participantID, confirmed)
}

// detach runs under the room lock so the sibling-tab check sees every
// connection attach has already bound.
func (s *collabService) detach(ctx context.Context, c *hub.Client, roomID, participantID string, confirmed bool) error {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	s.hub.LeaveRoom(c, roomID)

	// Another tab of the same participant keeps it present.
	if s.hub.HasParticipant(roomID, participantID, c.ID) {
		audit.LogWithDetail(ctx, audit.ActionDisconnect, roomID, participantID, "other_connections_remain", "connection closed")
		return nil
	}

	empty, err := s.tracker.Detach(ctx, roomID, participantID)

	audit.Log(ctx, audit.ActionDisconnect, roomID, participantID, "participant left room")
	s.broadcast(ctx, roomID, domain.NewPartnerConnection(participantID, false), c.ID)

	if err != nil {
		return fmt.Errorf("failed to detach participant: %w", err)
	}
	if !confirmed || !empty {
		return nil
	}
	_, err = s.purgeIfEmpty(ctx, roomID)
	return err
}

// purgeIfEmpty must be called with the room lock held.
func (s *collabService) purgeIfEmpty(ctx context.Context, roomID string) (bool, error) {
	count, err := s.tracker.Count(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("failed to count participants: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if err := s.store.Purge(ctx, roomID); err != nil {
		return false, fmt.Errorf("failed to purge room: %w", err)
	}
	audit.Log(ctx, audit.ActionPurgeRoom, roomID, "", "room state purged")
	return true, nil
}

func (s *collabService) GetRoomInfo(ctx context.Context, roomID string) (*domain.RoomInfo, error) {
	v, err, _ := s.infoGroup.Do(roomID, func() (interface{}, error) {
		// Coalesced callers share this read; it outlives the first caller.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), roomInfoTimeout)
		defer cancel()

		info := &domain.RoomInfo{
			RoomID:           roomID,
			LocalConnections: s.hub.RoomClientCount(roomID),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			n, err := s.tracker.Count(gctx, roomID)
			info.Participants = n
			return err
		})
		g.Go(func() error {
			_, err := s.store.GetContent(gctx, roomID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			info.HasContent = err == nil
			return err
		})
		g.Go(func() error {
			d, err := s.store.GetSessionDeadline(gctx, roomID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			info.SessionDeadline = &d
			return nil
		})
		g.Go(func() error {
			msgs, err := s.store.ListChatMessages(gctx, roomID)
			info.MessageCount = len(msgs)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.RoomInfo), nil
}

func (s *collabService) Stop() error {
	if s.producer == nil {
		return nil
	}
	if err := s.producer.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot producer: %w", err)
	}
	return nil
}

// joinedRoom returns the connection's binding, replying with an error frame
// when it is not joined or names another room. An empty roomID means the
// joined room.
func (s *collabService) joinedRoom(ctx context.Context, c *hub.Client, roomID string) (string, string, error) {
	participantID, joinedRoomID, ok := c.Session.Binding()
	if !ok {
		s.replyError(ctx, c, domain.ErrCodeNotInRoom, "Join a room first")
		return "", "", ErrNotJoined
	}
	if roomID != "" && roomID != joinedRoomID {
		s.replyError(ctx, c, domain.ErrCodeRoomMismatch, "Event targets a room this connection did not join")
		return "", "", ErrRoomMismatch
	}
	return participantID, joinedRoomID, nil
}

func (s *collabService) broadcast(ctx context.Context, roomID string, msg interface{}, exclude string) {
	if err := s.broadcaster.BroadcastToRoom(roomID, msg, exclude); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("broadcast failed")
	}
}

func (s *collabService) reply(ctx context.Context, c *hub.Client, msg interface{}) {
	if err := c.SendMessage(msg); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Msg("failed to send reply")
	}
}

func (s *collabService) replyError(ctx context.Context, c *hub.Client, code, message string) {
	s.reply(ctx, c, domain.NewErrorMessage(code, message))
}
