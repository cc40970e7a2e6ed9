package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

const lastSeenTimeout = 5 * time.Second

// LastSeenRecorder stores when a user went offline
type LastSeenRecorder interface {
	RecordLastSeen(ctx context.Context, username string, at time.Time) error
}

// Relay presence transitions, chat message fan-out and message side events
type Relay struct {
	broker   domain.Broker
	presence *PresenceRegistry
	resolver *RoomResolver
	gateway  *MessageGateway
	messages repository.MessageRepository
	lastSeen LastSeenRecorder
	// 同一使用者的上下線轉換與廣播要一起完成
	users *userLocks
}

// NewRelay create Relay; lastSeen may be nil
func NewRelay(
	broker domain.Broker,
	presence *PresenceRegistry,
	resolver *RoomResolver,
	gateway *MessageGateway,
	messages repository.MessageRepository,
	lastSeen LastSeenRecorder,
) *Relay {
	return &Relay{
		broker:   broker,
		presence: presence,
		resolver: resolver,
		gateway:  gateway,
		messages: messages,
		lastSeen: lastSeen,
		users:    newUserLocks(),
	}
}

// Connect register the connection for broadcasts
func (r *Relay) Connect(sess *Session) {
	r.broker.Subscribe(sess.conn)
}

// Join bind username to the session, subscribe its rooms and announce the online transition
func (r *Relay) Join(ctx context.Context, sess *Session, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.ErrUsernameRequired
	}
	if sess.authUser != "" && sess.authUser != username {
		return domain.ErrUsernameMismatch
	}

	connID := sess.conn.ID()
	prev, _ := r.presence.UsernameOf(connID)
	unlock := r.users.Lock(prev, username)
	defer unlock()

	res := r.presence.Bind(connID, username)
	if res.Previous != "" {
		// rebinding to another user: drop the old rooms
		r.broker.UnsubscribeAll(connID)
		r.broker.Subscribe(sess.conn)
		if res.PreviousWentOffline {
			r.wentOffline(ctx, res.Previous)
		}
	}

	topics, err := r.resolver.TopicsFor(ctx, username)
	if err != nil {
		logger.Log.Warn("group lookup failed, joining user room only", zap.String("username", username), zap.Error(err))
	}
	r.broker.Subscribe(sess.conn, topics...)
	sess.setUsername(username)

	logger.Log.Debug("joined", zap.String("username", username), zap.String("connID", connID), zap.Int("topics", len(topics)))
	if res.BecameOnline {
		r.broadcast(ctx, domain.EventUserStatusChange, domain.StatusPayload{Username: username, Status: domain.StatusOnline})
	}
	return nil
}

// Disconnect remove the connection; offline is announced only when the user's last connection is gone
func (r *Relay) Disconnect(ctx context.Context, sess *Session) (string, bool) {
	connID := sess.conn.ID()
	r.broker.UnsubscribeAll(connID)

	bound, _ := r.presence.UsernameOf(connID)
	unlock := r.users.Lock(bound)
	defer unlock()

	username, wentOffline := r.presence.Unbind(connID)
	if wentOffline {
		r.wentOffline(ctx, username)
	}
	return username, wentOffline
}

func (r *Relay) wentOffline(ctx context.Context, username string) {
	r.broadcast(ctx, domain.EventUserStatusChange, domain.StatusPayload{Username: username, Status: domain.StatusOffline})
	if r.lastSeen == nil {
		return
	}

	at := time.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), lastSeenTimeout)
		defer cancel()
		if err := r.lastSeen.RecordLastSeen(ctx, username, at); err != nil {
			logger.Log.Warn("record last seen failed", zap.String("username", username), zap.Error(err))
		}
	}()
}

// OnlineUsers answer get_online_users to the origin
func (r *Relay) OnlineUsers(sess *Session) {
	r.reply(sess, domain.EventOnlineUsersList, r.presence.ListOnline())
}

// SendMessage persist then relay. Private: receive_message to the recipient, message_sent with tempId
// to the origin only. Group: receive_message to the group topic, sender's other connections included.
func (r *Relay) SendMessage(ctx context.Context, sess *Session, p domain.SendMessagePayload) {
	from := sess.Username()
	if from == "" {
		r.reply(sess, domain.EventMessageError, domain.ErrorPayload{Error: domain.ErrNotJoined.Error(), TempID: p.TempID})
		return
	}

	stored, err := r.gateway.Persist(ctx, domain.SendRequest{
		From:    from,
		Dest:    p.Destination(),
		Text:    p.Message,
		File:    p.File,
		ReplyTo: p.ReplyTo,
	})
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			r.reply(sess, domain.EventMessageError, domain.ErrorPayload{Error: verr.Error(), TempID: p.TempID})
			return
		}
		logger.Log.Error("message not stored", zap.String("from", from), zap.Error(err))
		r.reply(sess, domain.EventMessageFailed, domain.ErrorPayload{Error: "message could not be saved", TempID: p.TempID})
		return
	}

	dest := stored.Destination()
	topic := r.resolver.ResolveTarget(dest)

	switch dest.(type) {
	case domain.GroupDestination:
		stored.TempID = p.TempID
		r.publish(ctx, topic, domain.EventReceiveMessage, stored)
	case domain.PrivateDestination:
		r.publish(ctx, topic, domain.EventReceiveMessage, stored)
		echo := *stored
		echo.TempID = p.TempID
		r.reply(sess, domain.EventMessageSent, &echo)
	}
}

// Typing relay typing / stop_typing; group typing skips the typist's own connections
func (r *Relay) Typing(ctx context.Context, sess *Session, p domain.TypingPayload, stop bool) {
	from := sess.Username()
	if from == "" {
		return
	}
	p.From = from

	ev := domain.EventUserTyping
	if stop {
		ev = domain.EventStopTyping
	}

	switch {
	case p.GroupID != "":
		r.publish(ctx, domain.GroupTopic(p.GroupID), ev, p, r.presence.ConnectionsOf(from)...)
	case p.To != "":
		r.publish(ctx, domain.UserTopic(p.To), ev, p)
	}
}

// DeleteForEveryone soft delete and notify everyone who could see the message.
// Any connection that knows the id may delete it.
func (r *Relay) DeleteForEveryone(ctx context.Context, sess *Session, messageID string) {
	if messageID == "" {
		return
	}

	msg, err := r.messages.SoftDelete(ctx, messageID)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Log.Error("soft delete failed", zap.String("messageID", messageID), zap.Error(err))
		r.reply(sess, domain.EventError, domain.ErrorPayload{Error: "message could not be deleted"})
		return
	}

	last, err := r.messages.FindLastMessage(ctx, msg.ChatKey)
	if err != nil {
		logger.Log.Warn("last message lookup failed", zap.String("chatKey", msg.ChatKey), zap.Error(err))
	}

	payload := domain.MessageDeletedPayload{
		MessageID:      msg.ID,
		GroupID:        msg.GroupID,
		From:           msg.From,
		To:             msg.To,
		NewLastMessage: last,
	}

	if msg.GroupID != "" {
		r.publish(ctx, domain.GroupTopic(msg.GroupID), domain.EventMessageDeleted, payload)
		return
	}
	r.publish(ctx, domain.UserTopic(msg.From), domain.EventMessageDeleted, payload)
	if msg.To != msg.From {
		r.publish(ctx, domain.UserTopic(msg.To), domain.EventMessageDeleted, payload)
	}
}

// DeleteForMe tell the requester's other connections to hide the message; the record is untouched
func (r *Relay) DeleteForMe(ctx context.Context, sess *Session, messageID string) {
	username := sess.Username()
	if username == "" || messageID == "" {
		return
	}
	r.publish(ctx, domain.UserTopic(username), domain.EventMessageHidden,
		domain.MessageRefPayload{MessageID: messageID}, sess.conn.ID())
}

// MarkRead set the read flag and notify the sender
func (r *Relay) MarkRead(ctx context.Context, sess *Session, messageID string) {
	reader := sess.Username()
	if reader == "" || messageID == "" {
		return
	}

	msg, err := r.messages.MarkRead(ctx, messageID)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Log.Error("mark read failed", zap.String("messageID", messageID), zap.Error(err))
		return
	}
	if msg.From == reader {
		return
	}
	r.publish(ctx, domain.UserTopic(msg.From), domain.EventMessageRead, domain.MessageReadPayload{MessageID: msg.ID, By: reader})
}

func (r *Relay) publish(ctx context.Context, topic domain.Topic, ev domain.Event, data interface{}, exclude ...string) {
	publish(ctx, r.broker, topic, ev, data, exclude...)
}

func (r *Relay) broadcast(ctx context.Context, ev domain.Event, data interface{}) {
	frame, err := domain.Encode(ev, data)
	if err != nil {
		logger.Log.Error("encode broadcast failed", zap.String("event", string(ev)), zap.Error(err))
		return
	}
	if err := r.broker.Broadcast(ctx, frame); err != nil {
		logger.Log.Error("broadcast failed", zap.String("event", string(ev)), zap.Error(err))
	}
}

func (r *Relay) reply(sess *Session, ev domain.Event, data interface{}) {
	reply(sess, ev, data)
}

func publish(ctx context.Context, broker domain.Broker, topic domain.Topic, ev domain.Event, data interface{}, exclude ...string) {
	frame, err := domain.Encode(ev, data)
	if err != nil {
		logger.Log.Error("encode event failed", zap.String("event", string(ev)), zap.Error(err))
		return
	}
	if err := broker.Publish(ctx, topic, frame, exclude...); err != nil {
		logger.Log.Error("publish failed", zap.String("topic", string(topic)), zap.String("event", string(ev)), zap.Error(err))
	}
}

// reply send to the origin connection only
func reply(sess *Session, ev domain.Event, data interface{}) {
	frame, err := domain.Encode(ev, data)
	if err != nil {
		logger.Log.Error("encode reply failed", zap.String("event", string(ev)), zap.Error(err))
		return
	}
	sess.conn.Send(frame)
}
