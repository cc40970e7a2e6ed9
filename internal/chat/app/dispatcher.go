package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/metrics"

	"go.uber.org/zap"
)

// Dispatcher routes inbound envelopes; transport agnostic
type Dispatcher struct {
	relay     *Relay
	signaling *SignalingRelay
}

// NewDispatcher create Dispatcher
func NewDispatcher(relay *Relay, signaling *SignalingRelay) *Dispatcher {
	return &Dispatcher{relay: relay, signaling: signaling}
}

// Connect new connection
func (d *Dispatcher) Connect(sess *Session) {
	d.relay.Connect(sess)
}

// Disconnect connection closed; the user's calls end with their last connection
func (d *Dispatcher) Disconnect(ctx context.Context, sess *Session) {
	username, wentOffline := d.relay.Disconnect(ctx, sess)
	if wentOffline {
		d.signaling.LeaveAll(ctx, username)
	}
}

// Dispatch handle one inbound event. A panic is contained to this event.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *Session, env domain.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Log.Error("event handler panic",
				zap.String("event", string(env.Event)),
				zap.String("connID", sess.conn.ID()),
				zap.String("panic", fmt.Sprint(rec)),
			)
			reply(sess, domain.EventError, domain.ErrorPayload{Error: "internal error"})
		}
	}()

	metrics.EventsReceived.WithLabelValues(metricLabel(env.Event)).Inc()

	switch env.Event {
	case domain.EventJoin:
		var p domain.JoinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			reply(sess, domain.EventJoinError, domain.ErrorPayload{Error: "invalid join payload"})
			return
		}
		if err := d.relay.Join(ctx, sess, p.Username); err != nil {
			reply(sess, domain.EventJoinError, domain.ErrorPayload{Error: err.Error()})
		}
		return

	case domain.EventGetOnlineUsers:
		d.relay.OnlineUsers(sess)
		return
	}

	from := sess.Username()
	if from == "" {
		if env.Event == domain.EventSendMessage {
			var tempID string
			var p domain.SendMessagePayload
			if err := json.Unmarshal(env.Data, &p); err == nil {
				tempID = p.TempID
			}
			reply(sess, domain.EventMessageError, domain.ErrorPayload{Error: domain.ErrNotJoined.Error(), TempID: tempID})
			return
		}
		if isKnown(env.Event) {
			reply(sess, domain.EventError, domain.ErrorPayload{Error: domain.ErrNotJoined.Error()})
			return
		}
	}

	switch env.Event {
	case domain.EventSendMessage:
		var p domain.SendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			reply(sess, domain.EventMessageError, domain.ErrorPayload{Error: "invalid message payload"})
			return
		}
		d.relay.SendMessage(ctx, sess, p)

	case domain.EventTyping, domain.EventStopTyping:
		var p domain.TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		d.relay.Typing(ctx, sess, p, env.Event == domain.EventStopTyping)

	case domain.EventDeleteForEveryone, domain.EventDeleteForMe, domain.EventMarkRead:
		var p domain.MessageRefPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			reply(sess, domain.EventError, domain.ErrorPayload{Error: "invalid payload"})
			return
		}
		switch env.Event {
		case domain.EventDeleteForEveryone:
			d.relay.DeleteForEveryone(ctx, sess, p.MessageID)
		case domain.EventDeleteForMe:
			d.relay.DeleteForMe(ctx, sess, p.MessageID)
		default:
			d.relay.MarkRead(ctx, sess, p.MessageID)
		}

	case domain.EventGroupCallStart:
		d.signalErr(sess, env.Event, d.signaling.Start(ctx, from, env.Data))

	case domain.EventGroupCallJoin:
		d.signalErr(sess, env.Event, d.signaling.Join(ctx, sess, from, env.Data))

	case domain.EventGroupCallLeave:
		d.signalErr(sess, env.Event, d.signaling.Leave(ctx, from, env.Data))

	default:
		if IsPairwise(env.Event) {
			d.signalErr(sess, env.Event, d.signaling.Forward(ctx, from, env.Event, env.Data))
			return
		}
		reply(sess, domain.EventError, domain.ErrorPayload{Error: fmt.Sprintf("unknown event %q", env.Event)})
	}
}

// signalErr malformed signaling is dropped without telling the sender
func (d *Dispatcher) signalErr(sess *Session, ev domain.Event, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrMalformedSignal) {
		logger.Log.Debug("signaling payload dropped", zap.String("event", string(ev)), zap.String("connID", sess.conn.ID()))
		return
	}
	logger.Log.Error("signaling relay failed", zap.String("event", string(ev)), zap.Error(err))
}

var knownEvents = map[domain.Event]struct{}{
	domain.EventJoin:              {},
	domain.EventGetOnlineUsers:    {},
	domain.EventSendMessage:       {},
	domain.EventTyping:            {},
	domain.EventStopTyping:        {},
	domain.EventDeleteForEveryone: {},
	domain.EventDeleteForMe:       {},
	domain.EventMarkRead:          {},
	domain.EventGroupCallStart:    {},
	domain.EventGroupCallJoin:     {},
	domain.EventGroupCallLeave:    {},
}

func isKnown(ev domain.Event) bool {
	if _, ok := knownEvents[ev]; ok {
		return true
	}
	return IsPairwise(ev)
}

// metricLabel bounded label values
func metricLabel(ev domain.Event) string {
	if isKnown(ev) {
		return string(ev)
	}
	return "unknown"
}
