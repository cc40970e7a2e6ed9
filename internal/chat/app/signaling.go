package app

import (
	"bytes"
	"context"
	"encoding/json"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/metrics"
)

// SignalingRelay forwards call signaling without looking at media payloads
type SignalingRelay struct {
	broker   domain.Broker
	presence *PresenceRegistry
	calls    *GroupCallTracker
}

// NewSignalingRelay create SignalingRelay
func NewSignalingRelay(broker domain.Broker, presence *PresenceRegistry, calls *GroupCallTracker) *SignalingRelay {
	return &SignalingRelay{
		broker:   broker,
		presence: presence,
		calls:    calls,
	}
}

// forwardedAs outbound name of each pairwise signaling event
var forwardedAs = map[domain.Event]domain.Event{
	domain.EventCallOffer:       domain.EventCallOffer,
	domain.EventCallAnswer:      domain.EventCallAnswer,
	domain.EventIceCandidate:    domain.EventIceCandidate,
	domain.EventEndCall:         domain.EventCallEnded,
	domain.EventGroupCallOffer:  domain.EventGroupCallOffer,
	domain.EventGroupCallAnswer: domain.EventGroupCallAnswer,
	domain.EventGroupCallIce:    domain.EventGroupCallIce,
}

// IsPairwise event addressed to a single peer by "to"
func IsPairwise(ev domain.Event) bool {
	_, ok := forwardedAs[ev]
	return ok
}

// Forward push a pairwise event to user:<to>. Fields other than "to" and "from" pass through
// untouched, "from" is the bound username. A missing "to" delivers nowhere.
func (s *SignalingRelay) Forward(ctx context.Context, from string, ev domain.Event, data json.RawMessage) error {
	out, ok := forwardedAs[ev]
	if !ok {
		return domain.ErrMalformedSignal
	}

	body, target, err := rewriteSignal(data, from)
	if err != nil {
		return err
	}
	if target.To == "" {
		return nil
	}
	if ev == domain.EventEndCall {
		metrics.CallsEnded.WithLabelValues(string(target.Reason)).Inc()
	}

	frame, err := domain.Encode(out, body)
	if err != nil {
		return err
	}
	metrics.SignalsRelayed.WithLabelValues(string(ev)).Inc()
	return s.broker.Publish(ctx, domain.UserTopic(target.To), frame)
}

// rewriteSignal drop "to", set "from", keep every other field byte for byte
func rewriteSignal(data json.RawMessage, from string) (json.RawMessage, domain.SignalTarget, error) {
	var target domain.SignalTarget
	fields := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, target, domain.ErrMalformedSignal
		}
	}
	// "null" 會把 map 設成 nil
	if fields == nil {
		return nil, target, domain.ErrMalformedSignal
	}

	if raw, ok := fields["to"]; ok {
		if err := json.Unmarshal(raw, &target.To); err != nil {
			return nil, target, domain.ErrMalformedSignal
		}
	}
	delete(fields, "to")

	// reason 只用於統計, 非字串照原樣轉發
	var reason string
	_ = json.Unmarshal(fields["reason"], &reason)
	target.Reason = domain.ParseEndReason(reason)

	fromJSON, _ := json.Marshal(from)
	fields["from"] = fromJSON

	body, err := marshalNoEscape(fields)
	if err != nil {
		return nil, target, domain.ErrMalformedSignal
	}
	return body, target, nil
}

func marshalNoEscape(v interface{}) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Start ring every other connection of the group
func (s *SignalingRelay) Start(ctx context.Context, from string, data json.RawMessage) error {
	var p domain.GroupCallStartPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.ErrMalformedSignal
	}
	if p.GroupID == "" {
		return nil
	}

	s.calls.Start(p.GroupID, from, p.CallType)
	metrics.SignalsRelayed.WithLabelValues(string(domain.EventGroupCallStart)).Inc()

	publish(ctx, s.broker, domain.GroupTopic(p.GroupID), domain.EventGroupCallIncoming,
		domain.GroupCallIncomingPayload{GroupID: p.GroupID, CallType: p.CallType, From: from},
		s.presence.ConnectionsOf(from)...)
	return nil
}

// Join give the joiner the participant list and tell each existing participant
func (s *SignalingRelay) Join(ctx context.Context, sess *Session, from string, data json.RawMessage) error {
	var p domain.GroupCallStartPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.ErrMalformedSignal
	}
	if p.GroupID == "" {
		return nil
	}

	others, kind := s.calls.Join(p.GroupID, from)
	metrics.SignalsRelayed.WithLabelValues(string(domain.EventGroupCallJoin)).Inc()

	reply(sess, domain.EventGroupCallParticipants, domain.GroupCallParticipantsPayload{
		GroupID:      p.GroupID,
		CallType:     kind,
		Participants: others,
	})
	joined := domain.GroupCallMemberPayload{GroupID: p.GroupID, Username: from}
	for _, u := range others {
		publish(ctx, s.broker, domain.UserTopic(u), domain.EventGroupCallParticipantJoined, joined)
	}
	return nil
}

// Leave remove from the call; the last one out ends it
func (s *SignalingRelay) Leave(ctx context.Context, from string, data json.RawMessage) error {
	var p domain.GroupCallStartPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.ErrMalformedSignal
	}
	if p.GroupID == "" {
		return nil
	}

	remaining, left := s.calls.Leave(p.GroupID, from)
	if left {
		s.announceLeave(ctx, p.GroupID, from, remaining)
	}
	return nil
}

// LeaveAll drop username from every call, used when the user's last connection is gone
func (s *SignalingRelay) LeaveAll(ctx context.Context, username string) {
	for groupID, remaining := range s.calls.LeaveAll(username) {
		s.announceLeave(ctx, groupID, username, remaining)
	}
}

// ListParticipants current participants of a group call
func (s *SignalingRelay) ListParticipants(groupID string) []string {
	return s.calls.ListParticipants(groupID)
}

func (s *SignalingRelay) announceLeave(ctx context.Context, groupID, username string, remaining []string) {
	topic := domain.GroupTopic(groupID)
	publish(ctx, s.broker, topic, domain.EventGroupCallParticipantLeft,
		domain.GroupCallMemberPayload{GroupID: groupID, Username: username},
		s.presence.ConnectionsOf(username)...)

	if len(remaining) == 0 {
		publish(ctx, s.broker, topic, domain.EventGroupCallEnded, domain.GroupCallEndedPayload{GroupID: groupID})
	}
}
