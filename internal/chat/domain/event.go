package domain

import (
	"bytes"
	"encoding/json"
)

// Event websocket event name
type Event string

const (
	// EventJoin binds a username to the connection
	EventJoin Event = "join"
	// EventJoinError join rejected
	EventJoinError Event = "join_error"
	// EventGetOnlineUsers ask for the online user list
	EventGetOnlineUsers Event = "get_online_users"
	// EventOnlineUsersList online user list reply
	EventOnlineUsersList Event = "online_users_list"
	// EventUserStatusChange online/offline broadcast
	EventUserStatusChange Event = "user_status_change"

	// EventSendMessage client sends a chat message
	EventSendMessage Event = "send_message"
	// EventReceiveMessage stored message pushed to recipients
	EventReceiveMessage Event = "receive_message"
	// EventMessageSent stored message echoed to the origin connection
	EventMessageSent Event = "message_sent"
	// EventMessageError validation failure, origin only
	EventMessageError Event = "message_error"
	// EventMessageFailed store unavailable, origin only
	EventMessageFailed Event = "message_failed"

	// EventTyping typing indicator in
	EventTyping Event = "typing"
	// EventUserTyping typing indicator out
	EventUserTyping Event = "user_typing"
	// EventStopTyping stop typing, same name both directions
	EventStopTyping Event = "stop_typing"

	// EventDeleteForEveryone soft delete request
	EventDeleteForEveryone Event = "delete_message_for_everyone"
	// EventMessageDeleted soft delete notification
	EventMessageDeleted Event = "message_deleted"
	// EventDeleteForMe hide on the requester's devices
	EventDeleteForMe Event = "delete_message_for_me"
	// EventMessageHidden hide notification to the requester's other connections
	EventMessageHidden Event = "message_hidden"
	// EventMarkRead read receipt request
	EventMarkRead Event = "mark_read"
	// EventMessageRead read receipt to the sender
	EventMessageRead Event = "message_read"

	// EventCallOffer 1:1 offer
	EventCallOffer Event = "call_offer"
	// EventCallAnswer 1:1 answer
	EventCallAnswer Event = "call_answer"
	// EventIceCandidate 1:1 ice candidate
	EventIceCandidate Event = "ice_candidate"
	// EventEndCall end request
	EventEndCall Event = "end_call"
	// EventCallEnded end notification
	EventCallEnded Event = "call_ended"

	// EventGroupCallStart group call start
	EventGroupCallStart Event = "group_call_start"
	// EventGroupCallIncoming group call ringing
	EventGroupCallIncoming Event = "group_call_incoming"
	// EventGroupCallJoin join a group call
	EventGroupCallJoin Event = "group_call_join"
	// EventGroupCallParticipants participant list to the joiner
	EventGroupCallParticipants Event = "group_call_participants"
	// EventGroupCallParticipantJoined new participant to existing participants
	EventGroupCallParticipantJoined Event = "group_call_participant_joined"
	// EventGroupCallLeave leave a group call
	EventGroupCallLeave Event = "group_call_leave"
	// EventGroupCallParticipantLeft participant gone
	EventGroupCallParticipantLeft Event = "group_call_participant_left"
	// EventGroupCallEnded last participant left
	EventGroupCallEnded Event = "group_call_ended"
	// EventGroupCallOffer pairwise offer
	EventGroupCallOffer Event = "group_call_offer"
	// EventGroupCallAnswer pairwise answer
	EventGroupCallAnswer Event = "group_call_answer"
	// EventGroupCallIce pairwise ice candidate
	EventGroupCallIce Event = "group_call_ice"

	// EventError unknown or malformed request
	EventError Event = "error"
)

// Envelope one websocket frame, {"event": ..., "data": ...}
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound server to client frame
type Outbound struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data"`
}

// Encode marshal an outbound frame. HTML characters are not escaped so opaque
// payloads such as SDP reach the peer unchanged.
func Encode(ev Event, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Outbound{Event: ev, Data: data}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ErrorPayload error / message_error / join_error body
type ErrorPayload struct {
	Error  string `json:"error"`
	TempID string `json:"tempId,omitempty"`
}

// JoinPayload join body; a bare JSON string is also accepted
type JoinPayload struct {
	Username string `json:"username"`
}

// UnmarshalJSON accept {"username": "x"} or "x"
func (p *JoinPayload) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		p.Username = name
		return nil
	}
	type plain JoinPayload
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = JoinPayload(v)
	return nil
}

// StatusPayload user_status_change body
type StatusPayload struct {
	Username string `json:"username"`
	Status   Status `json:"status"`
}

// Status presence status
type Status string

const (
	// StatusOnline first connection bound
	StatusOnline Status = "online"
	// StatusOffline last connection dropped
	StatusOffline Status = "offline"
)

// TypingPayload typing / stop_typing body
type TypingPayload struct {
	From    string `json:"from"`
	To      string `json:"to,omitempty"`
	GroupID string `json:"groupId,omitempty"`
}

// MessageRefPayload body carrying a single message id
type MessageRefPayload struct {
	MessageID string `json:"messageId"`
}

// MessageDeletedPayload message_deleted body
type MessageDeletedPayload struct {
	MessageID      string   `json:"messageId"`
	GroupID        string   `json:"groupId,omitempty"`
	From           string   `json:"from"`
	To             string   `json:"to,omitempty"`
	NewLastMessage *Message `json:"newLastMessage,omitempty"`
}

// MessageReadPayload message_read body
type MessageReadPayload struct {
	MessageID string `json:"messageId"`
	By        string `json:"by"`
}
