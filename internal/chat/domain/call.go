package domain

// CallKind voice or video
type CallKind string

const (
	// CallVoice audio only
	CallVoice CallKind = "voice"
	// CallVideo audio and video
	CallVideo CallKind = "video"
)

// EndReason why a call ended
type EndReason string

const (
	// EndUnspecified no or unknown reason
	EndUnspecified EndReason = "unspecified"
	// EndMissed callee never answered
	EndMissed EndReason = "missed"
	// EndRejected callee declined
	EndRejected EndReason = "rejected"
)

// ParseEndReason known reasons pass, anything else is unspecified
func ParseEndReason(raw string) EndReason {
	switch r := EndReason(raw); r {
	case EndMissed, EndRejected:
		return r
	default:
		return EndUnspecified
	}
}

// SignalTarget fields the relay reads from a signaling body; everything else is forwarded untouched
type SignalTarget struct {
	To     string
	Reason EndReason
}

// GroupCallStartPayload group_call_start body
type GroupCallStartPayload struct {
	GroupID  string   `json:"groupId"`
	CallType CallKind `json:"callType,omitempty"`
}

// GroupCallIncomingPayload group_call_incoming body
type GroupCallIncomingPayload struct {
	GroupID  string   `json:"groupId"`
	CallType CallKind `json:"callType,omitempty"`
	From     string   `json:"from"`
}

// GroupCallParticipantsPayload group_call_participants body
type GroupCallParticipantsPayload struct {
	GroupID      string   `json:"groupId"`
	CallType     CallKind `json:"callType,omitempty"`
	Participants []string `json:"participants"`
}

// GroupCallMemberPayload participant joined / left body
type GroupCallMemberPayload struct {
	GroupID  string `json:"groupId"`
	Username string `json:"username"`
}

// GroupCallEndedPayload group_call_ended body
type GroupCallEndedPayload struct {
	GroupID string `json:"groupId"`
}
