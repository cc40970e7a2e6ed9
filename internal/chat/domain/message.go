package domain

import (
	"sort"
	"strings"
)

// TombstoneText replaces the text of a message deleted for everyone
const TombstoneText = "This message was deleted"

// Topic named fan-out channel
type Topic string

// UserTopic topic every connection of username subscribes to
func UserTopic(username string) Topic {
	return Topic("user:" + username)
}

// GroupTopic topic every connection of a group member subscribes to
func GroupTopic(groupID string) Topic {
	return Topic("group:" + groupID)
}

// Destination where a message goes: PrivateDestination or GroupDestination
type Destination interface {
	Topic() Topic
	ChatKey(from string) string
	isDestination()
}

// PrivateDestination 1 on 1
type PrivateDestination struct {
	Username string
}

// Topic recipient's user topic
func (d PrivateDestination) Topic() Topic { return UserTopic(d.Username) }

// ChatKey same key for both directions of the conversation
func (d PrivateDestination) ChatKey(from string) string { return PrivateChatKey(from, d.Username) }

func (PrivateDestination) isDestination() {}

// GroupDestination group chat
type GroupDestination struct {
	GroupID string
}

// Topic group topic
func (d GroupDestination) Topic() Topic { return GroupTopic(d.GroupID) }

// ChatKey group key
func (d GroupDestination) ChatKey(string) string { return GroupChatKey(d.GroupID) }

func (GroupDestination) isDestination() {}

// PrivateChatKey order-independent key for a 1 on 1 chat
func PrivateChatKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return "dm:" + strings.Join(pair, "|")
}

// GroupChatKey key for a group chat
func GroupChatKey(groupID string) string {
	return "group:" + groupID
}

// FileAttachment file carried by a message; Data is a data URI, URL is set when offloaded
type FileAttachment struct {
	Name string `bson:"name" json:"name"`
	Type string `bson:"type" json:"type"`
	Size int64  `bson:"size" json:"size"`
	Data string `bson:"data,omitempty" json:"data,omitempty"`
	URL  string `bson:"url,omitempty" json:"url,omitempty"`
}

// ReplyRef quoted message
type ReplyRef struct {
	MessageID string `bson:"message_id" json:"messageId"`
	Text      string `bson:"text,omitempty" json:"text,omitempty"`
	Sender    string `bson:"sender,omitempty" json:"sender,omitempty"`
}

// Message stored chat message. GroupID empty means private.
type Message struct {
	ID        string          `bson:"_id" json:"id"`
	ChatKey   string          `bson:"chat_key" json:"-"`
	From      string          `bson:"from" json:"from"`
	To        string          `bson:"to,omitempty" json:"to,omitempty"`
	GroupID   string          `bson:"group_id,omitempty" json:"groupId,omitempty"`
	Text      string          `bson:"message,omitempty" json:"message,omitempty"`
	File      *FileAttachment `bson:"file,omitempty" json:"file,omitempty"`
	ReplyTo   *ReplyRef       `bson:"reply_to,omitempty" json:"replyTo,omitempty"`
	CreatedAt int64           `bson:"created_at" json:"createdAt"` // unix millis
	IsDeleted bool            `bson:"is_deleted" json:"isDeleted"`
	Read      bool            `bson:"read" json:"read"`

	// TempID client id echoed back to the origin, never stored
	TempID string `bson:"-" json:"tempId,omitempty"`
}

// Destination tagged destination of the stored message
func (m *Message) Destination() Destination {
	if m.GroupID != "" {
		return GroupDestination{GroupID: m.GroupID}
	}
	return PrivateDestination{Username: m.To}
}

// SendMessagePayload send_message body
type SendMessagePayload struct {
	From    string          `json:"from"`
	To      string          `json:"to,omitempty"`
	Message string          `json:"message,omitempty"`
	File    *FileAttachment `json:"file,omitempty"`
	GroupID string          `json:"groupId,omitempty"`
	TempID  string          `json:"tempId,omitempty"`
	ReplyTo *ReplyRef       `json:"replyTo,omitempty"`
}

// Destination nil when neither groupId nor to is set
func (p SendMessagePayload) Destination() Destination {
	switch {
	case p.GroupID != "":
		return GroupDestination{GroupID: p.GroupID}
	case p.To != "":
		return PrivateDestination{Username: p.To}
	}
	return nil
}

// SendRequest input of the message gateway
type SendRequest struct {
	From    string
	Dest    Destination
	Text    string
	File    *FileAttachment
	ReplyTo *ReplyRef
}

// HistoryQuery paging for history reads
type HistoryQuery struct {
	Limit  int64
	Before int64 // unix millis, 0 means now
}
