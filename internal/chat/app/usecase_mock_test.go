package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Insert mock
func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// FindByID mock
func (m *MockMessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// SoftDelete mock
func (m *MockMessageRepository) SoftDelete(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkRead mock
func (m *MockMessageRepository) MarkRead(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindLastMessage mock
func (m *MockMessageRepository) FindLastMessage(ctx context.Context, chatKey string) (*domain.Message, error) {
	args := m.Called(ctx, chatKey)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindHistory mock
func (m *MockMessageRepository) FindHistory(ctx context.Context, chatKey string, q domain.HistoryQuery) ([]domain.Message, error) {
	args := m.Called(ctx, chatKey, q)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// EnsureIndexes mock
func (m *MockMessageRepository) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockGroupRepository Mock GroupRepository
type MockGroupRepository struct {
	mock.Mock
}

// FindByID mock
func (m *MockGroupRepository) FindByID(ctx context.Context, groupID string) (*domain.Group, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Group), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindGroupIDsByMember mock
func (m *MockGroupRepository) FindGroupIDsByMember(ctx context.Context, username string) ([]string, error) {
	args := m.Called(ctx, username)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAttachmentStore Mock AttachmentStore
type MockAttachmentStore struct {
	mock.Mock
}

// Save mock
func (m *MockAttachmentStore) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, name, contentType, data)
	return args.String(0), args.Error(1)
}

// MockAuditLog Mock AuditLog
type MockAuditLog struct {
	mock.Mock
}

// Record mock
func (m *MockAuditLog) Record(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockLastSeenRecorder Mock LastSeenRecorder
type MockLastSeenRecorder struct {
	mock.Mock
}

// RecordLastSeen mock
func (m *MockLastSeenRecorder) RecordLastSeen(ctx context.Context, username string, at time.Time) error {
	args := m.Called(ctx, username, at)
	return args.Error(0)
}

// fakeConnection records every frame it is sent
type fakeConnection struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
}

func newFakeConnection(id string) *fakeConnection {
	return &fakeConnection{id: id}
}

func (c *fakeConnection) ID() string { return c.id }

func (c *fakeConnection) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return true
}

// received decoded envelopes in arrival order
func (c *fakeConnection) received() []domain.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		var env domain.Envelope
		if err := json.Unmarshal(f, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

// events payloads of ev, in arrival order
func (c *fakeConnection) events(ev domain.Event) []json.RawMessage {
	var out []json.RawMessage
	for _, env := range c.received() {
		if env.Event == ev {
			out = append(out, env.Data)
		}
	}
	return out
}

func (c *fakeConnection) rawFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func (c *fakeConnection) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

// memoryMessages in-memory MessageRepository for relay flows
type memoryMessages struct {
	mu   sync.Mutex
	byID map[string]*domain.Message
	seq  []string
}

func newMemoryMessages() *memoryMessages {
	return &memoryMessages{byID: make(map[string]*domain.Message)}
}

func (r *memoryMessages) Insert(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	r.byID[msg.ID] = &cp
	r.seq = append(r.seq, msg.ID)
	return nil
}

func (r *memoryMessages) FindByID(_ context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memoryMessages) SoftDelete(_ context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m.IsDeleted = true
	m.Text = domain.TombstoneText
	m.File = nil
	m.ReplyTo = nil
	cp := *m
	return &cp, nil
}

func (r *memoryMessages) MarkRead(_ context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m.Read = true
	cp := *m
	return &cp, nil
}

func (r *memoryMessages) FindLastMessage(_ context.Context, chatKey string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.seq) - 1; i >= 0; i-- {
		if m := r.byID[r.seq[i]]; m.ChatKey == chatKey {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryMessages) FindHistory(_ context.Context, chatKey string, _ domain.HistoryQuery) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, id := range r.seq {
		if m := r.byID[id]; m.ChatKey == chatKey {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memoryMessages) EnsureIndexes(context.Context) error { return nil }

func (r *memoryMessages) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seq)
}

// testRelay wired relay on a local hub
type testRelay struct {
	hub        *TopicHub
	presence   *PresenceRegistry
	messages   *memoryMessages
	groups     *MockGroupRepository
	relay      *Relay
	signaling  *SignalingRelay
	dispatcher *Dispatcher
}

func newTestRelay(lastSeen LastSeenRecorder) *testRelay {
	tr := &testRelay{
		hub:      NewTopicHub(),
		presence: NewPresenceRegistry(),
		messages: newMemoryMessages(),
		groups:   new(MockGroupRepository),
	}
	gateway := NewMessageGateway(tr.messages, domain.NewFilePolicy(0, nil))
	tr.relay = NewRelay(tr.hub, tr.presence, NewRoomResolver(tr.groups), gateway, tr.messages, lastSeen)
	tr.signaling = NewSignalingRelay(tr.hub, tr.presence, NewGroupCallTracker())
	tr.dispatcher = NewDispatcher(tr.relay, tr.signaling)
	return tr
}

// connect open a connection and join it as username
func (tr *testRelay) connect(id, username string, groups ...string) (*fakeConnection, *Session) {
	if groups == nil {
		groups = []string{}
	}
	tr.groups.On("FindGroupIDsByMember", mock.Anything, username).Return(groups, nil).Maybe()

	conn := newFakeConnection(id)
	sess := NewSession(conn, "")
	tr.dispatcher.Connect(sess)
	if username != "" {
		tr.dispatch(sess, domain.EventJoin, domain.JoinPayload{Username: username})
	}
	return conn, sess
}

func (tr *testRelay) dispatch(sess *Session, ev domain.Event, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	tr.dispatcher.Dispatch(context.Background(), sess, domain.Envelope{Event: ev, Data: raw})
}
