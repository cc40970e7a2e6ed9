package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/metrics"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// MessageGateway validates and stores chat messages
type MessageGateway struct {
	messages    repository.MessageRepository
	attachments repository.AttachmentStore
	audit       repository.AuditLog
	policy      domain.FilePolicy
	now         func() time.Time

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// GatewayOption optional collaborator
type GatewayOption func(*MessageGateway)

// WithAttachmentStore upload file payloads instead of storing them inline
func WithAttachmentStore(s repository.AttachmentStore) GatewayOption {
	return func(g *MessageGateway) { g.attachments = s }
}

// WithAuditLog record every stored message
func WithAuditLog(a repository.AuditLog) GatewayOption {
	return func(g *MessageGateway) { g.audit = a }
}

// WithClock override time source
func WithClock(now func() time.Time) GatewayOption {
	return func(g *MessageGateway) { g.now = now }
}

// NewMessageGateway create MessageGateway
func NewMessageGateway(messages repository.MessageRepository, policy domain.FilePolicy, opts ...GatewayOption) *MessageGateway {
	g := &MessageGateway{
		messages: messages,
		policy:   policy,
		now:      time.Now,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate check recipient, content and file; returns a *domain.ValidationError
func (g *MessageGateway) Validate(req domain.SendRequest) error {
	if req.Dest == nil {
		return domain.NewValidationError(domain.ErrNoRecipient, "")
	}

	hasFile := req.File != nil && req.File.Data != ""
	if strings.TrimSpace(req.Text) == "" && !hasFile {
		return domain.NewValidationError(domain.ErrEmptyMessage, "")
	}
	if !hasFile {
		return nil
	}

	uri := parseDataURI(req.File.Data)
	size := req.File.Size
	if n := uri.decodedLen(); n > size {
		size = n
	}
	if size > g.policy.MaxBytes {
		return domain.NewValidationError(domain.ErrFileTooLarge, fmt.Sprintf("%d bytes, limit %d", size, g.policy.MaxBytes))
	}

	mimeType := req.File.Type
	if mimeType == "" {
		mimeType = uri.mimeType
	}
	if !g.policy.Allows(mimeType) {
		return domain.NewValidationError(domain.ErrFileTypeNotAllowed, mimeType)
	}
	return nil
}

// Persist validate then store; the returned record carries the durable id
func (g *MessageGateway) Persist(ctx context.Context, req domain.SendRequest) (*domain.Message, error) {
	if err := g.Validate(req); err != nil {
		metrics.MessagesFailed.WithLabelValues("validation").Inc()
		return nil, err
	}

	now := g.now()
	msg := &domain.Message{
		ID:        g.newID(now),
		ChatKey:   req.Dest.ChatKey(req.From),
		From:      req.From,
		Text:      req.Text,
		ReplyTo:   req.ReplyTo,
		CreatedAt: now.UnixMilli(),
	}

	kind := "private"
	switch d := req.Dest.(type) {
	case domain.PrivateDestination:
		msg.To = d.Username
	case domain.GroupDestination:
		msg.To = d.GroupID
		msg.GroupID = d.GroupID
		kind = "group"
	}

	if req.File != nil && req.File.Data != "" {
		file, err := g.storeFile(ctx, req.File)
		if err != nil {
			metrics.MessagesFailed.WithLabelValues("attachment").Inc()
			return nil, &domain.PersistenceError{Op: "attachment", Err: err}
		}
		msg.File = file
	}

	start := time.Now()
	err := g.messages.Insert(ctx, msg)
	metrics.PersistLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MessagesFailed.WithLabelValues("store").Inc()
		return nil, &domain.PersistenceError{Op: "insert", Err: err}
	}
	metrics.MessagesPersisted.WithLabelValues(kind).Inc()

	if g.audit != nil {
		if err := g.audit.Record(ctx, msg); err != nil {
			logger.Log.Warn("audit record failed", zap.String("messageID", msg.ID), zap.Error(err))
		}
	}
	return msg, nil
}

func (g *MessageGateway) storeFile(ctx context.Context, in *domain.FileAttachment) (*domain.FileAttachment, error) {
	uri := parseDataURI(in.Data)
	file := &domain.FileAttachment{
		Name: in.Name,
		Type: in.Type,
		Size: uri.decodedLen(),
		Data: in.Data,
	}
	if file.Type == "" {
		file.Type = uri.mimeType
	}
	if in.Size > file.Size {
		file.Size = in.Size
	}

	if g.attachments == nil {
		return file, nil
	}

	data, err := uri.decode()
	if err != nil {
		return nil, fmt.Errorf("decode file payload: %w", err)
	}
	link, err := g.attachments.Save(ctx, file.Name, file.Type, data)
	if err != nil {
		return nil, err
	}
	file.Data = ""
	file.URL = link
	file.Size = int64(len(data))
	return file, nil
}

func (g *MessageGateway) newID(t time.Time) string {
	g.idMu.Lock()
	defer g.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}

// dataURI data:[<mime>][;base64],<payload>; a value without the data: prefix is raw base64
type dataURI struct {
	mimeType string
	base64   bool
	payload  string
}

func parseDataURI(s string) dataURI {
	if !strings.HasPrefix(s, "data:") {
		return dataURI{base64: true, payload: s}
	}
	header, payload, found := strings.Cut(s[len("data:"):], ",")
	if !found {
		return dataURI{payload: ""}
	}

	u := dataURI{payload: payload}
	parts := strings.Split(header, ";")
	u.mimeType = parts[0]
	for _, p := range parts[1:] {
		if p == "base64" {
			u.base64 = true
		}
	}
	return u
}

// decodedLen payload byte size without decoding it
func (u dataURI) decodedLen() int64 {
	if !u.base64 {
		if raw, err := url.PathUnescape(u.payload); err == nil {
			return int64(len(raw))
		}
		return int64(len(u.payload))
	}

	n := len(u.payload)
	if n%4 != 0 {
		return int64(base64.RawStdEncoding.DecodedLen(n))
	}
	pad := 0
	for i := n - 1; i >= 0 && i >= n-2 && u.payload[i] == '='; i-- {
		pad++
	}
	return int64(n/4*3 - pad)
}

func (u dataURI) decode() ([]byte, error) {
	if !u.base64 {
		raw, err := url.PathUnescape(u.payload)
		return []byte(raw), err
	}
	if len(u.payload)%4 != 0 {
		return base64.RawStdEncoding.DecodeString(u.payload)
	}
	return base64.StdEncoding.DecodeString(u.payload)
}
