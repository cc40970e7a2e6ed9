package repository

import (
	"context"
	"encoding/json"

	"realtime_chat_service/internal/chat/domain"
	errprocess "realtime_chat_service/pkg/err"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter subset of *kafka.Writer used by the audit log
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// AuditLog append-only record of stored messages
type AuditLog interface {
	Record(ctx context.Context, msg *domain.Message) error
}

type kafkaAuditLog struct {
	writer KafkaWriter
}

// NewKafkaAuditLog create an AuditLog on kafka
func NewKafkaAuditLog(writer KafkaWriter) AuditLog {
	return &kafkaAuditLog{writer: writer}
}

// auditRecord message without inline file bytes
type auditRecord struct {
	*domain.Message
	ChatKey string `json:"chatKey"`
}

func (a *kafkaAuditLog) Record(ctx context.Context, msg *domain.Message) error {
	rec := *msg
	if rec.File != nil {
		f := *rec.File
		f.Data = ""
		rec.File = &f
	}
	rec.TempID = ""

	value, err := json.Marshal(auditRecord{Message: &rec, ChatKey: rec.ChatKey})
	if err != nil {
		return err
	}
	if err := a.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.ChatKey),
		Value: value,
	}); err != nil {
		return errprocess.Wrap("audit message "+rec.ID, err)
	}
	return nil
}
