package repository

import (
	"context"
	"path"
	"strings"
	"time"

	"realtime_chat_service/pkg/database"
	errprocess "realtime_chat_service/pkg/err"

	"github.com/google/uuid"
)

// AttachmentStore object storage for decoded file payloads
type AttachmentStore interface {
	// Save 上傳檔案並回傳可下載的 url
	Save(ctx context.Context, name, contentType string, data []byte) (string, error)
}

type minioAttachmentStore struct {
	client database.MinIOClientRepo
	expiry time.Duration
}

// NewMinIOAttachmentStore create an AttachmentStore on minio
func NewMinIOAttachmentStore(client database.MinIOClientRepo, expiry time.Duration) AttachmentStore {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &minioAttachmentStore{client: client, expiry: expiry}
}

func (s *minioAttachmentStore) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := AttachmentKey(uuid.NewString(), name)
	if err := s.client.PutBytes(ctx, key, contentType, data); err != nil {
		return "", errprocess.Wrap("put attachment "+key, err)
	}
	url, err := s.client.PresignGetURL(ctx, key, s.expiry)
	if err != nil {
		return "", errprocess.Wrap("presign attachment "+key, err)
	}
	return url, nil
}

// AttachmentKey attachments/<id>/<base name>
func AttachmentKey(id, name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return "attachments/" + id + "/" + base
}
