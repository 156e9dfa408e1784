package services

import (
	"context"
	"strings"

	"relaychat/internal/storage"
	"relaychat/internal/transport/httpdto"
	relay_errors "relaychat/pkg/errors"

	"github.com/google/uuid"
)

// MaxAttachmentBytes bounds a single presigned attachment upload.
const MaxAttachmentBytes int64 = 25 << 20

// Presigner is the part of storage.Client the upload service needs.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, sizeBytes int64) (string, map[string]string, error)
	FileURL(key string) string
}

type UploadService struct {
	storage Presigner
	ttl     int64
}

// NewUploadService accepts a nil client; every presign then fails with
// ErrServiceUnavailable.
func NewUploadService(client *storage.Client) *UploadService {
	if client == nil {
		return &UploadService{}
	}
	return &UploadService{storage: client, ttl: int64(client.PresignTTL().Seconds())}
}

type PresignInput struct {
	UploaderID  uuid.UUID
	FileName    string
	ContentType string
	SizeBytes   int64
}

func (s *UploadService) Presign(ctx context.Context, in PresignInput) (httpdto.PresignUploadResponse, error) {
	if s == nil || s.storage == nil {
		return httpdto.PresignUploadResponse{}, relay_errors.ErrServiceUnavailable
	}
	if in.UploaderID == uuid.Nil || strings.TrimSpace(in.ContentType) == "" || in.SizeBytes <= 0 {
		return httpdto.PresignUploadResponse{}, relay_errors.ErrInvalidInput
	}
	if in.SizeBytes > MaxAttachmentBytes {
		return httpdto.PresignUploadResponse{}, relay_errors.ErrTooLarge
	}

	key := storage.AttachmentKey(in.UploaderID, in.FileName)
	url, headers, err := s.storage.PresignPut(ctx, key, in.ContentType, in.SizeBytes)
	if err != nil {
		return httpdto.PresignUploadResponse{}, err
	}
	return httpdto.PresignUploadResponse{
		UploadURL: url,
		Key:       key,
		Headers:   headers,
		PublicURL: s.storage.FileURL(key),
		ExpiresIn: s.ttl,
	}, nil
}

// AttachmentURL resolves a stored attachment key to a public URL, if any.
func (s *UploadService) AttachmentURL(key string) string {
	if s == nil || s.storage == nil {
		return ""
	}
	return s.storage.FileURL(key)
}
