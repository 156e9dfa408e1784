package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	relay_errors "relaychat/pkg/errors"

	"github.com/google/uuid"
)

type stubPresigner struct{}

func (stubPresigner) PresignPut(_ context.Context, key, contentType string, _ int64) (string, map[string]string, error) {
	return "https://bucket.example/" + key + "?sig=1", map[string]string{"Content-Type": contentType}, nil
}

func (stubPresigner) FileURL(key string) string { return "https://cdn.example/" + key }

func TestPresignWithoutStorage(t *testing.T) {
	svc := NewUploadService(nil)
	_, err := svc.Presign(context.Background(), PresignInput{UploaderID: uuid.New(), ContentType: "image/png", SizeBytes: 10})
	if !errors.Is(err, relay_errors.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
	if svc.AttachmentURL("attachments/x") != "" {
		t.Fatal("no url without storage")
	}
}

func TestPresignIssuesOwnedKey(t *testing.T) {
	svc := &UploadService{storage: stubPresigner{}, ttl: 900}
	owner := uuid.New()

	res, err := svc.Presign(context.Background(), PresignInput{UploaderID: owner, FileName: "Cat.PNG", ContentType: "image/png", SizeBytes: 1024})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(res.Key, "attachments/"+owner.String()+"/") || !strings.HasSuffix(res.Key, ".png") {
		t.Fatalf("key = %q", res.Key)
	}
	if res.PublicURL != "https://cdn.example/"+res.Key || res.ExpiresIn != 900 {
		t.Fatalf("response = %+v", res)
	}

	_, err = svc.Presign(context.Background(), PresignInput{UploaderID: owner, ContentType: "video/mp4", SizeBytes: MaxAttachmentBytes + 1})
	if !errors.Is(err, relay_errors.ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}
