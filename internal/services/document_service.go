package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"ledgerdesk/internal/common"
)

// DocumentService is the scanned-document source and archive. Pending
// documents sit in the inbox bucket next to a ".json" extraction sidecar;
// posted documents are relocated into the archive bucket keyed by vendor
// and timestamp.
type DocumentService interface {
	ListPending(ctx context.Context) ([]string, error)
	GetObject(ctx context.Context, objectKey string) ([]byte, error)
	GetSidecar(ctx context.Context, objectKey string) ([]byte, error)
	Archive(ctx context.Context, objectKey, vendor string, when time.Time) (string, error)
	EnsureBuckets(ctx context.Context) error
}

type minioDocuments struct {
	client        *minio.Client
	inboxBucket   string
	archiveBucket string
}

func NewDocumentService(endpoint, accessKey, secretKey string, useSSL bool, inboxBucket, archiveBucket string) (DocumentService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return NewDocumentServiceWithClient(client, inboxBucket, archiveBucket), nil
}

func NewDocumentServiceWithClient(client *minio.Client, inboxBucket, archiveBucket string) DocumentService {
	return &minioDocuments{client: client, inboxBucket: inboxBucket, archiveBucket: archiveBucket}
}

func (m *minioDocuments) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{m.inboxBucket, m.archiveBucket} {
		found, err := m.client.BucketExists(ctx, bucket)
		if err != nil {
			return err
		}
		if !found {
			if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return err
			}
		}
	}
	return nil
}

// ListPending returns the document object keys in the inbox. Sidecar
// files are not documents themselves.
func (m *minioDocuments) ListPending(ctx context.Context) ([]string, error) {
	var keys []string
	for object := range m.client.ListObjects(ctx, m.inboxBucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return nil, object.Err
		}
		if strings.HasSuffix(object.Key, ".json") {
			continue
		}
		keys = append(keys, object.Key)
	}
	return keys, nil
}

func (m *minioDocuments) getBytes(ctx context.Context, bucket, key string) ([]byte, error) {
	object, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()
	return io.ReadAll(object)
}

func (m *minioDocuments) GetObject(ctx context.Context, objectKey string) ([]byte, error) {
	return m.getBytes(ctx, m.inboxBucket, objectKey)
}

// GetSidecar fetches the structured extraction result for a document.
func (m *minioDocuments) GetSidecar(ctx context.Context, objectKey string) ([]byte, error) {
	return m.getBytes(ctx, m.inboxBucket, sidecarKey(objectKey))
}

func sidecarKey(objectKey string) string {
	return strings.TrimSuffix(objectKey, path.Ext(objectKey)) + ".json"
}

// Archive copies a document (and its sidecar, when present) into the
// archive bucket under vendor/timestamp, then removes it from the inbox.
func (m *minioDocuments) Archive(ctx context.Context, objectKey, vendor string, when time.Time) (string, error) {
	vendorDir := common.NormalizePayee(vendor)
	if vendorDir == "" {
		vendorDir = "unknown"
	}
	vendorDir = strings.ReplaceAll(vendorDir, " ", "_")
	destKey := fmt.Sprintf("%s/%s/%s", vendorDir, when.Format("20060102T150405"), path.Base(objectKey))

	keys := []string{objectKey}
	if _, err := m.client.StatObject(ctx, m.inboxBucket, sidecarKey(objectKey), minio.StatObjectOptions{}); err == nil {
		keys = append(keys, sidecarKey(objectKey))
	}

	for _, key := range keys {
		dest := destKey
		if key != objectKey {
			dest = strings.TrimSuffix(destKey, path.Ext(destKey)) + ".json"
		}
		_, err := m.client.CopyObject(ctx,
			minio.CopyDestOptions{Bucket: m.archiveBucket, Object: dest},
			minio.CopySrcOptions{Bucket: m.inboxBucket, Object: key},
		)
		if err != nil {
			return "", fmt.Errorf("failed to archive %s: %w", key, err)
		}
		if err := m.client.RemoveObject(ctx, m.inboxBucket, key, minio.RemoveObjectOptions{}); err != nil {
			return "", fmt.Errorf("failed to remove %s from inbox: %w", key, err)
		}
	}
	return destKey, nil
}
