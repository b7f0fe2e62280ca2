package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

// BlobStore adapts a MinIO client to the byte-level operations the lifecycle
// manager, thumbnail pipeline and sweeper need. The bucket is fixed at
// construction.
type BlobStore struct {
	client *minio.Client
	bucket string
}

// NewBlobStore constructs the adapter.
func NewBlobStore(client *minio.Client, bucket string) *BlobStore {
	return &BlobStore{client: client, bucket: bucket}
}

// Put streams reader into the bucket at objectName. Metadata keys travel as
// user metadata on the object.
func (s *BlobStore) Put(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string, metadata map[string]string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", objectName, err)
	}
	return nil
}

// Get opens a read stream for the object.
func (s *BlobStore) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", objectName, err)
	}
	return obj, nil
}

// FGet downloads the object to a local path.
func (s *BlobStore) FGet(ctx context.Context, objectName, localPath string) error {
	if err := s.client.FGetObject(ctx, s.bucket, objectName, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download object %s: %w", objectName, err)
	}
	return nil
}

// FPut uploads a local file to the bucket.
func (s *BlobStore) FPut(ctx context.Context, objectName, localPath, contentType string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload object %s: %w", objectName, err)
	}
	return nil
}

// Remove deletes the object.
func (s *BlobStore) Remove(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", objectName, err)
	}
	return nil
}

// PresignedGet issues a short-lived signed read URL forcing an attachment
// disposition with the original filename.
func (s *BlobStore) PresignedGet(ctx context.Context, objectName string, ttl time.Duration, filename string) (string, error) {
	reqParams := make(url.Values)
	if filename != "" {
		reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, ttl, reqParams)
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", objectName, err)
	}
	return u.String(), nil
}

// IsNotFound reports whether err is the object store's missing-key error,
// however deeply wrapped.
func IsNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey"
	}
	return false
}
