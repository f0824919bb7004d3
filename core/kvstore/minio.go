package kvstore

import (
	"bytes"
	"context"
	"io"
	"strings"

	"booksync/core/storage"

	"github.com/minio/minio-go/v7"
)

// objectStore persists keys as objects under a prefix in the shared bucket.
type objectStore struct {
	client storage.Client
	bucket string
	prefix string
}

// NewObjectStore creates a Store backed by the object storage client.
// Keys map to objects "<prefix>/<key>.json".
func NewObjectStore(client storage.Client, bucket, prefix string) Store {
	return &objectStore{
		client: client,
		bucket: bucket,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

func (s *objectStore) objectName(key string) string {
	// Keys may contain colons (cache partition separators); object names keep them.
	return s.prefix + "/" + key + ".json"
}

func (s *objectStore) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.client.GetObject(ctx, s.bucket, s.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *objectStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectName(key), bytes.NewReader(value), int64(len(value)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (s *objectStore) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, s.objectName(key), minio.RemoveObjectOptions{})
}
