package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/your-org/roomgate/internal/config"
	"github.com/your-org/roomgate/internal/gallery"
)

const (
	samplesPrefix = "samples/"
	facesPrefix   = "faces/"
)

// SampleKey is the object key of a person's main sample photo.
func SampleKey(personID string) string {
	return samplesPrefix + personID + ".jpg"
}

// FaceImageKey is the object key of one uploaded enrollment image.
func FaceImageKey(personID, name string) string {
	return facesPrefix + personID + "/" + name + ".jpg"
}

// MinIOStore holds enrollment images and the .npy gallery.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

func (s *MinIOStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *MinIOStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// ListObjects returns all object keys under prefix.
func (s *MinIOStore) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// PutEmbedding stores one enrollment vector as embeddings/<person>/<name>.npy
// and returns its key.
func (s *MinIOStore) PutEmbedding(ctx context.Context, personID, name string, vec []float32) (string, error) {
	key := gallery.ObjectKey(personID, name)
	if err := s.PutObject(ctx, key, gallery.EncodeNPY(vec), "application/octet-stream"); err != nil {
		return "", err
	}
	return key, nil
}

// RemovePerson deletes every object owned by personID.
func (s *MinIOStore) RemovePerson(ctx context.Context, personID string) error {
	var keys []string
	for _, prefix := range []string{gallery.EmbeddingsPrefix + personID + "/", facesPrefix + personID + "/"} {
		k, err := s.ListObjects(ctx, prefix)
		if err != nil {
			return err
		}
		keys = append(keys, k...)
	}
	keys = append(keys, SampleKey(personID))
	return s.RemoveObjects(ctx, keys...)
}

// RemoveObjects deletes keys in one batch. Missing keys are not an error.
func (s *MinIOStore) RemoveObjects(ctx context.Context, keys ...string) error {
	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)
	for result := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if result.Err != nil {
			return fmt.Errorf("delete object %s: %w", result.ObjectName, result.Err)
		}
	}
	return nil
}

// Ping checks MinIO connectivity.
func (s *MinIOStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
