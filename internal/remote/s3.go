package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/lifexp/internal/config"
	"github.com/hyperengineering/lifexp/internal/types"
)

// s3Client defines the minimal object operations used by S3.
// GetObject returns ErrNotFound for a missing key.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName string, data []byte) error
	GetObject(ctx context.Context, bucket, objectName string) ([]byte, error)
}

// minioClientWrapper adapts *minio.Client to s3Client.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, objectName string, data []byte) error {
	_, err := w.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (w *minioClientWrapper) GetObject(ctx context.Context, bucket, objectName string) ([]byte, error) {
	obj, err := w.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxSnapshotBytes))
	if err != nil {
		return nil, notFound(err)
	}
	return data, nil
}

func notFound(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}

// S3 stores snapshots in S3-compatible object storage.
type S3 struct {
	client s3Client
	bucket string
}

// NewS3 creates an S3 remote. UseSSL defaults to true.
func NewS3(cfg config.S3Config) (*S3, error) {
	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3{
		client: &minioClientWrapper{client: client},
		bucket: cfg.Bucket,
	}, nil
}

// Pull downloads the user's snapshot.
func (s *S3) Pull(ctx context.Context, userID string) (*types.RemoteSnapshot, error) {
	data, err := s.client.GetObject(ctx, s.bucket, objectKey(userID))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("download snapshot from S3: %w", err)
	}
	return decode(data)
}

// Push uploads the user's snapshot, replacing the previous one.
func (s *S3) Push(ctx context.Context, userID string, snap *types.RemoteSnapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	if err := s.client.PutObject(ctx, s.bucket, objectKey(userID), data); err != nil {
		return fmt.Errorf("upload snapshot to S3: %w", err)
	}
	return nil
}

// objectKey returns the object key for a user's snapshot.
// Convention: {user_id}/snapshot/current.json
func objectKey(userID string) string {
	return userID + "/snapshot/current.json"
}
