// Package storage uploads catalog interchange snapshots to MinIO and
// fetches them back.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"cratefm/config"
	"cratefm/logger"
)

const snapshotPrefix = "snapshots/"

// SnapshotStore keeps timestamped catalog dumps in a single bucket.
type SnapshotStore struct {
	client *minio.Client
	bucket string
}

// NewSnapshotStore connects to MinIO and makes sure the bucket exists.
func NewSnapshotStore(cfg *config.Config) (*SnapshotStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("Created snapshot bucket", logger.String("bucket", cfg.MinioBucket))
	}

	logger.Info("Snapshot store ready",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))
	return &SnapshotStore{client: client, bucket: cfg.MinioBucket}, nil
}

// Upload stores an interchange document under a timestamped object name
// and returns the name.
func (s *SnapshotStore) Upload(ctx context.Context, data []byte) (string, error) {
	name := fmt.Sprintf("%scatalog-%s.json", snapshotPrefix, time.Now().UTC().Format("20060102-150405"))

	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot %s: %w", name, err)
	}

	logger.Info("Snapshot uploaded",
		logger.String("object", name),
		logger.Int("bytes", len(data)))
	return name, nil
}

// Download fetches a snapshot by object name.
func (s *SnapshotStore) Download(ctx context.Context, name string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", name, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", name, err)
	}
	return data, nil
}

// List returns all snapshot object names, newest first.
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	names := []string{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: snapshotPrefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", obj.Err)
		}
		names = append(names, obj.Key)
	}
	// Timestamped names sort chronologically.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Latest returns the name of the newest snapshot, "" when none exist.
func (s *SnapshotStore) Latest(ctx context.Context) (string, error) {
	names, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", nil
	}
	return names[0], nil
}
