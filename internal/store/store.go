// Package store persists chart resource snapshots in S3-compatible
// object storage, so a release state captured before a risky upgrade
// survives the process that took it.
package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-logr/logr"
)

// Config describes the object storage endpoint the snapshots go to.
// Any S3-compatible service works; ForcePathStyle is needed for
// minio-style endpoints that do not resolve bucket subdomains.
type Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// Store uploads, downloads and discards snapshot directories as sets of
// objects under a shared key prefix.
type Store struct {
	s3     *s3.Client
	bucket string
	log    logr.Logger
}

// New creates a Store from the given endpoint configuration.
func New(cfg Config, log logr.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("snapshot store bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Store{s3: client, bucket: cfg.Bucket, log: log}, nil
}

// EnsureBucket creates the snapshot bucket if it does not exist yet.
// A bucket that already exists and is owned by us is not an error.
func (s *Store) EnsureBucket(ctx context.Context) error {
	_, err := s.s3.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		if isBucketAlreadyOwnedByYou(err) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// UploadSnapshot uploads every file of a local snapshot directory under
// the given key prefix. Subdirectories are ignored. Returns the object
// keys written.
func (s *Store) UploadSnapshot(ctx context.Context, prefix, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot dir: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return keys, fmt.Errorf("failed to read snapshot file %s: %w", entry.Name(), err)
		}

		key := path.Join(prefix, entry.Name())
		if err := s.putObject(ctx, key, data); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}

	s.log.Info("uploaded snapshot", "bucket", s.bucket, "prefix", prefix, "objects", len(keys))
	return keys, nil
}

// DownloadSnapshot fetches every object under the key prefix into dir,
// named by the last key segment. Returns ErrNotFound when the prefix
// holds no objects.
func (s *Store) DownloadSnapshot(ctx context.Context, prefix, dir string) ([]string, error) {
	keys, err := s.listObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no objects under prefix %s", ErrNotFound, prefix)
	}

	var files []string
	for _, key := range keys {
		data, err := s.getObject(ctx, key)
		if err != nil {
			return files, err
		}

		file := filepath.Join(dir, path.Base(key))
		if err := os.WriteFile(file, data, 0600); err != nil {
			return files, fmt.Errorf("failed to write snapshot file: %w", err)
		}
		files = append(files, file)
	}

	return files, nil
}

// DeleteSnapshot removes every object under the key prefix.
func (s *Store) DeleteSnapshot(ctx context.Context, prefix string) error {
	keys, err := s.listObjects(ctx, prefix)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := s.deleteObject(ctx, key); err != nil {
			return err
		}
	}

	s.log.Info("deleted snapshot", "bucket", s.bucket, "prefix", prefix, "objects", len(keys))
	return nil
}

func (s *Store) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s in bucket %s: %w", key, s.bucket, err)
	}
	return nil
}

func (s *Store) getObject(ctx context.Context, key string) ([]byte, error) {
	result, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get object %s from bucket %s: %w", key, s.bucket, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

func (s *Store) listObjects(ctx context.Context, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	result, err := s.s3.ListObjectsV2(ctx, input)
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: bucket %s", ErrNotFound, s.bucket)
		}
		return nil, fmt.Errorf("failed to list objects in bucket %s: %w", s.bucket, err)
	}

	var keys []string
	for _, obj := range result.Contents {
		if obj.Key != nil {
			keys = append(keys, *obj.Key)
		}
	}
	return keys, nil
}

func (s *Store) deleteObject(ctx context.Context, key string) error {
	_, err := s.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s from bucket %s: %w", key, s.bucket, err)
	}
	return nil
}
