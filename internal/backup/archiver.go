// Package backup archives ranking data exports to S3-compatible object
// storage, rotating out old archives so at most a configured number remain.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// timestampLayout is embedded in object keys so keys sort chronologically.
const timestampLayout = "20060102_150405"

// objectStore is the slice of the S3 API the archiver uses.
type objectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds configuration for the backup archiver.
type Config struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Prefix          string // key prefix, default "backups/"
	MaxBackups      int    // archives kept per prefix, default 5
}

// Archiver writes timestamped archives and prunes old ones.
type Archiver struct {
	client     objectStore
	bucketName string
	prefix     string
	maxBackups int
	logger     *slog.Logger
	timeNow    func() time.Time // for testability
}

// NewArchiver creates an archiver over S3-compatible storage.
func NewArchiver(cfg Config, logger *slog.Logger) (*Archiver, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "backups/"
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &Archiver{
		client:     client,
		bucketName: cfg.BucketName,
		prefix:     cfg.Prefix,
		maxBackups: cfg.MaxBackups,
		logger:     logger,
		timeNow:    time.Now,
	}, nil
}

// Archive uploads a named export under a timestamped key and prunes old
// archives of the same name. Returns the object key written.
func (a *Archiver) Archive(ctx context.Context, name string, data []byte) (string, error) {
	if name == "" {
		return "", errors.New("archive name is required")
	}
	if len(data) == 0 {
		return "", errors.New("archive data is empty")
	}

	key := fmt.Sprintf("%s%s_%s.json", a.prefix, name, a.timeNow().UTC().Format(timestampLayout))
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}

	a.logger.Info("backup archived",
		slog.String("key", key),
		slog.Int("bytes", len(data)))

	if err := a.prune(ctx, name); err != nil {
		// The upload itself succeeded; pruning failure is not fatal.
		a.logger.Warn("failed to prune old backups", "name", name, "error", err)
	}
	return key, nil
}

// prune deletes the oldest archives of a name beyond maxBackups.
func (a *Archiver) prune(ctx context.Context, name string) error {
	keys, err := a.list(ctx, name)
	if err != nil {
		return err
	}
	if len(keys) <= a.maxBackups {
		return nil
	}

	// Keys embed the timestamp, so lexicographic order is chronological.
	sort.Strings(keys)
	stale := keys[:len(keys)-a.maxBackups]
	for _, key := range stale {
		_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(a.bucketName),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
		a.logger.Debug("old backup pruned", slog.String("key", key))
	}
	return nil
}

// list returns the keys of all archives of a name.
func (a *Archiver) list(ctx context.Context, name string) ([]string, error) {
	prefix := a.prefix + name + "_"
	var keys []string
	var token *string
	for {
		out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(a.bucketName),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list archives: %w", err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}
