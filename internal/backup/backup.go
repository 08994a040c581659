// Package backup gives access to the per-server world archives kept in
// S3-compatible object storage by the external backup pipeline. Archives
// live under one key prefix per storage identity; this system never writes
// them, it only lists them and clears them when a server's persistent data
// is deleted for good.
package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// Archive is one stored backup object.
type Archive struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ArchiveStore exposes the archives of storage identities.
type ArchiveStore interface {
	// List returns the archives of a storage identity, in key order.
	List(ctx context.Context, storage string) ([]Archive, error)

	// Prune deletes every archive of a storage identity.
	Prune(ctx context.Context, storage string) error
}

// S3Store is an ArchiveStore backed by a bucket on an S3-compatible service.
type S3Store struct {
	s3     *s3.Client
	bucket string
	log    *zap.SugaredLogger
}

// NewS3Store creates a store for the given bucket. The endpoint may point
// at any S3-compatible service.
func NewS3Store(endpoint, region, accessKey, secretKey, bucket string, log *zap.SugaredLogger) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true // MinIO and friends route by path
	})

	return &S3Store{s3: client, bucket: bucket, log: log}, nil
}

// prefix returns the key prefix holding a storage identity's archives.
func prefix(storage string) string {
	return storage + "/"
}

// List returns every archive stored for the identity. A missing bucket or
// prefix yields an empty listing, not an error.
func (s *S3Store) List(ctx context.Context, storage string) ([]Archive, error) {
	var archives []Archive

	paginator := s3.NewListObjectsV2Paginator(s.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix(storage)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNotFoundError(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to list archives for %q: %w", storage, err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			archive := Archive{Key: *obj.Key}
			if obj.Size != nil {
				archive.Size = *obj.Size
			}
			if obj.LastModified != nil {
				archive.LastModified = *obj.LastModified
			}
			archives = append(archives, archive)
		}
	}

	return archives, nil
}

// Prune deletes every archive of the identity. Individual delete failures
// are logged and skipped so one stuck object does not block teardown.
func (s *S3Store) Prune(ctx context.Context, storage string) error {
	archives, err := s.List(ctx, storage)
	if err != nil {
		return err
	}

	for _, archive := range archives {
		_, err := s.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(archive.Key),
		})
		if err != nil {
			s.log.Warnw("failed to delete archive", "key", archive.Key, "error", err)
			continue
		}
		s.log.Debugw("deleted archive", "key", archive.Key)
	}

	return nil
}

// isNotFoundError checks if the error is a not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	// Check for typed S3 errors first
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	// Fall back to API error code checking for S3-compatible services
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchBucket" || code == "404"
	}

	return false
}
