package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

/*
Storage provider for S3-compatible object storage. We use the minio client
library. Each archive shard is one object in the bucket.
*/

////////////////////////////////////////////////////////////////////////////////

type S3Store struct {
	mc     *minio.Client
	bucket string
}

// NewS3Store returns a provider writing to the given bucket.
func NewS3Store(mc *minio.Client, bucket string) *S3Store {
	return &S3Store{
		mc:     mc,
		bucket: bucket,
	}
}

// EnsureBucket creates the bucket if it does not exist.
func (s *S3Store) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.mc.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put stores the data in the object store.
func (s *S3Store) Put(ctx context.Context, id string, r io.Reader) error {
	_, err := s.mc.PutObject(
		ctx,
		s.bucket,
		id,
		r,
		-1,
		minio.PutObjectOptions{
			ContentType: "application/zstd",
		},
	)
	if err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

// Get retrieves an object from the object store. The existence check happens
// eagerly so that missing shards surface as ErrObjectNotFound here rather than
// on first read.
func (s *S3Store) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	return obj, nil
}

// Delete removes an object from the object store.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if err := s.mc.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		if isNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

func (s *S3Store) String() string {
	return fmt.Sprintf("s3(%s)", s.bucket)
}

func isNotExist(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
