package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/recollect/internal/apperr"
	"github.com/hyperengineering/recollect/internal/config"
)

// errObjectMissing is returned by s3Client implementations for absent keys.
var errObjectMissing = errors.New("object does not exist")

// s3Client defines the minimal minio.Client operations used by S3Blobs.
// This interface enables testing with mock implementations.
type s3Client interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	StatObject(ctx context.Context, bucket, key string) error
	RemoveObject(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
}

// minioClientWrapper wraps *minio.Client to satisfy the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func missing(err error) error {
	if err == nil {
		return nil
	}
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
		return fmt.Errorf("%w: %v", errObjectMissing, err)
	}
	return err
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	_, err := w.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (w *minioClientWrapper) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := w.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, missing(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, missing(err)
	}
	return data, nil
}

func (w *minioClientWrapper) StatObject(ctx context.Context, bucket, key string) error {
	_, err := w.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	return missing(err)
}

func (w *minioClientWrapper) RemoveObject(ctx context.Context, bucket, key string) error {
	return w.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
}

func (w *minioClientWrapper) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for obj := range w.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// S3Blobs keeps documents as objects in an S3-compatible bucket.
type S3Blobs struct {
	client s3Client
	bucket string
	prefix string
}

// NewS3Blobs creates an S3Blobs from configuration.
func NewS3Blobs(cfg config.S3Config) (*S3Blobs, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

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

	return &S3Blobs{
		client: &minioClientWrapper{client: client},
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
	}, nil
}

func normalizePrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// NewBlobs returns S3Blobs when a bucket is configured, DirBlobs otherwise.
func NewBlobs(cfg config.FallbackConfig) (Blobs, error) {
	if cfg.S3.Bucket == "" {
		return NewDirBlobs(cfg.Dir), nil
	}
	return NewS3Blobs(cfg.S3)
}

// Location returns the bucket URL form s3://bucket/prefix.
func (s *S3Blobs) Location() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

func (s *S3Blobs) key(name string) string {
	return s.prefix + name
}

func (s *S3Blobs) wrap(op, name string, err error, kind apperr.Kind) error {
	if errors.Is(err, errObjectMissing) {
		return &apperr.Error{Kind: apperr.NotFound, Op: op, Msg: fmt.Sprintf("document %s not found", name), Err: err}
	}
	return apperr.New(kind, op, err)
}

// Put uploads a document in a single request.
func (s *S3Blobs) Put(ctx context.Context, name string, data []byte) error {
	const op = "blobs.put"
	if err := checkName(op, name); err != nil {
		return err
	}
	if err := s.client.PutObject(ctx, s.bucket, s.key(name), data); err != nil {
		return s.wrap(op, name, err, apperr.SaveFailed)
	}
	return nil
}

// Get downloads a document.
func (s *S3Blobs) Get(ctx context.Context, name string) ([]byte, error) {
	const op = "blobs.get"
	if err := checkName(op, name); err != nil {
		return nil, err
	}
	data, err := s.client.GetObject(ctx, s.bucket, s.key(name))
	if err != nil {
		return nil, s.wrap(op, name, err, apperr.Unavailable)
	}
	return data, nil
}

// Delete removes a document. S3 deletes of absent keys succeed, so the key
// is checked first to report a miss.
func (s *S3Blobs) Delete(ctx context.Context, name string) error {
	const op = "blobs.delete"
	if err := checkName(op, name); err != nil {
		return err
	}
	if err := s.client.StatObject(ctx, s.bucket, s.key(name)); err != nil {
		return s.wrap(op, name, err, apperr.Unavailable)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, s.key(name)); err != nil {
		return s.wrap(op, name, err, apperr.Unavailable)
	}
	return nil
}

// List returns the names under the prefix that match pattern.
func (s *S3Blobs) List(ctx context.Context, pattern string) ([]string, error) {
	const op = "blobs.list"
	keys, err := s.client.ListObjects(ctx, s.bucket, s.prefix)
	if err != nil {
		return nil, apperr.New(apperr.Unavailable, op, err)
	}

	var names []string
	for _, k := range keys {
		name := strings.TrimPrefix(k, s.prefix)
		if strings.Contains(name, "/") {
			continue
		}
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return nil, apperr.New(apperr.Validation, op, err)
		}
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
