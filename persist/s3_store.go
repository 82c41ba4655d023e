package persist

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"southwinds.dev/microkv/internal/misc"
)

// S3Config holds connection settings for an S3-compatible backend.
type S3Config struct {
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	UseSSL          bool   `json:"use_ssl"`
	Bucket          string `json:"bucket"`
	KeyPrefix       string `json:"key_prefix"`
	Region          string `json:"region"`
}

// S3Store keeps one database as a single object <prefix>/<name>.kv in a
// bucket. It lets a store file live in object storage without changing the
// record layout; the store layer still sees one opaque byte sequence.
type S3Store struct {
	client    *minio.Client
	bucket    string
	objectKey string
	timeout   time.Duration
}

// NewS3Store builds an S3 backend for the given database name.
func NewS3Store(config S3Config, name string) (*S3Store, error) {
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("invalid database name: %w", err)
	}
	if config.Endpoint == "" {
		return nil, fmt.Errorf("s3 storage requires an endpoint")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("s3 storage requires a bucket")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &S3Store{
		client:    client,
		bucket:    config.Bucket,
		objectKey: path.Join(config.KeyPrefix, name+misc.StoreFileExt),
		timeout:   30 * time.Second,
	}, nil
}

// NewS3StoreFromConfig builds an S3 backend from a generic StoreConfig.
func NewS3StoreFromConfig(config StoreConfig, name string) (*S3Store, error) {
	str := func(key string) string {
		v, _ := config.Config[key].(string)
		return v
	}
	useSSL, _ := config.Config["use_ssl"].(bool)

	return NewS3Store(S3Config{
		Endpoint:        str("endpoint"),
		AccessKeyID:     str("access_key_id"),
		SecretAccessKey: str("secret_access_key"),
		UseSSL:          useSSL,
		Bucket:          str("bucket"),
		KeyPrefix:       str("key_prefix"),
		Region:          str("region"),
	}, name)
}

func (s *S3Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *S3Store) SaveState(data []byte) error {
	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("failed to save state to S3: %w", err)
	}
	return nil
}

func (s *S3Store) LoadState() ([]byte, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	object, err := s.client.GetObject(ctx, s.bucket, s.objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load state from S3: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("state object %s: %w", s.objectKey, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read state from S3: %w", err)
	}
	return data, nil
}

func (s *S3Store) StateExists() (bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.client.StatObject(ctx, s.bucket, s.objectKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat state object: %w", err)
	}
	return true, nil
}

func (s *S3Store) DeleteState() error {
	ctx, cancel := s.ctx()
	defer cancel()

	err := s.client.RemoveObject(ctx, s.bucket, s.objectKey, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("failed to delete state object: %w", err)
	}
	return nil
}

func (s *S3Store) Ping() error {
	ctx, cancel := s.ctx()
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to reach S3: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func (s *S3Store) Close() error {
	return nil
}

func (s *S3Store) GetType() string {
	return string(StoreTypeS3)
}
