// Package s3 stores record payloads as objects in S3-compatible storage.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/creastat/records/durable"
)

const contentType = "application/octet-stream"

// Config controls the behaviour of the S3 durable store.
type Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	Prefix         string
	Namespace      string
	Insecure       bool
	ForcePathStyle bool
	CustomCreds    *credentials.Credentials
}

// Store implements durable.Store backed by S3-compatible object storage.
type Store struct {
	client *minio.Client
	cfg    Config
}

// New creates an S3 store. Credentials come from the environment unless
// CustomCreds is set.
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.Region != "" {
			endpoint = fmt.Sprintf("s3.%s.amazonaws.com", cfg.Region)
		} else {
			endpoint = "s3.amazonaws.com"
		}
	}
	creds := cfg.CustomCreds
	if creds == nil {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{},
		})
	}
	options := &minio.Options{
		Creds:  creds,
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	}
	if cfg.ForcePathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}
	client, err := minio.New(endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &Store{client: client, cfg: cfg}, nil
}

// Read implements durable.Store.
func (s *Store) Read(ctx context.Context, key string) ([]byte, bool, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, s.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("s3: get object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("s3: read object: %w", err)
	}
	return data, true, nil
}

// Write implements durable.Store.
func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, s.objectName(key), bytes.NewReader(value), int64(len(value)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("s3: put object: %w", err)
	}
	return nil
}

// Close implements durable.Store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) objectName(key string) string {
	return path.Join(s.cfg.Prefix, s.cfg.Namespace, key)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}

// Compile-time check that Store implements durable.Store.
var _ durable.Store = (*Store)(nil)
