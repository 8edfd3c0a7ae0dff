// Package minio saves downloaded files into an S3-compatible bucket.
//
// Usage:
//
//	s, err := minio.New(minio.Config{Endpoint: "localhost:9000", Bucket: "plans", ...})
//	if err != nil { ... }
//	err = s.SaveFile(ctx, "PDQ_plan_schema1_query2.xml", body)
package minio

import (
	"bytes"
	"context"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"pdqctl/internal/errs"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the bucket settings.
type Config struct {
	// Endpoint is host:port of the storage server, e.g. "localhost:9000".
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Region is used by region-aware backends. Leave empty for MinIO.
	Region string
	Bucket string
	// Prefix is prepended to every object key ("plans/" -> "plans/<name>").
	Prefix string
}

// Saver uploads each file as one object. It is safe for concurrent use.
type Saver struct {
	client *miniogo.Client
	bucket string
	prefix string
}

// New builds a Saver. It does not contact the server; the first SaveFile
// reports connection problems.
func New(cfg Config) (*Saver, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "minio endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "minio bucket is required")
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to create minio client", err)
	}

	return &Saver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// SaveFile uploads data to <prefix><name>.
func (s *Saver) SaveFile(ctx context.Context, name string, data []byte) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return errs.New(errs.ErrKindInvalidInput, "invalid object name "+name)
	}

	key := s.Key(name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), miniogo.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return mapError(err, "failed to upload "+key)
	}
	return nil
}

// Key returns the object key used for name.
func (s *Saver) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Bucket returns the target bucket name.
func (s *Saver) Bucket() string {
	return s.bucket
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
