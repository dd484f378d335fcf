// Package objectstore uploads export files to S3-compatible storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dadoscon/municipal-etl/internal/config"
)

// ErrNotConfigured is returned when the S3 settings are incomplete.
var ErrNotConfigured = errors.New("object storage is not configured")

var contentTypes = map[string]string{
	".csv":  "text/csv; charset=utf-8",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".json": "application/json",
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads objects into one bucket.
type Store struct {
	client        putObjectAPI
	bucket        string
	endpoint      string
	publicBaseURL string
	logger        *slog.Logger
}

// New builds a Store from cfg. It returns ErrNotConfigured unless endpoint,
// credentials and bucket are all set.
func New(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg.S3Endpoint == "" || cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" || cfg.S3Bucket == "" {
		return nil, ErrNotConfigured
	}

	awsCfg := aws.Config{
		Region:      cfg.S3Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	return &Store{
		client:        client,
		bucket:        cfg.S3Bucket,
		endpoint:      strings.TrimRight(cfg.S3Endpoint, "/"),
		publicBaseURL: strings.TrimRight(cfg.S3PublicBaseURL, "/"),
		logger:        logger,
	}, nil
}

// Upload stores body under key and returns the object's public URL.
func (s *Store) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if s == nil || s.client == nil {
		return "", ErrNotConfigured
	}
	if size <= 0 {
		return "", fmt.Errorf("upload %s: empty file", key)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	url := s.objectURL(key)
	s.logger.Info("object uploaded", "key", key, "bytes", size, "url", url)
	return url, nil
}

// UploadFile uploads the file at p under prefix/<base name>.
func (s *Store) UploadFile(ctx context.Context, prefix, p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", p, err)
	}
	key := path.Join(prefix, filepath.Base(p))
	return s.Upload(ctx, key, f, info.Size(), ContentType(p))
}

// ContentType guesses the MIME type of an export file from its extension.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func (s *Store) objectURL(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, key)
	}
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
}
