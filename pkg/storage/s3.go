package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
)

// S3Client resolves download URLs for attachments kept in S3/R2/MinIO compatible storage.
// Uploading and validating files is owned by the media service.
type S3Client struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucket     string
	cdnURL     string // optional CDN base URL (e.g. https://cdn.angple.com)
	basePath   string // prefix for all objects (e.g. "inbox/")
	presignTTL time.Duration
}

// S3Config holds S3-compatible storage configuration
type S3Config struct {
	Endpoint        string // e.g. https://xxx.r2.cloudflarestorage.com
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	CDNURL          string
	BasePath        string
	ForcePathStyle  bool // true for MinIO/R2
	PresignTTL      time.Duration
}

// NewS3Client creates a new S3-compatible storage client
func NewS3Client(cfg S3Config) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	opts := func(o *s3.Options) {
		o.Region = cfg.Region
		o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}

	client := s3.New(s3.Options{}, opts)

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	pkglogger.GetLogger().Info().
		Str("bucket", cfg.Bucket).
		Str("endpoint", cfg.Endpoint).
		Msg("S3 attachment storage initialized")

	return &S3Client{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		cdnURL:     strings.TrimRight(cfg.CDNURL, "/"),
		basePath:   strings.Trim(cfg.BasePath, "/"),
		presignTTL: ttl,
	}, nil
}

// ObjectKey prefixes an attachment key with the configured base path
func (c *S3Client) ObjectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if c.basePath == "" || strings.HasPrefix(key, c.basePath+"/") {
		return key
	}
	return c.basePath + "/" + key
}

// ResolveURL returns a CDN URL when a CDN is configured, otherwise a presigned GET URL
func (c *S3Client) ResolveURL(ctx context.Context, key string) (string, error) {
	full := c.ObjectKey(key)
	if c.cdnURL != "" {
		return c.GetCDNURL(full), nil
	}
	return c.GetPresignedURL(ctx, full, c.presignTTL)
}

// GetPresignedURL generates a pre-signed URL for direct download
func (c *S3Client) GetPresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}

	result, err := c.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign failed: %w", err)
	}

	return result.URL, nil
}

// GetCDNURL returns the CDN URL for a given key, falling back to S3 URL
func (c *S3Client) GetCDNURL(key string) string {
	escaped := make([]string, 0)
	for _, part := range strings.Split(key, "/") {
		escaped = append(escaped, url.PathEscape(part))
	}
	path := strings.Join(escaped, "/")
	if c.cdnURL != "" {
		return c.cdnURL + "/" + path
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", c.bucket, path)
}
