package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// Config holds credentials and bucket settings for an S3-compatible store.
// Endpoint is derived from AccountID when left empty, targeting the
// account-scoped R2 endpoint.
type Config struct {
	AccountID            string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	Endpoint             string
	PresignExpireMinutes int
}

// MissingFields returns the names of required fields that are empty, in a
// stable order, so callers can report exactly which settings are absent.
func (c Config) MissingFields() []string {
	var missing []string
	if c.AccountID == "" {
		missing = append(missing, "account id")
	}
	if c.AccessKeyID == "" {
		missing = append(missing, "access key id")
	}
	if c.SecretAccessKey == "" {
		missing = append(missing, "secret access key")
	}
	if c.Bucket == "" {
		missing = append(missing, "bucket")
	}
	return missing
}

// EndpointURL returns the configured endpoint, or the account-derived
// default when none is set.
func (c Config) EndpointURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// Object describes a stored object as returned by List and Head.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the storage surface the rest of the application depends on.
// *Client satisfies it; tests substitute in-memory fakes.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	List(ctx context.Context, bucket, prefix string, maxKeys int32) ([]Object, error)
	Delete(ctx context.Context, bucket, key string) error
	Head(ctx context.Context, bucket, key string) (*Object, error)
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Client provides object operations and pre-signed URLs against an
// S3-compatible endpoint.
type Client struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      Config
	logger   *zap.Logger
}

var _ ObjectStore = (*Client)(nil)

// New creates a Client using static credentials against the configured
// endpoint. Region is always "auto": account-scoped stores route by
// endpoint, not region.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if missing := cfg.MissingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("storage credentials not configured: missing %s", strings.Join(missing, ", "))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	endpoint := cfg.EndpointURL()
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024 // 5MB parts for streaming
	})
	logger.Info("object store client ready",
		zap.String("endpoint", endpoint),
		zap.String("bucket", cfg.Bucket))
	return &Client{
		client:   client,
		uploader: uploader,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string { return c.cfg.Bucket }

// PresignExpire returns the configured presign duration.
func (c *Client) PresignExpire() time.Duration {
	if c.cfg.PresignExpireMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.cfg.PresignExpireMinutes) * time.Minute
}

// Put writes body under key. The uploader splits large bodies into parts;
// audio buffers are typically a single part.
func (c *Client) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Get reads the full object body.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return body, nil
}

// List returns up to maxKeys objects under prefix. maxKeys <= 0 means the
// service default.
func (c *Client) List(ctx context.Context, bucket, prefix string, maxKeys int32) ([]Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if maxKeys > 0 {
		input.MaxKeys = aws.Int32(maxKeys)
	}
	out, err := c.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	objects := make([]Object, 0, len(out.Contents))
	for _, item := range out.Contents {
		obj := Object{}
		if item.Key != nil {
			obj.Key = *item.Key
		}
		if item.Size != nil {
			obj.Size = *item.Size
		}
		if item.LastModified != nil {
			obj.LastModified = *item.LastModified
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Head returns object metadata if the object exists.
func (c *Client) Head(ctx context.Context, bucket, key string) (*Object, error) {
	out, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("head object: %w", err)
	}
	obj := &Object{Key: key}
	if out.ContentLength != nil {
		obj.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		obj.LastModified = *out.LastModified
	}
	return obj, nil
}

// SignedURL returns a pre-signed GET URL valid for ttl.
func (c *Client) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(c.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// IsNotFound reports whether err is the store's missing-object error.
func IsNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound" || code == "404"
	}
	return false
}
