// Package cos uploads local input files to Tencent Cloud Object Storage so
// the API can fetch them by public URL.
//
// COS speaks the S3 protocol, so uploads go through aws-sdk-go-v2 pointed at
// the regional COS endpoint with virtual-hosted addressing. Objects are
// written with a public-read ACL under "hy3d/<subfolder>/<basename>".
package cos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// KeyPrefix is the top-level folder for uploaded inputs.
const KeyPrefix = "hy3d"

// Sentinel errors.
var (
	// ErrNotConfigured indicates a local file needs uploading but no bucket is set.
	ErrNotConfigured = errors.New("COS upload not configured: add cos_bucket (and optional cos_region) to the secrets file")

	ErrAccessDenied       = errors.New("access denied")
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrThrottled          = errors.New("request throttled")
	ErrUnavailable        = errors.New("storage service unavailable")
)

// Config configures an Uploader.
type Config struct {
	// Bucket is the COS bucket name including the app id suffix
	// (e.g. "assets-1250000000"). Required.
	Bucket string

	// Region is the bucket region (e.g. "ap-singapore"). Required.
	Region string

	SecretID  string
	SecretKey string

	// Endpoint overrides https://cos.<region>.myqcloud.com.
	Endpoint string

	// PathStyle addresses the bucket in the path. Only S3 emulators need it.
	PathStyle bool
}

// ConfigError indicates invalid uploader configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cos config: %s: %s", e.Field, e.Message)
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}
	if c.Region == "" {
		return &ConfigError{Field: "Region", Message: "region is required"}
	}
	if c.SecretID == "" || c.SecretKey == "" {
		return &ConfigError{Field: "SecretID/SecretKey", Message: "both secret id and secret key are required"}
	}
	return nil
}

// endpoint returns the S3-compatible service endpoint.
func (c *Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://cos.%s.myqcloud.com", c.Region)
}

// ObjectKey returns the key a local file is stored under.
func ObjectKey(subfolder, localPath string) string {
	sub := strings.Trim(strings.TrimSpace(subfolder), "/")
	if sub == "" {
		sub = "input"
	}
	return path.Join(KeyPrefix, sub, filepath.Base(localPath))
}

// PublicURL returns the virtual-hosted public URL of key.
func PublicURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.cos.%s.myqcloud.com/%s", bucket, region, strings.TrimPrefix(key, "/"))
}

// putter is the subset of the S3 client used here.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader writes local files to a COS bucket.
type Uploader struct {
	client putter
	bucket string
	region string
}

// New creates an Uploader.
func New(ctx context.Context, cfg Config) (*Uploader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.SecretID, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("cos: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.endpoint())
		o.UsePathStyle = cfg.PathStyle
	})

	return &Uploader{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Upload stores the local file under hy3d/<subfolder>/<basename> with a
// public-read ACL and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, localPath, subfolder string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("cos: open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("cos: stat %s: %w", localPath, err)
	}

	key := ObjectKey(subfolder, localPath)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", u.wrapError("PutObject", key, err)
	}
	return PublicURL(u.bucket, u.region, key), nil
}

// UploadError wraps a failed COS call.
type UploadError struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("cos %s: %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// wrapError maps S3 error codes onto sentinel errors.
func (u *Uploader) wrapError(op, key string, err error) error {
	wrapped := &UploadError{Op: op, Bucket: u.bucket, Key: key, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			wrapped.Err = fmt.Errorf("%w: %s", ErrBucketNotFound, apiErr.ErrorMessage())
		case "AccessDenied", "Forbidden":
			wrapped.Err = fmt.Errorf("%w: %s", ErrAccessDenied, apiErr.ErrorMessage())
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			wrapped.Err = fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.ErrorMessage())
		case "SlowDown", "Throttling", "RequestLimitExceeded":
			wrapped.Err = fmt.Errorf("%w: %s", ErrThrottled, apiErr.ErrorMessage())
		case "ServiceUnavailable", "InternalError":
			wrapped.Err = fmt.Errorf("%w: %s", ErrUnavailable, apiErr.ErrorMessage())
		}
	}
	return wrapped
}

// FileUploader is implemented by *Uploader.
type FileUploader interface {
	Upload(ctx context.Context, localPath, subfolder string) (string, error)
}

// IsURL reports whether ref is an http(s) URL.
func IsURL(ref string) bool {
	s := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ResolveInput turns an input reference into something the API can fetch.
//
// URLs and strings that are not existing local files pass through unchanged.
// Existing local files are uploaded with up, which may be nil when no bucket
// is configured; that case returns ErrNotConfigured. uploaded reports whether
// an upload happened.
func ResolveInput(ctx context.Context, up FileUploader, ref, subfolder string) (resolved string, uploaded bool, err error) {
	s := strings.TrimSpace(ref)
	if s == "" || IsURL(s) {
		return s, false, nil
	}
	info, statErr := os.Stat(s)
	if statErr != nil || !info.Mode().IsRegular() {
		return s, false, nil
	}
	if up == nil {
		return "", false, ErrNotConfigured
	}
	url, err := up.Upload(ctx, s, subfolder)
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}
