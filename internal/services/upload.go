package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"chat-backend/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
)

const maxImageBytes = 5 * 1024 * 1024

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageUploader stores an inline image and returns its public URL
type ImageUploader interface {
	Upload(ctx context.Context, ownerID, dataURL string) (string, error)
}

// objectPutter is the subset of the S3 client used for uploads
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures the S3 image uploader
type S3Options struct {
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	Endpoint      string
	PublicBaseURL string
}

// S3ImageUploader uploads data-URL images to an S3-compatible bucket behind a circuit breaker
type S3ImageUploader struct {
	client  objectPutter
	bucket  string
	baseURL string
	cb      *gobreaker.CircuitBreaker[string]
}

// NewS3ImageUploader creates an uploader using the default AWS credential chain,
// or static credentials when an access key is configured.
func NewS3ImageUploader(ctx context.Context, opts S3Options) (*S3ImageUploader, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3ImageUploader(client, opts), nil
}

func newS3ImageUploader(client objectPutter, opts S3Options) *S3ImageUploader {
	return &S3ImageUploader{
		client:  client,
		bucket:  opts.Bucket,
		baseURL: publicBaseURL(opts),
		cb: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "s3-images",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			},
		}),
	}
}

// Upload decodes dataURL and stores it under images/<owner>/<uuid><ext>
func (u *S3ImageUploader) Upload(ctx context.Context, ownerID, dataURL string) (string, error) {
	contentType, data, err := decodeDataURL(dataURL)
	if err != nil {
		metrics.ImageUploads.WithLabelValues("invalid").Inc()
		return "", err
	}

	key := fmt.Sprintf("images/%s/%s%s", ownerID, uuid.New().String(), imageExtensions[contentType])

	url, err := u.cb.Execute(func() (string, error) {
		_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload image: %w", err)
		}
		return u.baseURL + "/" + key, nil
	})
	if err != nil {
		metrics.ImageUploads.WithLabelValues("error").Inc()
		return "", err
	}

	metrics.ImageUploads.WithLabelValues("ok").Inc()
	return url, nil
}

// decodeDataURL parses a base64 "data:<mime>;base64,<payload>" image
func decodeDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: image is not a data URL", ErrValidation)
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed data URL", ErrValidation)
	}

	contentType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return "", nil, fmt.Errorf("%w: data URL must be base64 encoded", ErrValidation)
	}
	if _, supported := imageExtensions[contentType]; !supported {
		return "", nil, fmt.Errorf("%w: unsupported image type %q", ErrValidation, contentType)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid base64 image payload", ErrValidation)
	}
	if len(data) == 0 || len(data) > maxImageBytes {
		return "", nil, fmt.Errorf("%w: image must be between 1 byte and %d bytes", ErrValidation, maxImageBytes)
	}
	return contentType, data, nil
}

func publicBaseURL(opts S3Options) string {
	switch {
	case opts.PublicBaseURL != "":
		return strings.TrimRight(opts.PublicBaseURL, "/")
	case opts.Endpoint != "":
		return strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}
}
