package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog"
)

// S3Store persists artifacts in an S3 bucket.
type S3Store struct {
	client  s3iface.S3API
	bucket  string
	baseURL string
	logger  zerolog.Logger
}

// NewS3Session builds an AWS session from the shared config chain.
func NewS3Session(region string) (*session.Session, error) {
	opts := session.Options{SharedConfigState: session.SharedConfigEnable}
	if region != "" {
		opts.Config = aws.Config{Region: aws.String(region)}
	}
	return session.NewSessionWithOptions(opts)
}

// NewS3Store creates a store for bucket. When publicBaseURL is empty the
// virtual-hosted bucket URL is used.
func NewS3Store(client s3iface.S3API, bucket, publicBaseURL string, logger zerolog.Logger) (*S3Store, error) {
	bucket = strings.TrimSpace(bucket)
	if client == nil || bucket == "" {
		return nil, errors.New("storage: s3 client and bucket are required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.amazonaws.com", bucket)
	}
	return &S3Store{client: client, bucket: bucket, baseURL: baseURL, logger: logger}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(cleanKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObjectWithContext(ctx, input); err != nil {
		s.logger.Error().Err(err).Str("bucket", s.bucket).Str("key", cleanKey).Msg("s3 upload failed")
		return "", fmt.Errorf("storage: s3 put: %w", err)
	}
	s.logger.Debug().Str("key", cleanKey).Int("bytes", len(data)).Msg("s3 upload")
	return s.baseURL + "/" + cleanKey, nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (string, bool, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", false, err
	}
	_, err = s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleanKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("storage: s3 head: %w", err)
	}
	return s.baseURL + "/" + cleanKey, true, nil
}

func isS3NotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "NotFound", s3.ErrCodeNoSuchKey:
			return true
		}
	}
	return false
}

var _ BlobStore = (*S3Store)(nil)
