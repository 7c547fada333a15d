// Package blob stages local files in S3-compatible object storage and hands
// out time-limited read URLs for them.
package blob

import (
	"context"
	"errors"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
	"github.com/Nephrolytics-ai/docvoice/pkg/model"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of the S3 API the store calls. *s3.Client satisfies it.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner is satisfied by *s3.PresignClient.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Store struct {
	client    S3Client
	presigner Presigner
	bucket    string
	prefix    string
}

func NewS3Store(client S3Client, presigner Presigner, bucket string, prefix string) (*S3Store, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, utils.WrapIfNotNil(errors.New("bucket is required"))
	}
	return &S3Store{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		prefix:    strings.Trim(strings.TrimSpace(prefix), "/"),
	}, nil
}

// Connect builds an S3 client from settings. A non-empty endpoint targets an
// S3-compatible service (MinIO, R2) with path-style addressing.
func Connect(ctx context.Context, settings AWSSettings, bucket string, prefix string, endpoint string) (*S3Store, error) {
	cfg, err := loadAWSConfig(ctx, settings)
	if err != nil {
		return nil, err
	}

	endpoint = strings.TrimSpace(endpoint)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Store(client, s3.NewPresignClient(client), bucket, prefix)
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Upload stores the file at localPath under name and returns the object key.
func (s *S3Store) Upload(ctx context.Context, localPath string, name string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	defer utils.CloseLogged(file, logging.NewLogger(ctx), localPath)

	info, err := file.Stat()
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}

	contentType := resolveContentType(name)

	key := s.key(name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", utils.WrapIfNotNil(err, key)
	}

	logging.NewLogger(ctx).Debugf("uploaded %s (%d bytes) to s3://%s/%s", localPath, info.Size(), s.bucket, key)
	return key, nil
}

// SignedURL returns a GET URL for name that stops working after ttl.
func (s *S3Store) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = model.DefaultBlobURLTTL
	}
	request, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", utils.WrapIfNotNil(err, name)
	}
	return request.URL, nil
}

// Delete removes name. A missing object is not an error.
func (s *S3Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil && !isNotFound(err) {
		return utils.WrapIfNotNil(err, name)
	}
	return nil
}

func resolveContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var _ model.BlobStore = (*S3Store)(nil)
