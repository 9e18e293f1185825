package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"blsdata/internal/config"
	"blsdata/pkg/metadata"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store stores objects in a single S3 bucket.
type S3Store struct {
	client S3API
	bucket string
}

// NewS3Store builds a client from the default AWS credential chain, with
// optional static credentials and a custom endpoint for S3-compatible stores.
func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}

		o.UsePathStyle = cfg.PathStyle
	})

	return NewS3StoreWithClient(client, cfg.Bucket), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Get downloads the object.
func (s *S3Store) Get(ctx context.Context, key string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.classify(key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, key, err)
	}

	info := metadata.Object{
		Key:         key,
		ContentType: aws.ToString(out.ContentType),
		ETag:        metadata.NormalizeETag(aws.ToString(out.ETag)),
		Size:        int64(len(body)),
	}

	if out.LastModified != nil {
		info.LastModified = out.LastModified.UTC()
	}

	return &Object{Body: body, Info: info}, nil
}

// Put uploads the object.
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.putInput(key, body, contentType))
	if err != nil {
		return s.classify(key, err)
	}

	return nil
}

// PutIfMatch uploads with a conditional write. An empty etag sends
// If-None-Match: * so the write fails when the object already exists.
func (s *S3Store) PutIfMatch(ctx context.Context, key string, body []byte, contentType, etag string) error {
	input := s.putInput(key, body, contentType)

	if tag := metadata.NormalizeETag(etag); tag == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(`"` + tag + `"`)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return s.classify(key, err)
	}

	return nil
}

// Delete removes the object. S3 does not report missing keys.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if err = s.classify(key, err); IsNotFound(err) {
			return nil
		}

		return err
	}

	return nil
}

// List pages through all objects under prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]metadata.Object, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var out []metadata.Object

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.bucket, prefix, err)
		}

		for _, obj := range page.Contents {
			info := metadata.Object{
				Key:  aws.ToString(obj.Key),
				ETag: metadata.NormalizeETag(aws.ToString(obj.ETag)),
				Size: aws.ToInt64(obj.Size),
			}

			if obj.LastModified != nil {
				info.LastModified = obj.LastModified.UTC()
			}

			out = append(out, info)
		}
	}

	return out, nil
}

func (s *S3Store) putInput(key string, body []byte, contentType string) *s3.PutObjectInput {
	if contentType == "" {
		contentType = metadata.ContentTypeBinary
	}

	return &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	}
}

// classify maps S3 error codes onto the storage sentinels.
func (s *S3Store) classify(key string, err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
		case "PreconditionFailed", "ConditionalRequestConflict":
			return fmt.Errorf("%w: s3://%s/%s", ErrPreconditionFailed, s.bucket, key)
		}
	}

	return fmt.Errorf("s3 request for s3://%s/%s failed: %w", s.bucket, key, err)
}
