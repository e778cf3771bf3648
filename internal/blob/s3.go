// S3 blob store backend.
//
// Works against native AWS S3 or any S3-compatible versioned store
// (Cloudflare R2, MinIO) via a custom endpoint. The bucket must have
// versioning enabled; deletes rely on ListObjectVersions + DeleteObjects to
// purge every version and delete marker under a key.
//
// Credentials are resolved via the standard AWS credential chain
// (env vars, ~/.aws/credentials, IAM role, etc.) unless static credentials
// are configured.

package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// deleteBatchSize is the S3 limit on objects per DeleteObjects call.
const deleteBatchSize = 1000

// S3API defines the subset of the AWS S3 client interface that the blob
// store uses. This allows mocking in tests.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Store implements the Store interface against a versioned S3 bucket.
type S3Store struct {
	// Bucket is the S3 bucket name.
	Bucket string
	// client is the AWS S3 client (satisfying the S3API interface).
	client S3API
}

// S3Options configures NewS3Store beyond the required bucket and region.
type S3Options struct {
	// EndpointURL overrides the S3 endpoint for S3-compatible stores.
	EndpointURL string
	// UsePathStyle forces path-style addressing.
	UsePathStyle bool
	// AccessKeyID / SecretAccessKey override the default credential chain
	// when both are set.
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Store creates an S3Store for the given bucket and region and verifies
// the bucket is reachable.
func NewS3Store(ctx context.Context, bucket, region string, opts S3Options) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.EndpointURL != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		})
	}
	if opts.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(cfg, s3Opts...)

	s := &S3Store{Bucket: bucket, client: client}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	}); err != nil {
		return nil, fmt.Errorf("cannot access S3 bucket %q: %w", bucket, err)
	}

	slog.Info("S3 blob store initialized", "bucket", bucket, "region", region)
	return s, nil
}

// NewS3StoreWithClient creates an S3Store with a pre-configured client.
// This is primarily used for testing with mock clients.
func NewS3StoreWithClient(bucket string, client S3API) *S3Store {
	return &S3Store{Bucket: bucket, client: client}
}

// Put uploads data under key, creating a new version.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("uploading %s to S3: %w", key, err)
	}
	return nil
}

// Get retrieves the newest live version of key. A delete-marker-topped key
// returns ErrNotFound, same as a missing key.
func (s *S3Store) Get(ctx context.Context, key string) (*Object, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isAWSNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("getting %s from S3: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s body: %w", key, err)
	}

	return &Object{
		Data:        data,
		ContentType: aws.ToString(resp.ContentType),
	}, nil
}

// ListVersions enumerates every version and delete marker under prefix,
// following version-listing pagination.
func (s *S3Store) ListVersions(ctx context.Context, prefix string) ([]Version, error) {
	var out []Version
	input := &s3.ListObjectVersionsInput{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	}

	for {
		resp, err := s.client.ListObjectVersions(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("listing versions under %q: %w", prefix, err)
		}

		for _, v := range resp.Versions {
			out = append(out, Version{
				Key:       aws.ToString(v.Key),
				VersionID: aws.ToString(v.VersionId),
			})
		}
		for _, m := range resp.DeleteMarkers {
			out = append(out, Version{
				Key:          aws.ToString(m.Key),
				VersionID:    aws.ToString(m.VersionId),
				DeleteMarker: true,
			})
		}

		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		input.KeyMarker = resp.NextKeyMarker
		input.VersionIdMarker = resp.NextVersionIdMarker
	}

	return out, nil
}

// DeleteVersions permanently removes the named versions via batched
// DeleteObjects calls (1000 per batch, the S3 limit).
func (s *S3Store) DeleteVersions(ctx context.Context, versions []Version) error {
	for start := 0; start < len(versions); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(versions) {
			end = len(versions)
		}

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, v := range versions[start:end] {
			objects = append(objects, types.ObjectIdentifier{
				Key:       aws.String(v.Key),
				VersionId: aws.String(v.VersionID),
			})
		}

		resp, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.Bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("batch-deleting versions: %w", err)
		}
		if len(resp.Errors) > 0 {
			first := resp.Errors[0]
			return fmt.Errorf("batch delete rejected %d versions, first: %s %s: %s",
				len(resp.Errors), aws.ToString(first.Key), aws.ToString(first.VersionId), aws.ToString(first.Message))
		}
	}
	return nil
}

// HealthCheck verifies that the bucket is accessible.
func (s *S3Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.Bucket),
	})
	return err
}

// isAWSNotFound checks if an AWS error is a 404/NoSuchKey/NotFound error.
func isAWSNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NoSuchKey" || code == "NotFound" || code == "404" || code == "NoSuchBucket" {
			return true
		}
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		if respErr.HTTPStatusCode() == 404 {
			return true
		}
	}
	return false
}

// Ensure S3Store implements Store at compile time.
var _ Store = (*S3Store)(nil)
