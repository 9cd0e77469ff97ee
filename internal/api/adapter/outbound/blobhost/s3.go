package blobhost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/config"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/domain"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/port"
	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// maxDeleteBatch is the S3 DeleteObjects limit.
const maxDeleteBatch = 1000

// S3 stores chunk ciphertext in one bucket and hands out presigned GET urls.
type S3 struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	keyPrefix string
	urlExpiry time.Duration
}

var _ port.BlobHost = (*S3)(nil)

// NewS3 builds an S3 blob host. SDK retries are disabled because the service
// layer owns retry and circuit breaking.
func NewS3(ctx context.Context, cfg config.BlobConfig) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("blob bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		o.Retryer = aws.NopRetryer{}
	})

	expiry := time.Duration(cfg.URLExpirySeconds) * time.Second
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	// Presigned urls cannot outlive seven days.
	expiry = min(expiry, 7*24*time.Hour)

	return &S3{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		urlExpiry: expiry,
	}, nil
}

// PutBlob uploads data under the key prefix and returns the key and a presigned url.
func (h *S3) PutBlob(ctx context.Context, name string, data []byte) (domain.BlobLocation, error) {
	key := h.keyPrefix + name
	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return domain.BlobLocation{}, classify("put object", err)
	}

	url, err := h.GetBlobURL(ctx, key)
	if err != nil {
		return domain.BlobLocation{}, err
	}
	return domain.BlobLocation{BlobRef: key, URL: url}, nil
}

// GetBlobURL presigns a GET for blobRef. Signing is local and never calls S3.
func (h *S3) GetBlobURL(ctx context.Context, blobRef string) (string, error) {
	req, err := h.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(blobRef),
	}, s3.WithPresignExpires(h.urlExpiry))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", blobRef, err)
	}
	return req.URL, nil
}

// DeleteBlobs removes blobRefs in batches and counts the keys S3 did not report as failed.
func (h *S3) DeleteBlobs(ctx context.Context, blobRefs []string) (int, error) {
	deleted := 0
	for start := 0; start < len(blobRefs); start += maxDeleteBatch {
		batch := blobRefs[start:min(start+maxDeleteBatch, len(blobRefs))]

		objects := make([]types.ObjectIdentifier, 0, len(batch))
		for _, ref := range batch {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(ref)})
		}

		out, err := h.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(h.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return deleted, classify("delete objects", err)
		}
		deleted += len(batch) - len(out.Errors)
	}
	return deleted, nil
}

// classify maps SDK errors onto the domain taxonomy: throttling, 5xx and
// failures without a response are transient.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
			return fmt.Errorf("%w: s3 %s: %v", domain.ErrUpstreamTransient, op, err)
		}
		return fmt.Errorf("s3 %s: %w", op, err)
	}
	return fmt.Errorf("%w: s3 %s: %v", domain.ErrUpstreamTransient, op, err)
}
