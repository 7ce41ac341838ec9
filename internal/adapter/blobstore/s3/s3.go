// Package s3 implements the blob-store port on Amazon S3.
//
// Fetch guards the object size before transferring any bytes, decodes the
// body as UTF-8 text and reports the entity tag of the version it actually
// read. Listing walks a bucket page by page through the SDK paginator.
// AWS API calls are traced by the otelaws middleware on the shared config,
// so the adapter opens no spans of its own.
package s3

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fairyhunter13/bucketscan/internal/domain"
	"github.com/fairyhunter13/bucketscan/pkg/textx"
)

// listPageSize is how many keys one listing page requests.
const listPageSize = 1000

// API is the slice of the S3 client the adapter uses.
type API interface {
	HeadObject(ctx domain.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	GetObject(ctx domain.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	ListObjectsV2(ctx domain.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
	HeadBucket(ctx domain.Context, params *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
	PutObject(ctx domain.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

// Client adapts Amazon S3 to the domain.BlobStore port.
type Client struct {
	api API
}

// New builds the adapter from the shared AWS configuration. endpoint and
// pathStyle point the client at a local emulator; both are zero in
// production.
func New(cfg aws.Config, endpoint string, pathStyle bool) *Client {
	api := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = pathStyle
	})
	return &Client{api: api}
}

// Fetch downloads one object and decodes it as UTF-8 text. The size is
// checked with a HEAD request first so oversized objects fail without
// transferring a byte; a limited reader re-checks on download in case the
// object grew in between.
func (c *Client) Fetch(ctx domain.Context, bucket, key string) (domain.ObjectContent, error) {
	head, err := c.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return domain.ObjectContent{}, fetchErr(err)
	}
	if size := aws.ToInt64(head.ContentLength); size > domain.MaxObjectSizeBytes {
		return domain.ObjectContent{}, fmt.Errorf("op=blob.fetch: %w: %d bytes exceeds %d", domain.ErrTooLarge, size, domain.MaxObjectSizeBytes)
	}

	out, err := c.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return domain.ObjectContent{}, fetchErr(err)
	}
	defer func() { _ = out.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(out.Body, domain.MaxObjectSizeBytes+1))
	if err != nil {
		return domain.ObjectContent{}, fmt.Errorf("op=blob.fetch: %w: %v", domain.ErrTransport, err)
	}
	if len(raw) > domain.MaxObjectSizeBytes {
		return domain.ObjectContent{}, fmt.Errorf("op=blob.fetch: %w: body exceeds %d bytes", domain.ErrTooLarge, domain.MaxObjectSizeBytes)
	}
	return domain.ObjectContent{
		Text: textx.DecodeUTF8(raw),
		ETag: cleanETag(out.ETag),
		Size: int64(len(raw)),
	}, nil
}

// ListObjects walks the bucket under prefix and hands each page of entries
// to fn. A non-nil error from fn stops the walk.
func (c *Client) ListObjects(ctx domain.Context, bucket, prefix string, fn func([]domain.ListedObject) error) error {
	in := &awss3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(listPageSize),
	}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}
	p := awss3.NewListObjectsV2Paginator(c.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("op=blob.list: %w: %v", domain.ErrTransport, err)
		}
		objs := make([]domain.ListedObject, 0, len(page.Contents))
		for _, o := range page.Contents {
			objs = append(objs, domain.ListedObject{
				Key:  aws.ToString(o.Key),
				ETag: cleanETag(o.ETag),
				Size: aws.ToInt64(o.Size),
			})
		}
		if len(objs) == 0 {
			continue
		}
		if err := fn(objs); err != nil {
			return err
		}
	}
	return nil
}

// Put uploads one object. Only the seeding tool writes to buckets; the
// scanner itself never does.
func (c *Client) Put(ctx domain.Context, bucket, key string, body []byte, contentType string) error {
	in := &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := c.api.PutObject(ctx, in); err != nil {
		return fmt.Errorf("op=blob.put: %w", err)
	}
	return nil
}

// Ping verifies the bucket is reachable with the current credentials.
func (c *Client) Ping(ctx domain.Context, bucket string) error {
	_, err := c.api.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		return fmt.Errorf("op=blob.head_bucket: %w", err)
	}
	return nil
}

// fetchErr maps S3 errors onto the domain error kinds.
func fetchErr(err error) error {
	if isNotFound(err) {
		return fmt.Errorf("op=blob.fetch: %w", domain.ErrNotFound)
	}
	return fmt.Errorf("op=blob.fetch: %w: %v", domain.ErrTransport, err)
}

// isNotFound matches the two shapes S3 uses for a missing object: HEAD
// returns NotFound, GET returns NoSuchKey.
func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

// cleanETag strips the quotes S3 wraps entity tags in.
func cleanETag(t *string) string {
	return strings.Trim(aws.ToString(t), `"`)
}
