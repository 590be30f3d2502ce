package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/vecscan/pager"
)

// Client is the subset of the S3 API a Source depends on.
type Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Source is a pager.Source backed by one S3 object.
type Source struct {
	client Client
	bucket string
	key    string
	size   int64
}

// New stats the object and returns a Source for it. pager.ErrNotFound is
// returned when the object does not exist.
func New(ctx context.Context, client Client, bucket, key string) (*Source, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, pager.ErrNotFound
		}
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, pager.ErrNotFound
		}
		return nil, fmt.Errorf("s3: failed to stat s3://%s/%s: %w", bucket, key, err)
	}

	return &Source{
		client: client,
		bucket: bucket,
		key:    key,
		size:   aws.ToInt64(head.ContentLength),
	}, nil
}

// NewFromDefaultConfig builds a Source using the ambient AWS
// configuration (environment, shared config, instance role).
func NewFromDefaultConfig(ctx context.Context, bucket, key string) (*Source, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load aws config: %w", err)
	}

	return New(ctx, s3.NewFromConfig(cfg), bucket, key)
}

// ReadAt implements io.ReaderAt with one ranged GetObject per call. The
// background context applies since io.ReaderAt carries none.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if off >= s.size {
		return 0, io.EOF
	}

	end := off + int64(len(p)) - 1
	if end >= s.size {
		end = s.size - 1
	}

	resp, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.ReadFull(resp.Body, p[:end-off+1])
	if err == io.ErrUnexpectedEOF {
		if off+int64(n) == s.size {
			return n, nil
		}
		return n, io.EOF
	}

	if err == nil && int64(n) < int64(len(p)) {
		return n, io.EOF
	}

	return n, err
}

// Size implements pager.Source.
func (s *Source) Size() int64 { return s.size }

// Close implements io.Closer. The S3 client is shared and stays open.
func (s *Source) Close() error { return nil }
