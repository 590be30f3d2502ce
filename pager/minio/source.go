package minio

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/vecscan/pager"
)

// Source is a pager.Source backed by one object in a MinIO bucket.
type Source struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

// New stats the object and returns a Source for it. pager.ErrNotFound is
// returned when the object or its bucket does not exist.
func New(ctx context.Context, client *minio.Client, bucket, key string) (*Source, error) {
	info, err := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" || errResp.Code == "NotFound" {
			return nil, pager.ErrNotFound
		}

		return nil, fmt.Errorf("minio: failed to stat %s/%s: %w", bucket, key, err)
	}

	return &Source{
		client: client,
		bucket: bucket,
		key:    key,
		size:   info.Size,
	}, nil
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

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, end); err != nil {
		return 0, err
	}

	obj, err := s.client.GetObject(context.Background(), s.bucket, s.key, opts)
	if err != nil {
		return 0, err
	}
	defer obj.Close()

	n, err := io.ReadFull(obj, p[:end-off+1])
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

// Close implements io.Closer. The MinIO client is shared and stays open.
func (s *Source) Close() error { return nil }

// Upload streams r into bucket/key. Pass -1 for size when the length is
// not known ahead of time.
func Upload(ctx context.Context, client *minio.Client, bucket, key string, r io.Reader, size int64) error {
	if _, err := client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("minio: failed to upload %s/%s: %w", bucket, key, err)
	}

	return nil
}
