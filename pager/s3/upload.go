package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Upload streams r into s3://bucket/key through the S3 upload manager.
func Upload(ctx context.Context, client manager.UploadAPIClient, bucket, key string, r io.Reader) error {
	uploader := manager.NewUploader(client)

	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   r,
	}); err != nil {
		return fmt.Errorf("s3: failed to upload s3://%s/%s: %w", bucket, key, err)
	}

	return nil
}

// UploadWriter is an io.WriteCloser whose bytes stream into an S3 object
// as they are written. Close flushes the upload and reports its outcome,
// so a pager.Writer can target S3 directly.
type UploadWriter struct {
	pw   *io.PipeWriter
	done chan error
}

// NewUploadWriter starts a background upload to s3://bucket/key and
// returns the writer feeding it.
func NewUploadWriter(ctx context.Context, client manager.UploadAPIClient, bucket, key string) *UploadWriter {
	pr, pw := io.Pipe()

	w := &UploadWriter{
		pw:   pw,
		done: make(chan error, 1),
	}

	go func() {
		err := Upload(ctx, client, bucket, key, pr)
		_ = pr.CloseWithError(err)
		w.done <- err
	}()

	return w
}

// Write implements io.Writer. It blocks while the uploader drains the pipe.
func (w *UploadWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Close finishes the upload and returns its error, if any.
func (w *UploadWriter) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}

	return <-w.done
}
