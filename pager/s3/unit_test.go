package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecscan/model"
	"github.com/hupe1980/vecscan/pager"
)

// MockS3Client mocks the Client interface.
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	if out, ok := args.Get(0).(*s3.HeadObjectOutput); ok {
		return out, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if out, ok := args.Get(0).(*s3.GetObjectOutput); ok {
		return out, args.Error(1)
	}

	return nil, args.Error(1)
}

func TestSource_New(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockClient := new(MockS3Client)
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Bucket == "test-bucket" && *input.Key == "pages/index.vpg"
		})).Return(&s3.HeadObjectOutput{
			ContentLength: aws.Int64(4096),
		}, nil).Once()

		src, err := New(ctx, mockClient, "test-bucket", "pages/index.vpg")
		require.NoError(t, err)
		assert.Equal(t, int64(4096), src.Size())
		mockClient.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockClient := new(MockS3Client)
		mockClient.On("HeadObject", mock.Anything, mock.Anything).Return(nil, &types.NotFound{}).Once()

		_, err := New(ctx, mockClient, "test-bucket", "missing")
		assert.ErrorIs(t, err, pager.ErrNotFound)
	})

	t.Run("NoSuchKey", func(t *testing.T) {
		mockClient := new(MockS3Client)
		mockClient.On("HeadObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{}).Once()

		_, err := New(ctx, mockClient, "test-bucket", "missing")
		assert.ErrorIs(t, err, pager.ErrNotFound)
	})

	t.Run("OtherError", func(t *testing.T) {
		mockClient := new(MockS3Client)
		mockClient.On("HeadObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied")).Once()

		_, err := New(ctx, mockClient, "test-bucket", "forbidden")
		assert.ErrorContains(t, err, "failed to stat")
		assert.NotErrorIs(t, err, pager.ErrNotFound)
	})
}

func TestSource_ReadAt(t *testing.T) {
	t.Run("FullRange", func(t *testing.T) {
		mockClient := new(MockS3Client)
		mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
			return *input.Range == "bytes=0-9"
		})).Return(&s3.GetObjectOutput{
			Body:          io.NopCloser(bytes.NewReader([]byte("0123456789"))),
			ContentLength: aws.Int64(10),
		}, nil).Once()

		src := &Source{client: mockClient, bucket: "b", key: "k", size: 10}

		buf := make([]byte, 10)
		n, err := src.ReadAt(buf, 0)
		require.NoError(t, err)
		assert.Equal(t, 10, n)
		assert.Equal(t, []byte("0123456789"), buf)
		mockClient.AssertExpectations(t)
	})

	t.Run("ClampedTail", func(t *testing.T) {
		mockClient := new(MockS3Client)
		mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
			return *input.Range == "bytes=6-9"
		})).Return(&s3.GetObjectOutput{
			Body:          io.NopCloser(bytes.NewReader([]byte("6789"))),
			ContentLength: aws.Int64(4),
		}, nil).Once()

		src := &Source{client: mockClient, bucket: "b", key: "k", size: 10}

		buf := make([]byte, 8)
		n, err := src.ReadAt(buf, 6)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, 4, n)
		assert.Equal(t, []byte("6789"), buf[:n])
	})

	t.Run("PastEnd", func(t *testing.T) {
		src := &Source{client: new(MockS3Client), bucket: "b", key: "k", size: 10}

		_, err := src.ReadAt(make([]byte, 4), 10)
		assert.ErrorIs(t, err, io.EOF)
	})
}

// fakeObjectClient serves ranged reads from an in-memory object so a
// pager.File can run against it end to end.
type fakeObjectClient struct {
	data []byte
	gets int
}

func (f *fakeObjectClient) HeadObject(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(f.data)))}, nil
}

func (f *fakeObjectClient) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	var start, end int64
	if _, err := fmt.Sscanf(aws.ToString(params.Range), "bytes=%d-%d", &start, &end); err != nil {
		return nil, fmt.Errorf("unexpected range %q", aws.ToString(params.Range))
	}

	if end >= int64(len(f.data)) {
		end = int64(len(f.data)) - 1
	}

	f.gets++
	body := f.data[start : end+1]

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func TestFileOverS3(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer

	w, err := pager.NewWriter(&buf, func(o *pager.WriterOptions) {
		o.PageSize = 512
		o.Compression = true
	})
	require.NoError(t, err)

	payloads := make([][]byte, 20)
	refs := make([]model.RecordRef, len(payloads))

	for i := range payloads {
		payloads[i] = bytes.Repeat([]byte{byte('a' + i%26)}, 64)

		refs[i], err = w.Append(payloads[i])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	fake := &fakeObjectClient{data: buf.Bytes()}

	src, err := New(ctx, fake, "test-bucket", "pages/index.vpg")
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), src.Size())

	f, err := pager.OpenFile(src)
	require.NoError(t, err)
	defer f.Close()

	for i, ref := range refs {
		pinned, err := f.Pin(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, payloads[i], pinned.Bytes())
		pinned.Release()
	}

	assert.Greater(t, fake.gets, 0)
}

// fakeUploadClient captures single-shot uploads. The payloads in these
// tests stay below the part size, so the multipart paths never fire.
type fakeUploadClient struct {
	bucket string
	key    string
	body   []byte
}

func (f *fakeUploadClient) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.bucket = aws.ToString(params.Bucket)
	f.key = aws.ToString(params.Key)
	f.body = data

	return &s3.PutObjectOutput{}, nil
}

func (f *fakeUploadClient) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (f *fakeUploadClient) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (f *fakeUploadClient) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (f *fakeUploadClient) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func TestUploadWriter(t *testing.T) {
	ctx := context.Background()
	fake := &fakeUploadClient{}

	uw := NewUploadWriter(ctx, fake, "test-bucket", "pages/index.vpg")

	w, err := pager.NewWriter(uw)
	require.NoError(t, err)

	payloads := [][]byte{
		[]byte("alpha"),
		[]byte("beta"),
		[]byte("gamma"),
	}

	refs := make([]model.RecordRef, len(payloads))
	for i, payload := range payloads {
		refs[i], err = w.Append(payload)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	require.NoError(t, uw.Close())

	assert.Equal(t, "test-bucket", fake.bucket)
	assert.Equal(t, "pages/index.vpg", fake.key)

	f, err := pager.OpenFile(pager.NewBytesSource(fake.body))
	require.NoError(t, err)
	defer f.Close()

	for i, ref := range refs {
		pinned, err := f.Pin(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, payloads[i], pinned.Bytes())
		pinned.Release()
	}
}
