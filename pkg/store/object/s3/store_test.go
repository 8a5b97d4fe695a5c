package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dray/pkg/store/object"
)

// fakeClient records inputs and returns canned outputs.
type fakeClient struct {
	listIn   *s3.ListObjectsV2Input
	listOut  *s3.ListObjectsV2Output
	headIn   *s3.HeadObjectInput
	headErr  error
	getIn    *s3.GetObjectInput
	getBody  string
	getErr   error
	putIn    *s3.PutObjectInput
	putBody  []byte
	deleted  []string
	copyIn   *s3.CopyObjectInput
	bucketIn *s3.HeadBucketInput
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listIn = in
	return f.listOut, nil
}

func (f *fakeClient) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.headIn = in
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(7), LastModified: aws.Time(time.Unix(100, 0))}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.getIn = in
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(f.getBody))}, nil
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putIn = in
	f.putBody, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.copyIn = in
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeClient) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.bucketIn = in
	return &s3.HeadBucketOutput{}, nil
}

type recordingMetrics struct {
	ops   []string
	bytes int64
}

func (m *recordingMetrics) ObserveOperation(op string, _ time.Duration, _ error) {
	m.ops = append(m.ops, op)
}

func (m *recordingMetrics) RecordBytes(_ string, n int64) { m.bytes += n }

func newFake(prefix string) (*Store, *fakeClient, *recordingMetrics) {
	fc := &fakeClient{}
	m := &recordingMetrics{}
	return New(fc, Config{Bucket: "bkt", KeyPrefix: prefix}, m), fc, m
}

func TestListStripsPrefix(t *testing.T) {
	s, fc, _ := newFake("root/")
	fc.listOut = &s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("root/home/alice/a.txt"), Size: aws.Int64(3), LastModified: aws.Time(time.Unix(5, 0))},
		},
		CommonPrefixes:        []types.CommonPrefix{{Prefix: aws.String("root/home/alice/docs/")}},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("tok-2"),
	}

	page, err := s.List(context.Background(), "home/alice/", "tok-1", 50)
	require.NoError(t, err)

	assert.Equal(t, "root/home/alice/", aws.ToString(fc.listIn.Prefix))
	assert.Equal(t, "/", aws.ToString(fc.listIn.Delimiter))
	assert.Equal(t, "tok-1", aws.ToString(fc.listIn.ContinuationToken))
	assert.Equal(t, int32(50), aws.ToInt32(fc.listIn.MaxKeys))

	require.Len(t, page.Objects, 1)
	assert.Equal(t, "home/alice/a.txt", page.Objects[0].Key)
	assert.Equal(t, int64(3), page.Objects[0].Size)
	assert.Equal(t, []string{"home/alice/docs/"}, page.CommonPrefixes)
	assert.Equal(t, "tok-2", page.NextToken)
	assert.False(t, page.Done())
}

func TestListLastPageHasNoToken(t *testing.T) {
	s, fc, _ := newFake("")
	fc.listOut = &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false), NextContinuationToken: aws.String("ignored")}

	page, err := s.List(context.Background(), "", "", 0)
	require.NoError(t, err)
	assert.True(t, page.Done())
	assert.Nil(t, fc.listIn.MaxKeys)
	assert.Nil(t, fc.listIn.ContinuationToken)
}

func TestGetRangeHeader(t *testing.T) {
	tests := []struct {
		offset, length int64
		want           string
	}{
		{0, 0, ""},
		{0, 10, "bytes=0-9"},
		{100, 1, "bytes=100-100"},
		{5, 0, "bytes=5-"},
	}
	for _, tt := range tests {
		s, fc, m := newFake("")
		fc.getBody = "payload"

		data, err := s.Get(context.Background(), "k", tt.offset, tt.length)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
		assert.Equal(t, tt.want, aws.ToString(fc.getIn.Range))
		assert.Equal(t, int64(7), m.bytes)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"NoSuchKey", &types.NoSuchKey{}, object.ErrNotFound},
		{"NotFound", &types.NotFound{}, object.ErrNotFound},
		{"AccessDenied", &smithy.GenericAPIError{Code: "AccessDenied"}, object.ErrAccessDenied},
		{"InvalidRange", &smithy.GenericAPIError{Code: "InvalidRange"}, object.ErrInvalidRange},
		{"Throttled", &smithy.GenericAPIError{Code: "SlowDown"}, nil},
		{"Network", errors.New("connection reset"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fc, _ := newFake("")
			fc.getErr = tt.err

			_, err := s.Get(context.Background(), "k", 0, 0)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			} else {
				assert.False(t, errors.Is(err, object.ErrNotFound))
				assert.False(t, errors.Is(err, object.ErrAccessDenied))
			}
		})
	}
}

func TestPutSendsWholeObject(t *testing.T) {
	s, fc, m := newFake("p/")
	require.NoError(t, s.Put(context.Background(), "a/b", []byte("hello")))

	assert.Equal(t, "p/a/b", aws.ToString(fc.putIn.Key))
	assert.Equal(t, int64(5), aws.ToInt64(fc.putIn.ContentLength))
	assert.Equal(t, "hello", string(fc.putBody))
	assert.Equal(t, []string{"PutObject"}, m.ops)
}

func TestDeleteChecksExistence(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		s, fc, _ := newFake("")
		fc.headErr = &types.NotFound{}

		assert.ErrorIs(t, s.Delete(context.Background(), "gone"), object.ErrNotFound)
		assert.Empty(t, fc.deleted)
	})

	t.Run("Present", func(t *testing.T) {
		s, fc, _ := newFake("x/")
		require.NoError(t, s.Delete(context.Background(), "here"))
		assert.Equal(t, []string{"x/here"}, fc.deleted)
	})
}

func TestCopySourceEncoding(t *testing.T) {
	s, fc, _ := newFake("pre/")
	require.NoError(t, s.Copy(context.Background(), "dir/a b+c.txt", "dst"))

	assert.Equal(t, "bkt/pre/dir/a%20b+c.txt", aws.ToString(fc.copyIn.CopySource))
	assert.Equal(t, "pre/dst", aws.ToString(fc.copyIn.Key))
}

func TestHeadAndHealth(t *testing.T) {
	s, fc, _ := newFake("")
	info, err := s.Head(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, object.Info{Key: "k", Size: 7, ModTime: time.Unix(100, 0)}, info)

	require.NoError(t, s.HealthCheck(context.Background()))
	assert.Equal(t, "bkt", aws.ToString(fc.bucketIn.Bucket))
}

func TestClosedStore(t *testing.T) {
	s, _, _ := newFake("")
	require.NoError(t, s.Close())

	_, err := s.Head(context.Background(), "k")
	assert.ErrorIs(t, err, object.ErrStoreClosed)
	assert.ErrorIs(t, s.Put(context.Background(), "k", nil), object.ErrStoreClosed)
}
