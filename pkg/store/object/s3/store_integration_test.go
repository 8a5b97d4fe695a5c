//go:build integration

package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dray/pkg/store/object"
	"github.com/marmos91/dray/pkg/store/object/s3/s3test"
	"github.com/marmos91/dray/pkg/store/object/storetest"
)

func TestConformance(t *testing.T) {
	ls := s3test.Start(t)

	for _, prefix := range []string{"", "tenant-a/"} {
		t.Run("prefix="+prefix, func(t *testing.T) {
			storetest.RunConformanceSuite(t, func(t *testing.T) object.Store {
				s := New(ls.Client, Config{Bucket: ls.CreateBucket(t), KeyPrefix: prefix}, nil)
				t.Cleanup(func() { _ = s.Close() })
				return s
			})
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	ls := s3test.Start(t)
	bucket := ls.CreateBucket(t)
	ctx := context.Background()

	s, err := NewFromConfig(ctx, Config{
		Bucket:          bucket,
		Region:          "us-east-1",
		Endpoint:        ls.Endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ForcePathStyle:  true,
		MaxRetries:      2,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, s.HealthCheck(ctx))

	require.NoError(t, s.Put(ctx, "a b/ünï+code.txt", []byte("x")))
	require.NoError(t, s.Copy(ctx, "a b/ünï+code.txt", "copy.txt"))
	got, err := s.Get(ctx, "copy.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestHealthCheckMissingBucket(t *testing.T) {
	ls := s3test.Start(t)
	s := New(ls.Client, Config{Bucket: "does-not-exist-bucket"}, nil)
	assert.Error(t, s.HealthCheck(context.Background()))
}
