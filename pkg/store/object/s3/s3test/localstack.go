// Package s3test starts Localstack for S3 integration tests.
package s3test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Localstack is a running Localstack S3 endpoint.
type Localstack struct {
	container testcontainers.Container
	Endpoint  string
	Client    *s3.Client
}

// Start starts a Localstack container, or connects to LOCALSTACK_ENDPOINT
// when set. The container is terminated at the end of the test.
func Start(t *testing.T) *Localstack {
	t.Helper()
	ctx := context.Background()

	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		ls := &Localstack{Endpoint: endpoint}
		ls.createClient(t)
		return ls
	}

	req := testcontainers.ContainerRequest{
		Image:        "localstack/localstack:3.0",
		ExposedPorts: []string{"4566/tcp"},
		Env: map[string]string{
			"SERVICES":              "s3",
			"DEFAULT_REGION":        "us-east-1",
			"EAGER_SERVICE_LOADING": "1",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4566/tcp"),
			wait.ForHTTP("/_localstack/health").
				WithPort("4566/tcp").
				WithStartupTimeout(60*time.Second),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start localstack container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4566")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	ls := &Localstack{
		container: container,
		Endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
	}
	ls.createClient(t)
	return ls
}

func (ls *Localstack) createClient(t *testing.T) {
	t.Helper()

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		t.Fatalf("failed to load AWS config: %v", err)
	}

	ls.Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(ls.Endpoint)
		o.UsePathStyle = true
	})
}

// CreateBucket creates a uniquely named bucket and returns its name.
func (ls *Localstack) CreateBucket(t *testing.T) string {
	t.Helper()

	name := fmt.Sprintf("test-bucket-%d", time.Now().UnixNano())
	_, err := ls.Client.CreateBucket(context.Background(), &s3.CreateBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		t.Fatalf("failed to create test bucket: %v", err)
	}
	return name
}
