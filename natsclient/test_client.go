package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestClient is a connected Client backed by a NATS container.
type TestClient struct {
	container testcontainers.Container
	Client    *Client
	URL       string
	cleanup   func()
}

type testConfig struct {
	kvBuckets    []string
	natsVersion  string
	timeout      time.Duration
	startTimeout time.Duration
}

// TestOption configures NewTestClient
type TestOption func(*testConfig)

// WithKVBuckets pre-creates KV buckets
func WithKVBuckets(buckets ...string) TestOption {
	return func(cfg *testConfig) {
		cfg.kvBuckets = append(cfg.kvBuckets, buckets...)
	}
}

// WithNATSVersion selects the nats image tag
func WithNATSVersion(version string) TestOption {
	return func(cfg *testConfig) {
		cfg.natsVersion = version
	}
}

// WithStartTimeout sets the container startup timeout
func WithStartTimeout(timeout time.Duration) TestOption {
	return func(cfg *testConfig) {
		cfg.startTimeout = timeout
	}
}

// NewTestClient starts a JetStream-enabled NATS container, connects a Client
// to it and registers cleanup on t.
func NewTestClient(t testing.TB, opts ...TestOption) *TestClient {
	t.Helper()

	cfg := &testConfig{
		natsVersion:  "2.11.7-alpine",
		timeout:      5 * time.Second,
		startTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "nats:" + cfg.natsVersion,
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		Cmd:          []string{"--port", "4222", "--http_port", "8222", "--js"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(cfg.startTimeout),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start NATS container: %v", err)
	}
	terminate := func() { _ = container.Terminate(context.Background()) }

	host, err := container.Host(ctx)
	if err != nil {
		terminate()
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		terminate()
		t.Fatalf("mapped port: %v", err)
	}
	url := fmt.Sprintf("nats://%s:%s", host, port.Port())

	client, err := NewClient(url, WithTimeout(cfg.timeout), WithMaxReconnects(0))
	if err != nil {
		terminate()
		t.Fatalf("create NATS client: %v", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		terminate()
		t.Fatalf("connect to NATS: %v", err)
	}

	tc := &TestClient{
		container: container,
		Client:    client,
		URL:       url,
		cleanup: func() {
			_ = client.Close(context.Background())
			terminate()
		},
	}

	for _, name := range cfg.kvBuckets {
		if _, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: name}); err != nil {
			tc.cleanup()
			t.Fatalf("create KV bucket %s: %v", name, err)
		}
	}

	t.Cleanup(tc.Terminate)
	return tc
}

// Terminate closes the client and stops the container. Idempotent.
func (tc *TestClient) Terminate() {
	if tc.cleanup != nil {
		tc.cleanup()
		tc.cleanup = nil
	}
}
