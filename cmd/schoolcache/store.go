package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/schoolcache/config"
	"github.com/c360/schoolcache/kvstore"
	"github.com/c360/schoolcache/kvstore/natskv"
	"github.com/c360/schoolcache/kvstore/sqlitekv"
	"github.com/c360/schoolcache/natsclient"
	"github.com/c360/schoolcache/pkg/retry"
)

// backing is an opened store plus whatever must be released with it.
type backing struct {
	store kvstore.Store
	nats  *natsclient.Client
	close func(ctx context.Context) error
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backing, error) {
	switch cfg.Store.Kind {
	case config.StoreMemory:
		logger.Warn("Using in-memory store, entries are lost on exit")
		return &backing{store: kvstore.NewMemory(), close: noopClose}, nil

	case config.StoreSQLite:
		s, err := sqlitekv.Open(ctx, cfg.Store.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return &backing{
			store: s,
			close: func(context.Context) error { return s.Close() },
		}, nil

	case config.StoreNATS:
		client, err := newNATSClient(cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		if err := connectToNATS(ctx, client); err != nil {
			return nil, err
		}
		bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
			Bucket:      cfg.Store.Bucket,
			Description: "schoolcache entries",
			History:     1,
		})
		if err != nil {
			_ = client.Close(ctx)
			return nil, fmt.Errorf("open KV bucket %s: %w", cfg.Store.Bucket, err)
		}
		return &backing{
			store: natskv.New(client.NewKVStore(bucket)),
			nats:  client,
			close: client.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
}

func noopClose(context.Context) error { return nil }

func newNATSClient(cfg config.NATSConfig, logger *slog.Logger) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
	}
	if cfg.Name != "" {
		opts = append(opts, natsclient.WithName(cfg.Name))
	}
	if cfg.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.ReconnectWait.Std()))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(cfg.Timeout.Std()))
	}
	if cfg.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.Token))
	}

	client, err := natsclient.NewClient(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}
	return client, nil
}

// connectToNATS establishes NATS connection and waits for it to be ready
func connectToNATS(ctx context.Context, client *natsclient.Client) error {
	policy := retry.Connect()
	policy.Retryable = func(err error) bool { return !stderrors.Is(err, natsclient.ErrCircuitOpen) }
	if err := retry.Do(ctx, policy, func() error { return client.Connect(ctx) }); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		_ = client.Close(ctx)
		return fmt.Errorf("NATS connection timeout: %w", err)
	}
	return nil
}
