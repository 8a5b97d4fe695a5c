package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dray/internal/logger"
	"github.com/marmos91/dray/internal/telemetry"
	"github.com/marmos91/dray/pkg/adapter/sftp"
	"github.com/marmos91/dray/pkg/api"
	"github.com/marmos91/dray/pkg/config"
	"github.com/marmos91/dray/pkg/metrics"
	promMetrics "github.com/marmos91/dray/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the SFTP server",
	Long: `Start the dray SFTP server in the foreground.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/dray/config.yaml.

SIGINT and SIGTERM trigger a graceful shutdown bounded by
server.shutdown_timeout.

Examples:
  # Start with the default config
  dray start

  # Start with custom config file
  dray start --config /etc/dray/config.yaml

  # Start with environment variable overrides
  DRAY_LOGGING_LEVEL=DEBUG dray start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "dray",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Starting dray", "version", Version, "commit", Commit)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	sftpMetrics := promMetrics.NewSFTPMetrics()
	s3Metrics := promMetrics.NewS3Metrics()

	store, err := config.CreateObjectStore(ctx, cfg.Storage, s3Metrics)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = store.HealthCheck(healthCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("object store health check failed: %w", err)
	}
	logger.Info("Object store ready", "type", cfg.Storage.Type, "bucket", cfg.Storage.S3.Bucket)

	hostKeys, generated, err := config.LoadHostKeys(ctx, store, cfg.SSH)
	if err != nil {
		return err
	}
	if generated {
		logger.Warn("No host keys configured, generated an ephemeral key; clients will see a new host key on every restart",
			logger.KeyFingerprint, ssh.FingerprintSHA256(hostKeys[0].PublicKey()))
	}

	authenticator, authorizer, err := config.CreateAuth(store, cfg.Auth)
	if err != nil {
		return err
	}

	server, err := sftp.New(sftp.Config{
		Listen:                   cfg.Server.Listen,
		MaxConnections:           cfg.Server.MaxConnections,
		MaxPacketSize:            uint32(cfg.Server.MaxPacketSize),
		MaxRequestsPerConnection: cfg.Server.MaxRequestsPerConnection,
		IdleTimeout:              cfg.Server.IdleTimeout,
		HandshakeTimeout:         cfg.Server.HandshakeTimeout,
		ShutdownTimeout:          cfg.Server.ShutdownTimeout,
		Version:                  Version,
	}, sftp.Deps{
		FS:            config.CreateFilesystem(store, cfg.Storage),
		Authenticator: authenticator,
		Authorizer:    authorizer,
		HostKeys:      hostKeys,
		Metrics:       sftpMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create SFTP server: %w", err)
	}

	httpServer := api.NewServer(api.Config{
		Listen:  cfg.Metrics.Listen,
		Metrics: cfg.Metrics.Enabled,
	}, api.Deps{
		Store:    store,
		Adapters: []api.ConnectionCounter{server},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx)
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return httpServer.Start(gctx)
		})
	}

	logger.Info("Server is running. Press Ctrl+C to stop.",
		logger.KeyAddress, cfg.Server.Listen,
		"auth_mode", cfg.Auth.Mode,
		"read_only", cfg.Auth.ReadOnly)

	err = g.Wait()
	switch {
	case errors.Is(err, context.Canceled):
		err = nil
	case err != nil:
		logger.Error("Server error", logger.Err(err))
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
