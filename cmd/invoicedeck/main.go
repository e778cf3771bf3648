// Package main is the entry point for the Invoicedeck backend server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/invoicedeck/invoicedeck/internal/blob"
	"github.com/invoicedeck/invoicedeck/internal/config"
	"github.com/invoicedeck/invoicedeck/internal/logging"
	"github.com/invoicedeck/invoicedeck/internal/metadata"
	"github.com/invoicedeck/invoicedeck/internal/metrics"
	"github.com/invoicedeck/invoicedeck/internal/server"
)

func main() {
	configPath := flag.String("config", "invoicedeck.yaml", "path to configuration file")
	port := flag.Int("port", 0, "override listening port (default: from config or 8787)")
	host := flag.String("host", "", "override listening host (default: from config or 0.0.0.0)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default: from config or info)")
	logFormat := flag.String("log-format", "", "log format: text, json (default: from config or text)")
	shutdownTimeout := flag.Int("shutdown-timeout", 0, "graceful shutdown timeout in seconds (default: from config or 30)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file values.
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *shutdownTimeout != 0 {
		cfg.Server.ShutdownTimeout = *shutdownTimeout
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	metrics.Register()

	// Initialize SQLite metadata store; WAL auto-recovers on open.
	dbPath := cfg.Metadata.SQLite.Path
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create metadata directory: %v\n", err)
		os.Exit(1)
	}
	metaStore, err := metadata.NewSQLiteStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize metadata store: %v\n", err)
		os.Exit(1)
	}
	defer metaStore.Close()

	// Initialize blob store backend based on config.
	var blobStore blob.Store
	switch cfg.Storage.Backend {
	case "aws":
		if cfg.Storage.AWSBucket == "" {
			fmt.Fprintf(os.Stderr, "storage.aws_bucket is required when backend is 'aws'\n")
			os.Exit(1)
		}
		s3Store, s3Err := blob.NewS3Store(context.Background(), cfg.Storage.AWSBucket, cfg.Storage.AWSRegion, blob.S3Options{
			EndpointURL:     cfg.Storage.AWSEndpointURL,
			UsePathStyle:    cfg.Storage.AWSUsePathStyle,
			AccessKeyID:     cfg.Storage.AWSAccessKeyID,
			SecretAccessKey: cfg.Storage.AWSSecretAccessKey,
		})
		if s3Err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize S3 blob store: %v\n", s3Err)
			os.Exit(1)
		}
		blobStore = s3Store
		slog.Info("Blob store initialized", "backend", "aws",
			"bucket", cfg.Storage.AWSBucket, "region", cfg.Storage.AWSRegion,
			"endpoint", cfg.Storage.AWSEndpointURL)
	case "gcs":
		if cfg.Storage.GCSBucket == "" {
			fmt.Fprintf(os.Stderr, "storage.gcs_bucket is required when backend is 'gcs'\n")
			os.Exit(1)
		}
		gcsStore, gcsErr := blob.NewGCSStore(context.Background(), cfg.Storage.GCSBucket)
		if gcsErr != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize GCS blob store: %v\n", gcsErr)
			os.Exit(1)
		}
		blobStore = gcsStore
		slog.Info("Blob store initialized", "backend", "gcs", "bucket", cfg.Storage.GCSBucket)
	default:
		// In-memory store: development only, contents are lost on restart.
		blobStore = blob.NewMemoryStore()
		slog.Info("Blob store initialized", "backend", "memory")
	}

	srv := server.New(cfg, metaStore, blobStore)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Start the server in a goroutine so we can handle shutdown signals.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Invoicedeck listening", "addr", addr)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// SIGTERM/SIGINT: stop accepting connections, wait for in-flight requests
	// with a timeout, then exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Received signal, shutting down", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Shutdown error", "error", err)
		}
		slog.Info("Server stopped")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}
