package cmd

import (
	"context"
	"errors"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lopesmcc/plotman/internal/observability"
	"github.com/lopesmcc/plotman/internal/server"
	"github.com/lopesmcc/plotman/pkg/history"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor with the status HTTP server",
	Long: `Run the monitor loop and expose its snapshots over HTTP.

Endpoints:
  GET  /health       liveness
  GET  /version      build info
  GET  /v1/snapshot  latest full snapshot
  GET  /v1/jobs      latest ingress jobs
  POST /v1/refresh   request an immediate cycle (throttled)
  GET  /v1/history   completed transfers (when a ledger is configured)

Example:
  plotman serve --manifest farm.yaml
  plotman serve --manifest farm.yaml --port 9090`,
	RunE: runServe,
}

var (
	serveManifestPath string
	serveHost         string
	servePort         int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveManifestPath, "manifest", "m", "", "Path to archiving manifest (required)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Override server host")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override server port")

	_ = serveCmd.MarkFlagRequired("manifest")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	poller, cleanup, err := buildPoller(ctx, serveManifestPath)
	if err != nil {
		return err
	}
	defer cleanup()

	host := cfg.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	opts := []server.Option{
		server.WithSnapshotSource(poller),
		server.WithVersion(server.VersionInfo{
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		}),
	}
	if cfg.History.Path != "" {
		store, err := history.Open(ctx, history.Config{Path: cfg.History.Path})
		if err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to open history ledger", err)
		}
		defer func() { _ = store.Close() }()
		opts = append(opts, server.WithHistory(store))
	}
	srv := server.New(host, port, opts...)

	observability.CLILogger.Info("Starting status server",
		zap.String("host", host),
		zap.Int("port", port))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		return srv.Start(gctx,
			cfg.Server.ReadTimeout,
			cfg.Server.WriteTimeout,
			cfg.Server.IdleTimeout,
			cfg.Server.ShutdownTimeout)
	})

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		observability.CLILogger.Info("Server stopped")
		return nil
	default:
		return exitError(foundry.ExitExternalServiceUnavailable, "Serve failed", err)
	}
}
