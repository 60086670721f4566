// Command darkhold bridges a local Codex app-server to the browser: it
// forwards RPC calls over HTTP, fans thread events out over SSE and lets
// HTTP clients answer the approvals the agent asks for.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/darkhold/config"
	"github.com/viant/darkhold/eventlog"
	"github.com/viant/darkhold/server"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "darkhold",
		Short:   "HTTP gateway for a local Codex app-server",
		Long:    "Darkhold spawns `codex app-server` and exposes it to browsers:\nRPC over HTTP, thread events over SSE and approval round trips.",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}
	flags := cmd.Flags()
	flags.String(config.KeyBind, "127.0.0.1", "address both listeners bind to")
	flags.Int(config.KeyPort, 3275, "browser API port")
	flags.Int(config.KeyRPCPort, 3276, "operational API port (health, rpc, metrics)")
	flags.StringSlice(config.KeyAllowCIDR, nil, "additional IPv4 client ranges to accept")
	flags.String(config.KeyBasePath, "", "root directory the workspace browser may list (default: home)")
	flags.String(config.KeyCodexCommand, "codex", "app-server executable")
	flags.StringSlice(config.KeyCodexArg, []string{"app-server"}, "app-server arguments")
	flags.String(config.KeyRemoteHost, "", "launch the app-server over SSH on this host")
	flags.String(config.KeyRemoteSecret, "", "secret resource with the SSH credentials")
	flags.String(config.KeyLogLevel, "info", "log level: debug, info, warn or error")
	flags.Duration(config.KeyRPCTimeout, 20*time.Second, "upstream call timeout")
	flags.Duration(config.KeyKeepalive, 15*time.Second, "SSE keepalive cadence")
	flags.Duration(config.KeyChildGrace, 2500*time.Millisecond, "wait between interrupt and kill on shutdown")
	flags.Duration(config.KeyShutdownGrace, 5*time.Second, "wait for HTTP connections to drain on shutdown")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	store, err := eventlog.New()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("failed to remove event logs", "dir", store.Dir(), "error", err)
		}
	}()

	s, err := server.New(cfg, server.WithLogger(logger), server.WithStore(store))
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Start(ctx)
}
