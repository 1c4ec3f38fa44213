package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/walletcore/internal/config"
	"github.com/roach88/walletcore/internal/core"
	"github.com/roach88/walletcore/internal/journal"
	"github.com/roach88/walletcore/internal/plugin"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config      string
	Database    string
	MetricsAddr string

	// Registry supplies plugins named in the config. The binary registers
	// none, so a config that names plugins fails unless a test sets one.
	Registry *plugin.Registry
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a core and journal every action",
		Long: `Start a walletcore runtime from a config file and journal every
dispatched action to a SQLite database until interrupted.

The database must be new or empty; use replay to inspect it afterwards.

Examples:
  walletcore run --config ./walletcore.yaml --db ./walletcore.db
  walletcore run --config ./walletcore.yaml --db ./walletcore.db --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCore(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to config file (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runCore(opts *RunOptions, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger.Info("opening journal", "path", opts.Database)
	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	if last, err := j.LastSeq(parentCtx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	} else if last > 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal %s already holds %d actions", opts.Database, last))
	}

	registry := opts.Registry
	if registry == nil {
		registry = plugin.NewRegistry()
	}

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	w := journal.NewWriter(j, journal.WithWriterLogger(logger))
	c, err := core.New(cfg,
		core.WithContext(ctx),
		core.WithLogger(logger),
		core.WithRegistry(registry),
		core.WithRecorder(w),
		core.WithCallbacks(core.Callbacks{
			OnError: func(err error) {
				logger.Warn("background fault", "error", err)
			},
		}),
	)
	if err != nil {
		_ = w.Close()
		return WrapExitError(ExitFailure, "failed to start core", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var srv *http.Server
	if opts.MetricsAddr != "" {
		srv, err = serveMetrics(opts.MetricsAddr, logger)
		if err != nil {
			c.Destroy()
			_ = w.Close()
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Core started. Journaling to", opts.Database)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	<-ctx.Done()

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		done()
	}

	c.Destroy()
	seq := c.Seq()
	if err := w.Close(); err != nil {
		return WrapExitError(ExitFailure, "journal write failed", err)
	}

	logger.Info("core stopped gracefully", "actions", seq)
	fmt.Fprintf(cmd.OutOrStdout(), "Journaled %d actions.\n", seq)
	return nil
}

// serveMetrics starts a promhttp server on addr. The listener is bound
// before returning so address errors surface immediately.
func serveMetrics(addr string, logger *slog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return srv, nil
}
