package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	payments "github.com/goliatone/go-payments"
	"github.com/goliatone/go-payments/adapters/zerologger"
	"github.com/goliatone/go-payments/core"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newLogger(s settings) (*zerologger.Logger, error) {
	return zerologger.NewConsole(os.Stderr, s.LogLevel, s.LogPretty)
}

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept provider webhooks over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.settings()
			if err != nil {
				return err
			}
			if addr != "" {
				s.Addr = addr
			}
			logger, err := newLogger(s)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, s, logger, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return serve(ctx, s.Addr, a.Handler(), logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides "+envHTTPAddr)
	return cmd
}

func serve(ctx context.Context, addr string, handler http.Handler, logger *zerologger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("payments listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("shutdown did not complete cleanly", "error", err)
		return err
	}
	logger.Info("payments stopped")
	return nil
}

func checkConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the environment without starting the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.settings()
			if err != nil {
				return err
			}
			providers, err := payments.ProvidersFromEnv(s.Enabled, s.Env, nil)
			if err != nil {
				if keys := core.MissingKeys(err); len(keys) > 0 {
					return fmt.Errorf("missing configuration: %s", strings.Join(keys, ", "))
				}
				return err
			}
			svc, err := payments.NewService(payments.Config{},
				payments.WithConfigProvider(core.NewCfgxConfigProvider(core.MapConfigLoader{Values: s.Raw})),
				payments.WithProviders(providers...),
			)
			if err != nil {
				return err
			}

			cfg := svc.Config()
			ids := make([]string, 0, len(providers))
			for _, provider := range providers {
				ids = append(ids, provider.ID())
			}
			sort.Strings(ids)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "service:   %s\n", cfg.ServiceName)
			fmt.Fprintf(out, "providers: %s\n", strings.Join(ids, ", "))
			fmt.Fprintf(out, "default:   %s\n", cfg.DefaultProvider)
			if s.DBDSN == "" {
				fmt.Fprintln(out, "claims:    memory")
			} else {
				fmt.Fprintf(out, "claims:    %s\n", s.DBDriver)
			}
			return nil
		},
	}
}

func purgeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-events",
		Short: "Delete completed webhook claims older than the dedupe window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.settings()
			if err != nil {
				return err
			}
			logger, err := newLogger(s)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), s, logger, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			removed, err := a.Purge(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d webhook events\n", removed)
			return nil
		},
	}
}
