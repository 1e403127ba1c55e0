package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pkt.systems/pslog"
)

// withRuntime opens the runtime, runs fn and always drains it afterwards.
func withRuntime(cmd *cobra.Command, baseLogger pslog.Logger, v *viper.Viper, fn func(ctx context.Context, rt *runtime) error) (err error) {
	cfg, err := bindSettings(v)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, cfg, baseLogger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.close(context.WithoutCancel(ctx)); cerr != nil {
			rt.logger.Warn("recordctl.shutdown.failed", "error", cerr)
		}
	}()
	return fn(ctx, rt)
}

func newGetCommand(baseLogger pslog.Logger, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the payload of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, baseLogger, v, func(ctx context.Context, rt *runtime) error {
				rec, err := rt.store.Open(ctx, args[0])
				if err != nil {
					return err
				}
				defer rt.store.Close(ctx, args[0])
				data, ok := rec.Data()
				if !ok {
					return fmt.Errorf("record %q not found", rec.ID())
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			})
		},
	}
}

func newPutCommand(baseLogger pslog.Logger, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "put KEY JSON",
		Short: "Replace the payload of a record while holding its lock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := json.RawMessage(args[1])
			if !json.Valid(payload) {
				return fmt.Errorf("payload is not valid JSON")
			}
			return withRuntime(cmd, baseLogger, v, func(ctx context.Context, rt *runtime) error {
				rec, err := rt.store.Open(ctx, args[0])
				if err != nil {
					return err
				}
				defer rt.store.Close(ctx, args[0])
				if err := rec.Unseal(ctx); err != nil {
					return err
				}
				rec.Set(payload)
				if err := rec.SaveNow(ctx); err != nil {
					return err
				}
				rt.logger.Info("recordctl.put.ok", "record", rec.ID())
				return nil
			})
		},
	}
}

func newOwnerCommand(baseLogger pslog.Logger, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "owner KEY",
		Short: "Print the session holding the lock of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, baseLogger, v, func(ctx context.Context, rt *runtime) error {
				tok, ok, err := rt.store.Owner(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !ok {
					_, err = fmt.Fprintln(out, "unset")
					return err
				}
				_, err = fmt.Fprintf(out, "%s %s\n", tok.SessionID, tok.AcquiredAt.Format(time.RFC3339))
				return err
			})
		},
	}
}

func newServeCommand(baseLogger pslog.Logger, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host a record store until interrupted, then drain it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, baseLogger, v, func(ctx context.Context, rt *runtime) error {
				if rt.cfg.MetricsListen != "" {
					srv, err := serveMetrics(rt)
					if err != nil {
						return err
					}
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
						defer cancel()
						_ = srv.Shutdown(shutdownCtx)
					}()
				}
				rt.store.Start(ctx)
				rt.logger.Info("recordctl.serve.ready", "store", rt.store.ID(), "session", rt.store.SessionID())
				<-ctx.Done()
				rt.logger.Info("recordctl.serve.stopping")
				return nil
			})
		},
	}
	cmd.Flags().String("metrics-listen", "", "prometheus listen address (empty disables)")
	if err := v.BindPFlag("metrics-listen", cmd.Flags().Lookup("metrics-listen")); err != nil {
		panic(err)
	}
	return cmd
}

func serveMetrics(rt *runtime) (*http.Server, error) {
	ln, err := net.Listen("tcp", rt.cfg.MetricsListen)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %q: %w", rt.cfg.MetricsListen, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("recordctl.metrics.failed", "error", err)
		}
	}()
	rt.logger.Info("recordctl.metrics.listening", "addr", ln.Addr().String())
	return srv, nil
}
