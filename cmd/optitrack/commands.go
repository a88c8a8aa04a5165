package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"optitrack/config"
	"optitrack/controllers"
	"optitrack/market"
)

func newRootCmd(cfg *config.Config, logger *logrus.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "optitrack",
		Short: "Option position tracker with live PNL",
		Long: `optitrack keeps a trade ledger per option position, derives realized and
unrealized PNL from live quotes, and settles positions at expiry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logger.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newServeCmd(cfg, logger))
	rootCmd.AddCommand(newSweepCmd(cfg, logger))
	rootCmd.AddCommand(newRefreshCmd(cfg, logger))
	rootCmd.AddCommand(newSummaryCmd(cfg, logger))
	rootCmd.AddCommand(newNormalizeCmd())

	return rootCmd
}

func newServeCmd(cfg *config.Config, logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the position monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if logger.GetLevel() < logrus.DebugLevel {
				gin.SetMode(gin.ReleaseMode)
			}
			router := gin.New()
			router.Use(gin.Recovery(), requestLogger(logger))

			controllers.RegisterRoutes(router,
				controllers.NewPositionController(app.Manager),
				controllers.NewActivityController(app.Activity),
				promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}),
			)

			go app.Manager.MonitorPositions(ctx, cfg.RefreshInterval)

			server := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func newSweepCmd(cfg *config.Config, logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire and settle positions past their expiry date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			app, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			transitions, err := app.Manager.SweepExpirations(ctx, time.Now())
			if err != nil {
				return err
			}

			for _, t := range transitions {
				line := fmt.Sprintf("%s  %-10s %s -> %s", t.PositionID, t.Symbol, t.From, t.To)
				if t.NeedsManualResolution {
					line += "  (no reference price, resolve manually)"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d position(s) changed\n", len(transitions))
			return nil
		},
	}
}

func newRefreshCmd(cfg *config.Config, logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh PNL of all open positions once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			app, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			records, err := app.Manager.RefreshOpenPositions(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd, records)
		},
	}
}

func newSummaryCmd(cfg *config.Config, logger *logrus.Logger) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "summary <position-id>",
		Short: "Print the PNL summary of a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			app, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			view, err := app.Manager.GetSummary(ctx, args[0], !offline)
			if err != nil {
				return err
			}
			return writeJSON(cmd, view)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "skip the live quote and use the last refresh")
	return cmd
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <symbol>...",
		Short: "Print canonical MARKET.CODE symbols",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				canonical, err := market.Normalize(arg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", arg, canonical)
			}
			return nil
		},
	}
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// requestLogger logs each request through logrus
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("HTTP request")
	}
}
