package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/Zakariast578/portfolio/internal/config"
	"github.com/Zakariast578/portfolio/internal/contact"
	"github.com/Zakariast578/portfolio/internal/emailjs"
	"github.com/Zakariast578/portfolio/internal/store"
)

var (
	verbose bool
	port    string
	envFile string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Serve the portfolio site",
	Long: `Serves the single-page portfolio: hero, about with animated counters,
projects, skills and a contact form relayed through EmailJS.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return err
		}
		if port != "" {
			cfg.Port = port
		}
		gin.SetMode(cfg.GinMode)

		logger, err = buildLogger(cfg.LogLevel, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the analytics database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cmd.Context(), cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()
		logger.Info("database ready", zap.String("path", cfg.DatabasePath))
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete visitor records older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cmd.Context(), cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.PurgeVisitorsBefore(cmd.Context(), time.Now().Add(-cfg.Retention))
		if err != nil {
			return err
		}
		logger.Info("visitor records removed", zap.Int64("rows", n), zap.Duration("retention", cfg.Retention))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")

	rootCmd.AddCommand(migrateCmd, cleanupCmd)
}

func buildLogger(level string, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		logger.Warn("contact relay is not fully configured, submissions will fail", zap.Error(err))
	}

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	relay := emailjs.New(emailjs.Config{
		ServiceID:  cfg.EmailJS.ServiceID,
		TemplateID: cfg.EmailJS.TemplateID,
		PublicKey:  cfg.EmailJS.PublicKey,
		PrivateKey: cfg.EmailJS.PrivateKey,
		BaseURL:    cfg.EmailJS.BaseURL,
		Timeout:    cfg.EmailJS.Timeout,
	})
	sender := contact.SenderFunc(func(ctx context.Context, p contact.Payload) error {
		return relay.Send(ctx, p)
	})

	srv, err := newServer(cfg, logger, st, sender)
	if err != nil {
		return err
	}
	engine, err := srv.routes()
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		srv.wait()
		return err
	})
	g.Go(func() error {
		return srv.admin.sweep(gctx, 24*time.Hour)
	})

	return g.Wait()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
