package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/urlq-dev/urlq/internal/config"
	"github.com/urlq-dev/urlq/internal/errors"
	"github.com/urlq-dev/urlq/pkg/adapter/browser"
	"github.com/urlq-dev/urlq/pkg/instrument"
	"github.com/urlq-dev/urlq/pkg/urlq"
)

func serveCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sync server",
		Long: `Start the sync server.

Each connected page gets its own engine instance. The demo page at /
exercises the full loop: typed writes, coalescing, back/forward
reconciliation.

Examples:
  urlq serve
  urlq serve --port=8080
  urlq serve --host=0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, host)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from urlq.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from urlq.json)")

	return cmd
}

func runServe(port int, host string) error {
	cfg, err := loadOrDefault()
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var metrics *instrument.Metrics
	if cfg.Metrics.Enabled {
		metrics = instrument.NewMetrics(instrument.WithNamespace(cfg.Metrics.Namespace))
	}

	wsConfig := browser.DefaultConfig()
	wsConfig.ReadTimeout = cfg.ReadTimeout()
	wsConfig.WriteTimeout = cfg.WriteTimeout()
	wsConfig.PingInterval = cfg.PingInterval()
	if len(cfg.Server.AllowedOrigins) > 0 {
		wsConfig.CheckOrigin = originChecker(cfg.Server.AllowedOrigins)
	}

	wsHandler := browser.NewHandler(func(s *browser.Session) {
		opts := []urlq.Option{urlq.WithLogger(logger)}
		if cfg.Debug {
			opts = append(opts, urlq.WithDebug())
		}
		if len(cfg.KeyMap) > 0 {
			opts = append(opts, urlq.WithKeyMap(cfg.KeyMap))
		}
		if metrics != nil {
			opts = append(opts, urlq.WithObserver(metrics))
		}
		e := urlq.New(s, opts...)
		logger.Info("page connected", "query", s.QueryString())

		go func() {
			<-s.Done()
			e.Close()
			logger.Info("page disconnected")
		}()
	}, browser.WithConfig(wsConfig), browser.WithLogger(logger))

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Handle("/ws", wsHandler)
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, demoPage)
	})

	srv := &http.Server{
		Addr:    cfg.Address(),
		Handler: r,
	}

	go func() {
		logger.Info("listening", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// loadOrDefault reads urlq.json from the working directory, falling back to
// defaults when the file is absent.
func loadOrDefault() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(wd)
	if err != nil {
		if errors.HasCode(err, errors.CodeConfigNotFound) {
			return config.New(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
