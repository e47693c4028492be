package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/COVIDWarriors/CWarriors-Covid19/runlog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var addr string

// serveCmd exposes runs over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API",
	Long: `Starts an HTTP server to start, pause and follow runs.

Endpoints:
  POST   /api/run       start a run of the configured station
  DELETE /api/run       abort it
  POST   /api/resume    resume after a tip replacement hold
  POST   /api/probe     level the deck and store the mesh in --dir
  GET    /api/plan      step table
  GET    /api/runs      run history, /api/runs/{id} for its steps
  GET    /events/...    server-sent events: steps, hold, state, run
  GET    /metrics       Prometheus metrics
  /data/                files in --dir`,
	RunE: serve,
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", ":8000", "Address to bind the server to")
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = addr
	}

	var store *runlog.Store
	if cfg.DB != "" {
		if store, err = runlog.Open(cfg.DB); err != nil {
			return err
		}
		defer store.Close()
	}

	a, err := newAPI(cfg, store, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "*")
			logger.Debug("request", zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.String("remote", req.RemoteAddr))
			a.ServeHTTP(w, req)
		}),
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("station", cfg.Station))
	err = srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
