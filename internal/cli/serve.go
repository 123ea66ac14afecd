package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/smartcommit/internal/api"
	"github.com/sprite-ai/smartcommit/internal/log"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing the smartcommit engine.

Endpoints:
  GET  /health               Health check
  POST /api/generate         Run the agent loop on a diff
  POST /api/check            Score a message against a diff
  POST /api/parse            Parse a diff into structured files
  GET  /api/changes          Files changed in the working tree
  GET  /api/history/{count}  Recent commits
  GET  /api/audit/stats      Session audit counters
  GET  /api/audit/report     Audit report (?days=N)
  GET  /api/audit/events     Recent audit events (?kind=...&limit=N)
  GET  /api/ws               WebSocket streaming each agent decision
  GET  /metrics              Prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "address to listen on (overrides config)")
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.API.Addr = addr
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.API.Port = port
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	eng, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	repoDir, err := gitRepoRoot()
	if err != nil {
		log.Warnf("not in a git repository; /api/changes and /api/history will fail")
	}

	srv := api.New(cfg.Addr(), repoDir, eng)
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
