package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/apppulse/apppulse/pkg/config"
	"github.com/apppulse/apppulse/pkg/query"
	"github.com/apppulse/apppulse/pkg/server"
	"github.com/apppulse/apppulse/pkg/warehouse"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long: `Start the HTTP server over the warehouse.

Endpoints:
  GET /api/dashboard?category=   KPIs, top-rated, scatter series, sentiment
  GET /api/categories            distinct categories for the filter control
  GET /api/health                dependency reachability

Examples:
  apppulse serve                  # listen on the configured port (8050)
  apppulse serve --port 3000
  apppulse serve --host 0.0.0.0   # listen on all interfaces`,
	RunE: runServe,
}

func init() {
	cfg := config.Global().Get()

	serveCmd.Flags().IntVarP(&servePort, "port", "p", cfg.Server.Port, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", cfg.Server.Host, "Host to bind to")
	serveCmd.Flags().StringVar(&warehouseFlag, "warehouse", "", "DuckDB warehouse path (overrides config)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := effectiveConfig()

	// Read-only handle: the pipeline may rebuild the warehouse while
	// the server runs.
	db, err := warehouse.Open(cfg.Warehouse.Path, true)
	if err != nil {
		return fmt.Errorf("failed to open warehouse: %w", err)
	}
	defer db.Close()

	svc := query.NewService(db, query.Config{
		TopN:      cfg.Query.TopN,
		SampleCap: cfg.Query.SampleCap,
	})

	checks := map[string]server.HealthCheck{
		"warehouse": func(ctx context.Context) error {
			return db.VerifySchema(ctx)
		},
	}
	srv := server.NewServer(svc, checks)

	addr := fmt.Sprintf("%s:%d", serveHost, servePort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	url := fmt.Sprintf("http://%s:%d", serveHost, servePort)
	if serveHost == "0.0.0.0" || serveHost == "" {
		url = fmt.Sprintf("http://localhost:%d", servePort)
	}

	fmt.Println()
	fmt.Println("  ╭─────────────────────────────────────╮")
	fmt.Println("  │         APPPULSE SERVER             │")
	fmt.Println("  ├─────────────────────────────────────┤")
	fmt.Printf("  │  Local:   %-25s │\n", url)
	fmt.Println("  │                                     │")
	fmt.Println("  │  Press Ctrl+C to stop               │")
	fmt.Println("  ╰─────────────────────────────────────╯")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return nil
	}
}
