package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/deixis/pkgguard/internal/logging"
	pgmcp "github.com/deixis/pkgguard/internal/mcp"
	"github.com/deixis/pkgguard/internal/metrics"
)

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	timeout := fs.Duration("timeout", 0, "override configured timeout (e.g. 5m)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(pgmcp.Instructions)
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	return serve(ctx, *httpAddr, *timeout)
}

func serve(ctx context.Context, httpAddr string, timeout time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var m metrics.Metrics = metrics.Noop{}
	if addr := cfg.Metrics.Addr; addr != "" {
		m = metrics.NewProm(cfg.Metrics.Namespace(), prometheus.DefaultRegisterer)
		go serveMetrics(ctx, addr)
	}

	a, err := newApp(cfg, timeout, m)
	if err != nil {
		return err
	}
	defer a.Close()

	server := pgmcp.NewServer(a.engine, a.store)
	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	logging.Info("metrics", "listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error("metrics", "server stopped", "error", err)
	}
}
