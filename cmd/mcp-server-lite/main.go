// Package main provides the lightweight MCP entry point for the uACR monitor.
// This version requires no external databases - uses in-memory caching and SQLite.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/uacr-monitor/internal/config"
	"github.com/uacr-monitor/internal/mcp"
)

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()

	// stdout carries the protocol; the standard logger writes to stderr.
	log.Printf("Starting uACR monitor MCP server (Lite), data directory: %s", cfg.DataDir)

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Printf("MCP server failed: %v", err)
		return
	}

	log.Println("uACR monitor MCP server (Lite) stopped")
}
