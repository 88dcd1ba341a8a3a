package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	logLevel        string
	jsonLog         bool
	metricsEndpoint string

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shardgrep",
	Short: "Find every occurrence of a literal pattern across a corpus of files",
	Long: `shardgrep splits a directory of files into one contiguous shard per
worker, scans the shards in parallel with a streaming KMP matcher, and merges
every match location (file name and byte offset) into one ordered report.

A search can run in one process (search), or across processes with one
coordinator (master) and one process per rank (worker).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(logLevel, jsonLog)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv("SHARDGREP_LOG_LEVEL"), "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", isTrue(os.Getenv("SHARDGREP_JSON_LOG")), "log as JSON")
	rootCmd.PersistentFlags().StringVar(&metricsEndpoint, "metrics-endpoint", "", "OTLP/gRPC endpoint to push metrics to (disabled when empty)")

	rootCmd.AddCommand(searchCmd, masterCmd, workerCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// newLogger builds the operator log. Diagnostics go to stderr so that stdout
// stays free for the report.
func newLogger(level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler).With("service", "shardgrep")
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTrue(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "json":
		return true
	}
	return false
}
