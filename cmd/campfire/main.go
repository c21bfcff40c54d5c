package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/frontiercc/campfire/internal/config"
	"github.com/frontiercc/campfire/pkg/archive"
	"github.com/frontiercc/campfire/pkg/filestore"
	"github.com/frontiercc/campfire/pkg/logstore"
	"github.com/frontiercc/campfire/pkg/parser"
	"github.com/frontiercc/campfire/pkg/server"
)

func main() {
	// Define flags
	configPath := flag.String("config", "~/.campfire/config.toml", "Path to config file")
	storageDir := flag.String("storage-dir", "", "Snapshot storage directory (overrides config)")
	archivePath := flag.String("archive-path", "", "Rotation archive path (overrides config)")
	noArchive := flag.Bool("no-archive", false, "Disable the rotation archive")
	retentionSize := flag.String("retention-size", "", "Max archive size (e.g., 1GB, 500MB)")
	retentionDays := flag.Int("retention-days", 0, "Max age of archived logs in days")
	format := flag.String("format", "", "Log format: auto, json, logfmt")
	minLevel := flag.String("min-level", "", "Minimum visible level: DEBUG, INFO, WARNING, ERROR")
	port := flag.Int("port", 0, "HTTP server port")
	help := flag.Bool("help", false, "Show help")

	// Check for subcommand first
	args := os.Args[1:]
	mode := "collect" // Default mode

	if len(args) > 0 && args[0] == "server" {
		mode = "server"
		// Remove "server" from args and reparse flags
		os.Args = append([]string{os.Args[0]}, args[1:]...)
		flag.Parse()
	} else if len(args) > 0 && (args[0] == "help" || args[0] == "--help") {
		printHelp()
		return
	} else {
		flag.Parse()
		if *help {
			printHelp()
			return
		}
		if !isStdinPiped() {
			// No piped input, default to server
			mode = "server"
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Override config with CLI flags
	if *storageDir != "" {
		cfg.Storage.Dir = *storageDir
	}
	if *archivePath != "" {
		cfg.Archive.DBPath = *archivePath
	}
	if *noArchive {
		cfg.Archive.Enabled = false
	}
	if *retentionSize != "" {
		cfg.Archive.RetentionSize = *retentionSize
	}
	if *retentionDays > 0 {
		cfg.Archive.RetentionDays = *retentionDays
	}
	if *format != "" {
		cfg.Logs.Format = *format
	}
	if *minLevel != "" {
		cfg.Logs.MinLevel = *minLevel
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := run(mode, cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`Campfire - Structured Log Store & Viewer

USAGE:
    cat app.log | campfire [OPTIONS]     Collect logs from stdin (+ embedded web UI)
    campfire server [OPTIONS]            Start web server over persisted logs

OPTIONS:
    --config FILE          Path to config file (default: ~/.campfire/config.toml)
    --storage-dir PATH     Snapshot storage directory (default: ~/.campfire/storage)
    --archive-path PATH    Rotation archive path (default: ~/.campfire/archive)
    --no-archive           Disable the rotation archive
    --retention-size SIZE  Max archive size (e.g., 1GB, 500MB)
    --retention-days DAYS  Max age of archived logs (e.g., 7, 30)
    --format FORMAT        auto | json | logfmt (default: auto)
    --min-level LEVEL      Minimum visible level (default: DEBUG)
    --port PORT            HTTP port for web UI (default: 8080)
    --help                 Show this help

EXAMPLES:
    # Collect and view logs in real time
    cat app.log | campfire

    # Collect from a running process with custom port
    kubectl logs my-pod -f | campfire --port 8081

    # Browse previously persisted logs
    campfire server`)
}

func isStdinPiped() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// run wires the persistence adapter, archive, log store, and viewer
// server, then drives the selected mode until a shutdown signal.
func run(mode string, cfg *config.Config, logger *slog.Logger) error {
	files, err := filestore.New(expandPath(cfg.Storage.Dir), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	var arch *archive.Store
	if cfg.Archive.Enabled {
		arch, err = archive.Open(archive.Config{
			DBPath:        expandPath(cfg.Archive.DBPath),
			RetentionSize: cfg.GetRetentionSizeBytes(),
			RetentionDays: cfg.Archive.RetentionDays,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer arch.Close()
	}

	opts := logstore.Options{
		Persister:    files,
		SnapshotFile: cfg.Storage.SnapshotFile,
	}
	if arch != nil {
		opts.Archiver = arch
	}
	store := logstore.New(opts)

	if level, ok := logstore.ParseLevel(cfg.Logs.MinLevel); ok {
		store.SetMinimumLevel(level)
	}

	srv := server.New(store, arch, logger)
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(cfg.Server.Port)
	}()
	logger.Info("web UI available", "url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port))

	if mode == "collect" {
		if err := collect(store, cfg.Logs.Format, logger); err != nil {
			return err
		}
		logger.Info("collection complete, server still running; press Ctrl+C to exit")
	}

	// Wait for shutdown signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutting down")
	case err := <-errChan:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store.Shutdown(ctx)
	return nil
}

// collect reads log lines from stdin into the store until EOF.
func collect(store *logstore.Store, format string, logger *slog.Logger) error {
	detector := parser.NewDetector()
	scanner := bufio.NewScanner(os.Stdin)
	count := 0

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		entry, err := detector.ParseWithFormat(line, format)
		if err != nil {
			logger.Warn("failed to parse line", "error", err)
			continue
		}

		store.Ingest(entry)

		count++
		if count%1000 == 0 {
			logger.Info("collected log entries", "count", count)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stdin: %w", err)
	}

	logger.Info("collection finished", "total", count)
	return nil
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
