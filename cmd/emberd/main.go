// Command emberd is an Ember+ control server: it accepts S101-framed TCP
// clients, serves a shared element tree, and fans out subscribed changes.
//
// Usage:
//
//	emberd [flags]
//
// Flags:
//
//	-listen string      Bind address (default ":9000")
//	-config string      YAML configuration file path
//	-tree string        YAML tree fixture to load at startup
//	-log-path string    Append CBOR protocol events to this file
//	-log-level string   Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Start with defaults, empty tree
//	emberd
//
//	# Start from a config file with a seeded tree
//	emberd -config /etc/emberd/emberd.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/emberplus/emberd/internal/config"
	"github.com/emberplus/emberd/internal/dispatch"
	"github.com/emberplus/emberd/internal/embertree"
	"github.com/emberplus/emberd/internal/emberserver"
	"github.com/emberplus/emberd/internal/subscription"
	"github.com/emberplus/emberd/internal/tree"
	emberdlog "github.com/emberplus/emberd/pkg/log"
)

var (
	listen   = flag.String("listen", "", "Bind address (overrides config file)")
	confPath = flag.String("config", "", "YAML configuration file path")
	treePath = flag.String("tree", "", "YAML tree fixture to load at startup (overrides config file)")
	logPath  = flag.String("log-path", "", "Append CBOR protocol events to this file (overrides config file)")
	logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	setupLogging(*logLevel)

	cfg, err := config.Load(*confPath)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *treePath != "" {
		cfg.TreePath = *treePath
	}
	if *logPath != "" {
		cfg.LogPath = *logPath
	}

	t, err := loadTree(cfg.TreePath)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}

	protocolLogger, err := buildLogger(cfg.LogPath)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	if protocolLogger, ok := protocolLogger.(*emberdlog.FileLogger); ok && protocolLogger != nil {
		defer protocolLogger.Close()
	}

	subs := subscription.New()
	d := dispatch.New(t, subs,
		dispatch.WithLogger(protocolLogger),
		dispatch.WithRequestTimeout(cfg.RequestTimeout),
	)

	srv := emberserver.New(cfg.Listen, d,
		emberserver.WithLogger(protocolLogger),
		emberserver.WithKeepAliveInterval(cfg.KeepAliveInterval),
		emberserver.WithMaxPayloadSize(cfg.MaxPayloadSize),
		emberserver.WithOnDisconnect(d.HandleDisconnect),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Printf("emberd listening on %s", cfg.Listen)
	if err := srv.Run(ctx); err != nil {
		log.Printf("Error: server stopped: %v", err)
		return 1
	}

	log.Println("emberd stopped")
	return 0
}

func loadTree(path string) (*tree.Tree, error) {
	if path == "" {
		return tree.New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree fixture %q: %w", path, err)
	}
	t, err := embertree.FromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("load tree fixture %q: %w", path, err)
	}
	return t, nil
}

func buildLogger(path string) (emberdlog.Logger, error) {
	if path == "" {
		return emberdlog.NoopLogger{}, nil
	}
	fl, err := emberdlog.NewFileLogger(path)
	if err != nil {
		return nil, fmt.Errorf("open protocol log %q: %w", path, err)
	}
	return fl, nil
}

// setupLogging selects the process log line prefix for level; it does
// not filter messages by level.
func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}
