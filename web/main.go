package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/web/server"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 8080, "Port to serve on")
	scenesDir := flag.String("scenes", "scenes", "Directory of JSON parameter files")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn or error")
	flag.Parse()

	level, err := core.ParseLevel(*logLevel)
	if err != nil {
		slog.Error("invalid log level", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	core.SetLogger(logger)

	// Create and start web server
	webServer := server.NewServer(*port, *scenesDir, logger)

	logger.Info("raymarcher web server", "port", *port)

	if err := webServer.Start(); err != nil {
		logger.Error("error starting server", "error", err)
		os.Exit(1)
	}
}
