package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/abhibansal60/led-catalog/internal/mirrorserver"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	dataDir := flag.String("data", "./mirror-data", "directory holding published manifests")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	store, err := mirrorserver.NewSlotStore(*dataDir)
	if err != nil {
		logger.Error("initializing slot store", "error", err)
		os.Exit(1)
	}

	srv := mirrorserver.New(store, logger, mirrorserver.NewMetrics())
	if err := srv.Run(*addr); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
