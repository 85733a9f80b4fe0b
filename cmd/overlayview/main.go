// Command overlayview is a desktop host for the road overlay. It draws the
// simulated vehicles over a map grid and fetches roads from a roadoverlay
// backend on demand.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/NERVsystems/roadoverlay/pkg/coords"
	"github.com/NERVsystems/roadoverlay/pkg/mapview"
	"github.com/NERVsystems/roadoverlay/pkg/roadclient"
)

const (
	windowWidth  = 1024
	windowHeight = 640
)

var (
	backend string
	center  string
	zoom    float64
	debug   bool
)

func init() {
	flag.StringVar(&backend, "backend", "http://localhost:7082", "roadoverlay backend URL")
	flag.StringVar(&center, "center", "37.7749, -122.4194", "Initial map center: decimal, DMS or MGRS")
	flag.Float64Var(&zoom, "zoom", 15, "Initial map zoom")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
}

func main() {
	flag.Parse()

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("viewer stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	loc, _, err := coords.Parse(center)
	if err != nil {
		return fmt.Errorf("--center: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	game, err := newGame(ctx, roadclient.New(backend, nil, logger), mapview.Options{
		Center: loc,
		Zoom:   zoom,
		Width:  windowWidth,
		Height: windowHeight,
		Logger: logger,
	}, logger)
	if err != nil {
		return fmt.Errorf("mounting overlay: %w", err)
	}
	defer game.Close()

	ebiten.SetWindowSize(windowWidth, windowHeight)
	ebiten.SetWindowTitle("Road overlay")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	logger.Info("viewer started", "backend", backend, "zoom", zoom)
	return ebiten.RunGame(game)
}
