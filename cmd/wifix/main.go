package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/mehmoodulhaq570/WifiX/internal/server"
	"github.com/mehmoodulhaq570/WifiX/pkg/config"
	"github.com/mehmoodulhaq570/WifiX/pkg/logging"
)

func main() {
	bootLogger := logging.New("info")

	cfg, err := config.Load(bootLogger, "wifix")
	if err != nil {
		bootLogger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := server.NewApp(logger, ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize application", slog.Any("error", err))
		os.Exit(1)
	}

	printBanner(cfg.Server.Address, app.LANURL())

	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}

func printBanner(addr, lanURL string) {
	fmt.Println("============================================================")
	fmt.Println("WifiX server started")
	fmt.Printf("  Local:   http://127.0.0.1%s\n", addr)
	fmt.Printf("  Network: %s\n", lanURL)
	fmt.Println()
	fmt.Println("Share the network link with nearby devices, or scan the QR")
	fmt.Printf("code at %s/qr\n", lanURL)
	fmt.Println("The first browser to connect and claim host status approves")
	fmt.Println("or denies incoming peers.")
	fmt.Println("============================================================")
}
