package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-chat/backend/internal/app"
	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/telemetry"
	"github.com/zhouzirui/z-chat/backend/internal/tui"
)

func main() {
	exportDir := flag.String("export-dir", ".", "directory for exported transcripts")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env 可选
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 全屏界面下日志只写文件
	closeLog, err := telemetry.SetupFileLogging(cfg.Telemetry.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		log.Printf("warning: failed to initialize telemetry: %v", err)
		shutdownTelemetry = func() {}
	}
	defer shutdownTelemetry()

	if err := run(ctx, cfg, *exportDir); err != nil {
		closeLog()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, exportDir string) error {
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Printf("failed to close services: %v", err)
		}
	}()

	m, err := tui.New(ctx, application.Chat, application.Controller, application.Models, tui.Options{
		ExportDir:       exportDir,
		ExportPrefix:    cfg.Chat.ExportPrefix,
		ShowDiagnostics: cfg.Chat.ShowDiagnostics,
	})
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI exited: %w", err)
	}
	return nil
}
