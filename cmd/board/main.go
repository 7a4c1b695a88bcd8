package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/idilsaglam/board/internal/cli"
	"github.com/idilsaglam/board/internal/config"
	"github.com/idilsaglam/board/internal/ui"
	"github.com/idilsaglam/board/pkg/logger"
)

func main() {
	// Root flags (apply to every subcommand)
	configPath := flag.String("config", "", "path to board.yaml")
	theme := flag.String("theme", "", "classic, neon or mono (overrides ui.theme)")
	groupLiked := flag.Bool("group", false, "ls: liked entries first")
	forceColor := flag.Bool("color", false, "force colored output")
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()

	// Hand the remaining args to the CLI runner.
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintHelp()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		ui.Fail(err.Error())
		os.Exit(1)
	}
	if *theme != "" {
		cfg.UI.Theme = *theme
	}
	ui.SetTheme(cfg.UI.Theme)
	ui.SetColorForcing(*forceColor, *noColor || cfg.UI.Theme == "mono")

	out, closeLog := logOutput(cfg.Log, args[0] == "tui")
	log := logger.Init(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: out})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, args, cli.Options{
		Config: cfg,
		Group:  *groupLiked,
		Logger: log,
	})
	stop()
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	closeLog()
	os.Exit(code)
}

// logOutput picks where logs go: the configured file, stderr for one-shot
// commands, nothing for the TUI (it owns the terminal).
func logOutput(cfg config.LogConfig, tui bool) (io.Writer, func()) {
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err == nil {
			return f, func() { _ = f.Close() }
		}
		ui.Fail("log file: " + err.Error())
	}
	if tui {
		return io.Discard, func() {}
	}
	return os.Stderr, func() {}
}
