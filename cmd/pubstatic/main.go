package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/eringen/pubstatic"
)

// version is set at build time via ldflags.
var version = "dev"

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"pubstatic.yaml" type:"path"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Mode string `help:"Run mode exposed to templates (build, serve, watch)" default:"build" enum:"build,serve,watch" env:"ELEVENTY_RUN_MODE"`
	} `cmd:"" help:"Build the site into the output directory"`

	Serve struct {
		Addr string `help:"Listen address (defaults to the configured addr)"`
	} `cmd:"" help:"Build, serve and rebuild on change"`

	New struct {
		Name string `arg:"" help:"Project directory or path ending in the directory name"`
	} `cmd:"" help:"Create a new pubstatic project"`

	Cache struct {
		Prune struct {
			OlderThan time.Duration `help:"Drop image variants older than this" default:"720h"`
		} `cmd:"" help:"Drop stale cached image variants"`
	} `cmd:"" help:"Manage the build cache"`

	Version struct{} `cmd:"" help:"Print the pubstatic version"`
}

func main() {
	// .env is loaded first so its values reach the env-backed flags.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: .env: %v\n", err)
	}

	ctx := kong.Parse(&CLI,
		kong.Name("pubstatic"),
		kong.Description("pubstatic - a static blog generator built with Go and templ"),
		kong.UsageOnError(),
	)

	level := slog.LevelInfo
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var err error
	switch ctx.Command() {
	case "build":
		err = runBuild(logger, pubstatic.ParseRunMode(CLI.Build.Mode))
	case "serve":
		err = runServe(logger, CLI.Serve.Addr)
	case "new <name>":
		err = runNew(CLI.New.Name)
	case "cache prune":
		err = runPrune(logger, CLI.Cache.Prune.OlderThan)
	case "version":
		fmt.Printf("pubstatic %s\n", version)
	default:
		err = fmt.Errorf("unknown command %q", ctx.Command())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openSite(logger *slog.Logger, mode pubstatic.RunMode) (*pubstatic.Site, error) {
	cfg, err := pubstatic.LoadConfig(CLI.Config)
	if err != nil {
		return nil, err
	}
	return pubstatic.New(cfg, pubstatic.WithMode(mode), pubstatic.WithLogger(logger))
}

func runBuild(logger *slog.Logger, mode pubstatic.RunMode) error {
	site, err := openSite(logger, mode)
	if err != nil {
		return err
	}
	defer site.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := site.Build(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d pages, copied %d files, generated %d images in %s\n",
		res.PagesWritten, res.FilesCopied, res.ImagesGenerated, res.Duration.Round(time.Millisecond))
	return nil
}

func runServe(logger *slog.Logger, addr string) error {
	site, err := openSite(logger, pubstatic.RunModeServe)
	if err != nil {
		return err
	}
	defer site.Close()
	if addr == "" {
		addr = site.Config.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A broken initial build is served as an error page until fixed.
	if _, err := site.Build(ctx); err != nil {
		logger.Warn("initial build failed", "error", err)
	}

	watcher, err := site.NewWatcher(CLI.Config)
	if err != nil {
		return err
	}
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- watcher.Run(ctx)
	}()

	logger.Info("serving", "addr", addr, "prefix", site.Config.PathPrefix, "output", site.Config.OutputDir())
	if err := site.NewServer().Start(ctx, addr); err != nil {
		stop()
		<-watchErr
		return err
	}
	return <-watchErr
}

func runPrune(logger *slog.Logger, olderThan time.Duration) error {
	site, err := openSite(logger, pubstatic.RunModeBuild)
	if err != nil {
		return err
	}
	defer site.Close()
	n, err := site.PruneCache(time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d cached image variants\n", n)
	return nil
}
