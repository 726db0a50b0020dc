// Command vkbindgen generates a cgo binding file from the Vulkan XML API
// registry.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/vkinit/internal/bindgen"
	"github.com/vkngwrapper/vkinit/internal/cli"
	"github.com/vkngwrapper/vkinit/internal/ctxlog"
	"github.com/vkngwrapper/vkinit/internal/registry"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(context.Background(), os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, outW, errW io.Writer, args []string) error {
	opts, shouldExit, err := cli.ParseBindgen(ctx, args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}
	cfg := opts.Config

	logger := ctxlog.New(opts.LogLevel, opts.LogFormat, errW)
	ctx = ctxlog.WithLogger(ctx, logger)
	start := hrtime.Now()

	reg, err := registry.Load(ctx, cfg.Registry)
	if err != nil {
		return err
	}

	sel, err := registry.Select(ctx, reg, registry.Options{
		API:        cfg.API,
		MaxVersion: cfg.MaxVersion,
		Extensions: cfg.Extensions,
		Exclude:    cfg.Exclude,
		Platforms:  cfg.Platforms,
	})
	if err != nil {
		return errors.Wrap(err, "select declarations")
	}

	err = bindgen.WriteFile(ctx, sel, bindgen.Options{
		Package:   cfg.Package,
		Source:    filepath.Base(cfg.Registry),
		Output:    cfg.Output,
		CFlags:    cfg.CFlags,
		LDFlags:   cfg.LDFlags,
		Commands:  *cfg.Commands,
		Stringers: *cfg.Stringers,
		Overrides: cfg.Overrides(),
	}, cfg.Output)
	if err != nil {
		return err
	}

	logger.Info("Done.", "output", cfg.Output, "package", cfg.Package, "elapsed", hrtime.Since(start))
	return nil
}
