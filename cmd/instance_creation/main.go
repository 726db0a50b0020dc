// Command instance_creation loads the Vulkan driver, creates one instance
// with the validation layer and destroys it again.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vkinit/internal/app"
	"github.com/vkngwrapper/vkinit/internal/cli"
	"github.com/vkngwrapper/vkinit/internal/ctxlog"
	"github.com/vkngwrapper/vkinit/internal/driver"
	"github.com/vkngwrapper/vkinit/internal/driver/vkng"
)

func main() {
	// SDL and GLFW must stay on the main thread.
	runtime.LockOSThread()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(context.Background(), os.Stdout, os.Stderr, os.Args[1:], vkng.Bootstrap); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// run parses args and drives one instance lifecycle. By the time it returns
// every handle has been released, so the caller only picks the exit code.
func run(ctx context.Context, outW, errW io.Writer, args []string, bootstrap driver.BootstrapFunc) error {
	cfg, shouldExit, err := cli.ParseInstance(ctx, args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := ctxlog.New(cfg.LogLevel, cfg.LogFormat, errW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Configuration loaded.", "config", *cfg)

	application := app.New(*cfg, bootstrap)
	err = application.Run(ctx)
	if err != nil {
		logger.Debug("Run failed.", "session", application.ID(), "error", fmt.Sprintf("%+v", err))
		fmt.Fprintln(errW, app.Diagnose(err))
		return err
	}

	fmt.Fprintf(outW, "Created and destroyed a Vulkan %s instance.\n", cfg.APIVersion)
	return nil
}
