package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/vkngwrapper/vkinit/internal/app"
	"github.com/vkngwrapper/vkinit/internal/ctxlog"
	"github.com/vkngwrapper/vkinit/internal/driver"
)

// ParseInstance processes the instance_creation arguments. It returns the
// validated configuration, true when the program should exit cleanly (after
// -h), or an ExitError.
func ParseInstance(ctx context.Context, args []string, output io.Writer) (*app.Config, bool, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("instance_creation", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
instance_creation - Load the Vulkan driver and create one instance.

Usage:
  instance_creation [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	def := app.DefaultConfig()
	appName := flagSet.String("app-name", def.ApplicationName, "Application name reported to the driver.")
	engineName := flagSet.String("engine-name", def.EngineName, "Engine name reported to the driver.")
	apiVersion := flagSet.String("api-version", def.APIVersion.String(), "Vulkan API version to request, as major.minor[.patch].")
	var layers, extensions stringList
	flagSet.Var(&layers, "layer", "Instance layer to enable. Repeatable. Defaults to "+app.ValidationLayer+".")
	noLayers := flagSet.Bool("no-layers", false, "Enable no instance layers.")
	flagSet.Var(&extensions, "extension", "Instance extension to enable. Repeatable.")
	loader := flagSet.String("loader", string(def.Loader), "Library used to load the Vulkan driver. Options: 'sdl' or 'glfw'.")
	library := flagSet.String("library", "", "Path to the Vulkan loader library. Empty uses the platform default.")
	window := flagSet.Bool("window", false, "Open a window and create a presentation surface for it.")
	debugMessenger := flagSet.Bool("debug-messenger", false, "Install a debug messenger that logs validation messages.")
	logLevel := flagSet.String("log-level", def.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormat := flagSet.String("log-format", def.LogFormat, "Log output format. Options: 'text' or 'json'.")

	exit, err := parseFlags(flagSet, args)
	if exit || err != nil {
		return nil, exit, err
	}
	if flagSet.NArg() > 0 {
		return nil, false, usageError(fmt.Sprintf("unexpected argument %q", flagSet.Arg(0)))
	}
	logger.Debug("Arguments parsed successfully.")

	level, format, err := checkLogging(*logLevel, *logFormat)
	if err != nil {
		return nil, false, err
	}

	version, err := driver.ParseVersion(*apiVersion)
	if err != nil {
		return nil, false, usageError(err.Error())
	}

	cfg := app.Config{
		ApplicationName:    *appName,
		ApplicationVersion: def.ApplicationVersion,
		EngineName:         *engineName,
		EngineVersion:      def.EngineVersion,
		APIVersion:         version,
		Extensions:         extensions.values,
		Loader:             driver.Source(*loader),
		LibraryPath:        *library,
		Window:             *window,
		DebugMessenger:     *debugMessenger,
		LogLevel:           level,
		LogFormat:          format,
	}
	switch {
	case *noLayers && layers.set:
		return nil, false, usageError("-no-layers and -layer are mutually exclusive")
	case *noLayers:
		cfg.Layers = []string{}
	case layers.set:
		cfg.Layers = layers.values
	}

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, usageError(err.Error())
	}

	logger.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
