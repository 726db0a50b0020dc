package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/vkngwrapper/vkinit/internal/ctxlog"
	"github.com/vkngwrapper/vkinit/internal/genconfig"
)

// BindgenOptions is the parsed vkbindgen command line.
type BindgenOptions struct {
	Config    *genconfig.Config
	LogLevel  string
	LogFormat string
}

// ParseBindgen processes the vkbindgen arguments. Values come from the
// -config file first; flags and positional arguments that are given win over
// it. The returned configuration is normalized.
func ParseBindgen(ctx context.Context, args []string, output io.Writer) (*BindgenOptions, bool, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("vkbindgen", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
vkbindgen - Generate cgo bindings from the Vulkan XML API registry.

Usage:
  vkbindgen [options] <registry.xml> <output.go>

Arguments:
  registry.xml
    Path to vk.xml. May be set with 'registry' in the config file instead.
  output.go
    Path of the generated file. May be set with 'output' in the config file instead.

Options:
`)
		flagSet.PrintDefaults()
	}

	configPath := flagSet.String("config", "", "Path to an HCL generator config file.")
	pkg := flagSet.String("package", "", "Go package name. Defaults to the output file base name.")
	api := flagSet.String("api", "", "API to generate: 'vulkan' or 'vulkansc'.")
	maxVersion := flagSet.String("max-version", "", "Newest core version to include, as VK_VERSION_1_3 or 1.3.")
	var extensions, exclude, platforms stringList
	flagSet.Var(&extensions, "extensions", "Comma separated extensions to include. Empty includes every supported one.")
	flagSet.Var(&exclude, "exclude", "Comma separated extensions to leave out.")
	flagSet.Var(&platforms, "platforms", "Comma separated window system platforms to enable, such as xlib or win32.")
	commands := flagSet.Bool("commands", true, "Generate command wrappers.")
	stringers := flagSet.Bool("stringers", true, "Generate String methods for enums.")
	logLevel := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormat := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")

	exit, err := parseFlags(flagSet, args)
	if exit || err != nil {
		return nil, exit, err
	}

	level, format, err := checkLogging(*logLevel, *logFormat)
	if err != nil {
		return nil, false, err
	}

	if flagSet.NArg() == 0 && *configPath == "" {
		logger.Debug("No arguments provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	if flagSet.NArg() != 0 && flagSet.NArg() != 2 {
		return nil, false, usageError("expected <registry.xml> and <output.go>")
	}

	cfg := &genconfig.Config{}
	if *configPath != "" {
		cfg, err = genconfig.Load(ctx, *configPath)
		if err != nil {
			return nil, false, usageError(err.Error())
		}
	}

	if flagSet.NArg() == 2 {
		cfg.Registry = flagSet.Arg(0)
		cfg.Output = flagSet.Arg(1)
	}
	set := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["package"] {
		cfg.Package = *pkg
	}
	if set["api"] {
		cfg.API = *api
	}
	if set["max-version"] {
		cfg.MaxVersion = *maxVersion
	}
	if extensions.set {
		cfg.Extensions = extensions.values
	}
	if exclude.set {
		cfg.Exclude = exclude.values
	}
	if platforms.set {
		cfg.Platforms = platforms.values
	}
	if set["commands"] {
		cfg.Commands = commands
	}
	if set["stringers"] {
		cfg.Stringers = stringers
	}

	if err := cfg.Normalize(); err != nil {
		return nil, false, usageError(err.Error())
	}

	logger.Debug("CLI parser finished successfully.", "registry", cfg.Registry, "output", cfg.Output, "package", cfg.Package)
	return &BindgenOptions{Config: cfg, LogLevel: level, LogFormat: format}, false, nil
}
