package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/vkinit/internal/app"
	"github.com/vkngwrapper/vkinit/internal/driver"
)

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected an ExitError, got %v", err)
	require.Equal(t, code, exitErr.Code)
}

func TestParseInstance_Defaults(t *testing.T) {
	cfg, exit, err := ParseInstance(context.Background(), nil, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)

	def := app.DefaultConfig()
	require.Equal(t, def.ApplicationName, cfg.ApplicationName)
	require.Equal(t, def.ApplicationVersion, cfg.ApplicationVersion)
	require.Equal(t, def.APIVersion, cfg.APIVersion)
	require.Equal(t, []string{app.ValidationLayer}, cfg.Layers)
	require.Empty(t, cfg.Extensions)
	require.Equal(t, driver.SourceSDL, cfg.Loader)
	require.False(t, cfg.Window)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
}

func TestParseInstance_Flags(t *testing.T) {
	cfg, exit, err := ParseInstance(context.Background(), []string{
		"-app-name", "Probe",
		"-api-version", "1.3",
		"-layer", "VK_LAYER_A",
		"-layer", "VK_LAYER_B,VK_LAYER_C",
		"-extension", "VK_EXT_debug_utils",
		"-loader", "glfw",
		"-library", "/opt/libvulkan.so.1",
		"-debug-messenger",
		"-log-level", "DEBUG",
		"-log-format", "json",
	}, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)

	require.Equal(t, "Probe", cfg.ApplicationName)
	require.Equal(t, driver.MakeAPIVersion(0, 1, 3, 0), cfg.APIVersion)
	require.Equal(t, []string{"VK_LAYER_A", "VK_LAYER_B", "VK_LAYER_C"}, cfg.Layers)
	require.Equal(t, []string{"VK_EXT_debug_utils"}, cfg.Extensions)
	require.Equal(t, driver.SourceGLFW, cfg.Loader)
	require.Equal(t, "/opt/libvulkan.so.1", cfg.LibraryPath)
	require.True(t, cfg.DebugMessenger)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestParseInstance_NoLayers(t *testing.T) {
	cfg, _, err := ParseInstance(context.Background(), []string{"-no-layers"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.Empty(t, cfg.Layers)
	require.NotNil(t, cfg.Layers)
}

func TestParseInstance_Help(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, exit, err := ParseInstance(context.Background(), []string{"-h"}, out)
	require.NoError(t, err)
	require.True(t, exit)
	require.Nil(t, cfg)
	require.Contains(t, out.String(), "Usage:")
	require.Contains(t, out.String(), "-debug-messenger")
}

func TestParseInstance_UsageErrors(t *testing.T) {
	cases := map[string][]string{
		"unknown flag":       {"-not-a-flag"},
		"positional":         {"extra"},
		"bad version":        {"-api-version", "one"},
		"old version":        {"-api-version", "0.9"},
		"bad loader":         {"-loader", "xcb"},
		"window without sdl": {"-window", "-loader", "glfw"},
		"bad level":          {"-log-level", "loud"},
		"bad format":         {"-log-format", "yaml"},
		"conflicting layers": {"-no-layers", "-layer", "VK_LAYER_A"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, exit, err := ParseInstance(context.Background(), args, &bytes.Buffer{})
			require.False(t, exit)
			requireExitCode(t, err, 2)
		})
	}
}

func writeConfig(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vkbindgen.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func TestParseBindgen_Positionals(t *testing.T) {
	opts, exit, err := ParseBindgen(context.Background(), []string{
		"-max-version", "1.2",
		"-extensions", "VK_KHR_surface,VK_EXT_debug_utils",
		"-platforms", "xlib",
		"-stringers=false",
		"vk.xml", "out/vulkan.go",
	}, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)

	cfg := opts.Config
	require.Equal(t, "vk.xml", cfg.Registry)
	require.Equal(t, "out/vulkan.go", cfg.Output)
	require.Equal(t, "vulkan", cfg.Package)
	require.Equal(t, "VK_VERSION_1_2", cfg.MaxVersion)
	require.Equal(t, []string{"VK_KHR_surface", "VK_EXT_debug_utils"}, cfg.Extensions)
	require.Equal(t, []string{"xlib"}, cfg.Platforms)
	require.True(t, *cfg.Commands)
	require.False(t, *cfg.Stringers)
	require.Equal(t, "info", opts.LogLevel)
}

func TestParseBindgen_FlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, `
registry    = "from-config.xml"
output      = "gen/vk.go"
package     = "vkconfig"
max_version = "1.1"
extensions  = ["VK_KHR_surface"]
commands    = false

type_override "VkBool32" {
  go = "bool32"
}
`)

	opts, _, err := ParseBindgen(context.Background(), []string{"-config", path}, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, "from-config.xml", opts.Config.Registry)
	require.Equal(t, "vkconfig", opts.Config.Package)
	require.Equal(t, "VK_VERSION_1_1", opts.Config.MaxVersion)
	require.False(t, *opts.Config.Commands)
	require.Equal(t, map[string]string{"VkBool32": "bool32"}, opts.Config.Overrides())

	opts, _, err = ParseBindgen(context.Background(), []string{
		"-config", path,
		"-package", "vkflag",
		"-max-version", "VK_VERSION_1_3",
		"-commands",
		"cli.xml", "cli.go",
	}, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, "cli.xml", opts.Config.Registry)
	require.Equal(t, "cli.go", opts.Config.Output)
	require.Equal(t, "vkflag", opts.Config.Package)
	require.Equal(t, "VK_VERSION_1_3", opts.Config.MaxVersion)
	require.Equal(t, []string{"VK_KHR_surface"}, opts.Config.Extensions)
	require.True(t, *opts.Config.Commands)
}

func TestParseBindgen_NoArgumentsPrintsUsage(t *testing.T) {
	out := &bytes.Buffer{}
	opts, exit, err := ParseBindgen(context.Background(), nil, out)
	require.NoError(t, err)
	require.True(t, exit)
	require.Nil(t, opts)
	require.Contains(t, out.String(), "<registry.xml> <output.go>")
}

func TestParseBindgen_UsageErrors(t *testing.T) {
	badConfig := writeConfig(t, `colour = "blue"`)
	cases := map[string][]string{
		"unknown flag":      {"-nope", "vk.xml", "out.go"},
		"one positional":    {"vk.xml"},
		"three positionals": {"vk.xml", "out.go", "extra"},
		"bad package":       {"-package", "not-valid", "vk.xml", "out.go"},
		"bad level":         {"-log-level", "loud", "vk.xml", "out.go"},
		"missing config":    {"-config", filepath.Join(t.TempDir(), "missing.hcl")},
		"invalid config":    {"-config", badConfig},
		"config no output":  {"-config", writeConfig(t, `registry = "vk.xml"`)},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, exit, err := ParseBindgen(context.Background(), args, &bytes.Buffer{})
			require.False(t, exit)
			requireExitCode(t, err, 2)
		})
	}
}
