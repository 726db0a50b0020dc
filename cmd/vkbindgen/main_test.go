package main

import (
	"bytes"
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/vkinit/internal/bindgen"
	"github.com/vkngwrapper/vkinit/internal/cli"
)

const fixture = "../../internal/registry/testdata/vk_subset.xml"

func TestRun_GeneratesPackage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "vulkan", "vulkan.go")

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{
		"-max-version", "1.1",
		"-platforms", "xlib",
		"-log-level", "debug",
		fixture, out,
	})
	require.NoError(t, err)

	f, err := parser.ParseFile(token.NewFileSet(), out, nil, parser.PackageClauseOnly)
	require.NoError(t, err)
	require.Equal(t, "vulkan", f.Name.Name)
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	abs, err := filepath.Abs(fixture)
	require.NoError(t, err)
	cfgPath := filepath.Join(dir, "vkbindgen.hcl")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
registry    = "`+filepath.ToSlash(abs)+`"
output      = "`+filepath.ToSlash(filepath.Join(dir, "vk.go"))+`"
package     = "vk"
max_version = "1.0"
extensions  = ["VK_KHR_surface"]
`), 0o600))

	require.NoError(t, run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"-config", cfgPath}))

	src, err := os.ReadFile(filepath.Join(dir, "vk.go"))
	require.NoError(t, err)
	require.Contains(t, string(src), "package vk")
	require.Contains(t, string(src), "VK_KHR_surface is instance extension 1.")
	require.NotContains(t, string(src), "VK_EXT_debug_utils is")
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"only-one-arg.xml"})
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 2, exitErr.Code)

	err = run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{filepath.Join(dir, "missing.xml"), filepath.Join(dir, "out.go")})
	require.Error(t, err)
	require.False(t, errors.As(err, &exitErr))

	err = run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"-max-version", "9.9", fixture, filepath.Join(dir, "out.go")})
	require.ErrorContains(t, err, "select declarations")
}

func TestRun_UnformattedOutputKept(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "vkbindgen.hcl")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
max_version = "1.1"
type_override "VkExtent2D" {
  go = "[[broken"
}
`), 0o600))
	out := filepath.Join(dir, "vk.go")

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"-config", cfgPath, fixture, out})
	require.True(t, errors.Is(err, bindgen.ErrUnformatted))
	require.FileExists(t, out+".broken")
	require.NoFileExists(t, out)
}
