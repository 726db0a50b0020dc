// Package genconfig loads the HCL file that drives vkbindgen. Paths in the
// file may reference the Vulkan SDK through the vulkan_sdk variable or any
// environment variable through env.NAME.
package genconfig

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vkngwrapper/vkinit/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// Config is the decoded generator configuration. Unset optional fields are
// filled in by Normalize.
type Config struct {
	Registry   string   `hcl:"registry,optional"`
	Output     string   `hcl:"output,optional"`
	Package    string   `hcl:"package,optional"`
	API        string   `hcl:"api,optional"`
	MaxVersion string   `hcl:"max_version,optional"`
	Extensions []string `hcl:"extensions,optional"`
	Exclude    []string `hcl:"exclude,optional"`
	Platforms  []string `hcl:"platforms,optional"`

	CFlags  []string          `hcl:"cflags,optional"`
	LDFlags map[string]string `hcl:"ldflags,optional"`

	Commands  *bool `hcl:"commands,optional"`
	Stringers *bool `hcl:"stringers,optional"`

	TypeOverrides []*TypeOverride `hcl:"type_override,block"`
}

// TypeOverride replaces the Go spelling of one registry type.
type TypeOverride struct {
	Name string `hcl:"name,label"`
	Go   string `hcl:"go"`
}

const (
	DefaultAPI        = "vulkan"
	DefaultMaxVersion = "VK_VERSION_1_3"
)

// DefaultLDFlags maps GOOS to the linker flag naming the loader library.
var DefaultLDFlags = map[string]string{
	"linux":   "-lvulkan",
	"freebsd": "-lvulkan",
	"darwin":  "-lvulkan",
	"windows": "-lvulkan-1",
}

// Load parses and decodes the HCL file at path.
func Load(ctx context.Context, path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(ctx, src, path)
}

// Parse decodes HCL source. filename is used in diagnostics only.
func Parse(ctx context.Context, src []byte, filename string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to parse HCL file %s", filename)
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, EvalContext(os.Environ()), &cfg)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to decode HCL file %s", filename)
	}

	seen := make(map[string]struct{}, len(cfg.TypeOverrides))
	for _, o := range cfg.TypeOverrides {
		if _, dup := seen[o.Name]; dup {
			return nil, errors.Newf("%s: duplicate type_override %q", filename, o.Name)
		}
		seen[o.Name] = struct{}{}
	}

	logger.Debug("Generator config loaded.", "file", filename, "registry", cfg.Registry, "overrides", len(cfg.TypeOverrides))
	return &cfg, nil
}

// EvalContext exposes vulkan_sdk and env to config expressions. environ is
// in os.Environ form.
func EvalContext(environ []string) *hcl.EvalContext {
	env := make(map[string]cty.Value)
	sdk := ""
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = cty.StringVal(v)
		if k == "VULKAN_SDK" {
			sdk = v
		}
	}

	envVal := cty.MapValEmpty(cty.String)
	if len(env) > 0 {
		envVal = cty.MapVal(env)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"vulkan_sdk": cty.StringVal(sdk),
			"env":        envVal,
		},
	}
}

// Normalize fills defaults and checks the fields every run needs.
func (c *Config) Normalize() error {
	if c.API == "" {
		c.API = DefaultAPI
	}
	if c.MaxVersion == "" {
		c.MaxVersion = DefaultMaxVersion
	}
	if !strings.HasPrefix(c.MaxVersion, "VK_VERSION_") && !strings.HasPrefix(c.MaxVersion, "VKSC_VERSION_") {
		c.MaxVersion = "VK_VERSION_" + strings.ReplaceAll(c.MaxVersion, ".", "_")
	}
	if len(c.LDFlags) == 0 {
		c.LDFlags = make(map[string]string, len(DefaultLDFlags))
		for k, v := range DefaultLDFlags {
			c.LDFlags[k] = v
		}
	}
	if c.Commands == nil {
		c.Commands = boolPtr(true)
	}
	if c.Stringers == nil {
		c.Stringers = boolPtr(true)
	}

	if c.Registry == "" {
		return errors.New("no registry file configured")
	}
	if c.Output == "" {
		return errors.New("no output file configured")
	}
	if c.Package == "" {
		c.Package = PackageFromPath(c.Output)
	}
	if !isIdentifier(c.Package) {
		return errors.Newf("package name %q is not a valid Go identifier", c.Package)
	}
	return nil
}

// Overrides returns the type overrides keyed by registry name.
func (c *Config) Overrides() map[string]string {
	out := make(map[string]string, len(c.TypeOverrides))
	for _, o := range c.TypeOverrides {
		out[o.Name] = o.Go
	}
	return out
}

// PackageFromPath derives a package name from the output file base name:
// "out/vk_gen.go" becomes "vkgen".
func PackageFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9' && b.Len() > 0) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "vk"
	}
	return b.String()
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func boolPtr(b bool) *bool {
	return &b
}
