package genconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_InterpolatesEnvironment(t *testing.T) {
	t.Setenv("VULKAN_SDK", "/opt/vulkan")
	t.Setenv("VULKAN_INCLUDE", "/opt/vulkan/include")

	cfg, err := Load(context.Background(), "testdata/vkbindgen.hcl")
	require.NoError(t, err)

	require.Equal(t, "/opt/vulkan/share/vulkan/registry/vk.xml", cfg.Registry)
	require.Equal(t, []string{"-I/opt/vulkan/include"}, cfg.CFlags)
	require.Equal(t, []string{"VK_KHR_surface", "VK_EXT_debug_utils"}, cfg.Extensions)
	require.Equal(t, map[string]string{"linux": "-lvulkan"}, cfg.LDFlags)
	require.Equal(t, map[string]string{"VkBool32": "bool32"}, cfg.Overrides())
	require.NotNil(t, cfg.Stringers)
	require.False(t, *cfg.Stringers)
	require.Nil(t, cfg.Commands)

	require.NoError(t, cfg.Normalize())
	require.Equal(t, "VK_VERSION_1_1", cfg.MaxVersion)
	require.Equal(t, DefaultAPI, cfg.API)
	require.Equal(t, "vkgen", cfg.Package)
	require.True(t, *cfg.Commands)
	require.False(t, *cfg.Stringers)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"syntax":       `registry = `,
		"unknown attr": `colour = "blue"`,
		"duplicate override": `
type_override "VkBool32" { go = "bool" }
type_override "VkBool32" { go = "uint32" }
`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(context.Background(), []byte(src), name+".hcl")
			require.Error(t, err)
		})
	}
}

func TestNormalize(t *testing.T) {
	cfg := &Config{Registry: "vk.xml", Output: "gen.go"}
	require.NoError(t, cfg.Normalize())
	require.Equal(t, DefaultMaxVersion, cfg.MaxVersion)
	require.Equal(t, "gen", cfg.Package)
	require.Equal(t, "-lvulkan-1", cfg.LDFlags["windows"])

	require.Error(t, (&Config{Output: "gen.go"}).Normalize())
	require.Error(t, (&Config{Registry: "vk.xml"}).Normalize())
	require.Error(t, (&Config{Registry: "vk.xml", Output: "gen.go", Package: "bad-name"}).Normalize())
}

func TestEvalContext_EmptyEnvironment(t *testing.T) {
	ctx := EvalContext(nil)
	require.Equal(t, "", ctx.Variables["vulkan_sdk"].AsString())
	require.Equal(t, 0, ctx.Variables["env"].LengthInt())
}

func TestPackageFromPath(t *testing.T) {
	require.Equal(t, "vkgen", PackageFromPath("out/vk_gen.go"))
	require.Equal(t, "vulkan", PackageFromPath("Vulkan.go"))
	require.Equal(t, "vk", PackageFromPath("123.go"))
}
