package bindgen

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/vkinit/internal/registry"
)

func fixtureSelection(t *testing.T) *registry.Selection {
	t.Helper()
	ctx := context.Background()
	reg, err := registry.Load(ctx, "../registry/testdata/vk_subset.xml")
	require.NoError(t, err)
	sel, err := registry.Select(ctx, reg, registry.Options{
		MaxVersion: "VK_VERSION_1_1",
		Platforms:  []string{"xlib"},
	})
	require.NoError(t, err)
	return sel
}

func fixtureOptions() Options {
	return Options{
		Package:   "vk",
		Source:    "vk_subset.xml",
		Output:    "vk.go",
		CFlags:    []string{"-I/usr/include"},
		LDFlags:   map[string]string{"linux": "-lvulkan", "darwin": "-lMoltenVK"},
		Commands:  true,
		Stringers: true,
	}
}

// decls indexes the top level declarations of a generated file.
type decls struct {
	file    *ast.File
	types   map[string]*ast.TypeSpec
	values  map[string]*ast.ValueSpec
	funcs   map[string]*ast.FuncDecl
	methods map[string]*ast.FuncDecl
	imports []string
}

func parseGenerated(t *testing.T, src []byte) *decls {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "vk.go", src, parser.ParseComments)
	require.NoError(t, err)

	d := &decls{
		file:    f,
		types:   make(map[string]*ast.TypeSpec),
		values:  make(map[string]*ast.ValueSpec),
		funcs:   make(map[string]*ast.FuncDecl),
		methods: make(map[string]*ast.FuncDecl),
	}
	for _, imp := range f.Imports {
		d.imports = append(d.imports, strings.Trim(imp.Path.Value, `"`))
	}
	for _, decl := range f.Decls {
		switch decl := decl.(type) {
		case *ast.GenDecl:
			for _, spec := range decl.Specs {
				switch spec := spec.(type) {
				case *ast.TypeSpec:
					require.NotContains(t, d.types, spec.Name.Name, "type declared twice")
					d.types[spec.Name.Name] = spec
				case *ast.ValueSpec:
					for _, n := range spec.Names {
						require.NotContains(t, d.values, n.Name, "value declared twice")
						d.values[n.Name] = spec
					}
				}
			}
		case *ast.FuncDecl:
			if decl.Recv == nil {
				d.funcs[decl.Name.Name] = decl
				continue
			}
			recv := types.ExprString(decl.Recv.List[0].Type)
			d.methods[strings.TrimPrefix(recv, "*")+"."+decl.Name.Name] = decl
		}
	}
	return d
}

// value returns the type and expression of a constant with spaces removed.
func (d *decls) value(t *testing.T, name string) (string, string) {
	t.Helper()
	spec, ok := d.values[name]
	require.True(t, ok, "constant %s missing", name)
	typ := ""
	if spec.Type != nil {
		typ = types.ExprString(spec.Type)
	}
	for i, n := range spec.Names {
		if n.Name == name && i < len(spec.Values) {
			return typ, strings.ReplaceAll(types.ExprString(spec.Values[i]), " ", "")
		}
	}
	return typ, ""
}

func (d *decls) fields(t *testing.T, name string) map[string]string {
	t.Helper()
	spec, ok := d.types[name]
	require.True(t, ok, "type %s missing", name)
	st, ok := spec.Type.(*ast.StructType)
	require.True(t, ok, "%s is not a struct", name)
	out := make(map[string]string)
	for _, f := range st.Fields.List {
		for _, n := range f.Names {
			out[n.Name] = types.ExprString(f.Type)
		}
	}
	return out
}

func generateFixture(t *testing.T, opts Options) ([]byte, *decls) {
	t.Helper()
	src, err := Generate(context.Background(), fixtureSelection(t), opts)
	require.NoError(t, err)
	return src, parseGenerated(t, src)
}

func TestGenerate_Declarations(t *testing.T) {
	_, d := generateFixture(t, fixtureOptions())

	for _, name := range []string{
		"Instance", "PhysicalDevice", "SurfaceKHR", "DebugUtilsMessengerEXT",
		"Result", "StructureType", "InstanceCreateInfo", "ApplicationInfo",
		"ClearColorValue", "PfnAllocationFunction", "PfnVoidFunction",
		"Display", "Window", "Bool32", "Flags", "Flags64",
		"AccessFlagBits2", "AccessFlags2", "AccessFlagBits2KHR", "AccessFlags2KHR",
		"PhysicalDeviceProperties2", "PhysicalDeviceProperties2KHR",
		"XlibSurfaceCreateInfoKHR", "MemoryBarrier2",
	} {
		require.Contains(t, d.types, name)
	}
	require.NotContains(t, d.types, "SafetyCriticalInfo")

	for _, name := range []string{
		"CreateInstance", "DestroyInstance", "GetInstanceProcAddr",
		"EnumerateInstanceVersion", "GetPhysicalDeviceProperties2",
		"CreateXlibSurfaceKHR", "CmdPipelineBarrier2",
		"NewInstanceCreateInfo", "NewApplicationInfo", "NewXlibSurfaceCreateInfoKHR",
		"MakeAPIVersion", "APIVersionMajor",
	} {
		require.Contains(t, d.funcs, name)
	}
	require.NotContains(t, d.funcs, "GetPhysicalDeviceProperties2KHR")
	require.NotContains(t, d.funcs, "GetSafetyCriticalInfo")
	require.NotContains(t, d.funcs, "NewAllocationCallbacks")

	require.Contains(t, d.methods, "Result.String")
	require.Contains(t, d.methods, "ClearColorValue.Float32")
	require.Contains(t, d.methods, "ClearColorValue.Uint32")
	require.ElementsMatch(t, []string{"C", "strconv", "unsafe"}, d.imports)
}

func TestGenerate_Constants(t *testing.T) {
	_, d := generateFixture(t, fixtureOptions())

	cases := map[string][2]string{
		"Success":                                {"Result", "0"},
		"ErrorOutOfHostMemory":                   {"Result", "-1"},
		"ErrorSurfaceLostKHR":                    {"Result", "-1000000000"},
		"ResultMaxEnum":                          {"Result", "0x7FFFFFFF"},
		"StructureTypeXlibSurfaceCreateInfoKHR":  {"StructureType", "1000004000"},
		"StructureTypePhysicalDeviceProperties2": {"StructureType", "1000059001"},
		"StructureTypePhysicalDeviceProperties2KHR": {"StructureType", "StructureTypePhysicalDeviceProperties2"},
		"InstanceCreateEnumeratePortabilityBitKHR":  {"InstanceCreateFlagBits", "0x00000001"},
		"Access2ShaderSampledReadBit":               {"AccessFlagBits2", "0x0000000100000000"},
		"Access2NoneKHR":                            {"AccessFlagBits2", "Access2None"},
		"HeaderVersion":                             {"uint32", "280"},
		"HeaderVersionComplete":                     {"uint32", "1<<22|3<<12|HeaderVersion"},
		"APIVersion1_0":                             {"uint32", "1<<22"},
		"APIVersion1_1":                             {"uint32", "1<<22|1<<12"},
		"MaxExtensionNameSize":                      {"uint32", "256"},
		"RemainingMipLevels":                        {"uint32", "^uint32(0)"},
		"WholeSize":                                 {"uint64", "^uint64(0)"},
		"LodClampNone":                              {"float32", "1000.0"},
		"KHRSurfaceSpecVersion":                     {"", "25"},
		"KHRSurfaceExtensionName":                   {"", `"VK_KHR_surface"`},
		"NullHandle":                                {"", "0"},
	}
	for name, want := range cases {
		typ, expr := d.value(t, name)
		require.Equal(t, want[0], typ, name)
		require.Equal(t, want[1], expr, name)
	}

	require.NotContains(t, d.values, "AccessFlagBits2MaxEnum")
	require.Contains(t, d.values, "DebugUtilsMessageSeverityFlagBitsMaxEnumEXT")
	require.NotContains(t, d.values, "MakeVersion")
}

func TestGenerate_Structs(t *testing.T) {
	_, d := generateFixture(t, fixtureOptions())

	require.Equal(t, map[string]string{
		"SType":                   "StructureType",
		"PNext":                   "unsafe.Pointer",
		"Flags":                   "InstanceCreateFlags",
		"PApplicationInfo":        "*ApplicationInfo",
		"EnabledLayerCount":       "uint32",
		"PpEnabledLayerNames":     "**byte",
		"EnabledExtensionCount":   "uint32",
		"PpEnabledExtensionNames": "**byte",
	}, d.fields(t, "InstanceCreateInfo"))

	require.Equal(t, "[MaxExtensionNameSize]byte", d.fields(t, "LayerProperties")["LayerName"])
	require.Equal(t, "*Display", d.fields(t, "XlibSurfaceCreateInfoKHR")["Dpy"])
	require.Equal(t, "PfnAllocationFunction", d.fields(t, "AllocationCallbacks")["PfnAllocation"])

	props := d.fields(t, "PhysicalDeviceProperties2")
	require.Equal(t, "Extent2D", props["MaxExtent"])
	require.NotContains(t, props, "SafetyLevel")

	require.Equal(t, "Display", types.ExprString(d.types["Display"].Type.(*ast.SelectorExpr).Sel))
	require.Equal(t, "uintptr", types.ExprString(d.types["Instance"].Type))
	require.Equal(t, "uint64", types.ExprString(d.types["SurfaceKHR"].Type))
	var union []string
	for _, f := range d.types["ClearColorValue"].Type.(*ast.StructType).Fields.List {
		union = append(union, f.Names[0].Name+" "+types.ExprString(f.Type))
	}
	require.Equal(t, []string{
		"_ [0][4]float32",
		"_ [0][4]int32",
		"_ [0][4]uint32",
		"raw [C.sizeof_VkClearColorValue]byte",
	}, union)
	require.True(t, d.types["AccessFlagBits2KHR"].Assign.IsValid(), "aliases use =")
}

func TestGenerate_Text(t *testing.T) {
	src, _ := generateFixture(t, fixtureOptions())
	out := string(src)

	require.True(t, strings.HasPrefix(out, "// Code generated by vkbindgen from vk_subset.xml; DO NOT EDIT.\n"))
	for _, want := range []string{
		"#cgo CFLAGS: -I/usr/include\n",
		"#cgo darwin LDFLAGS: -lMoltenVK\n#cgo linux LDFLAGS: -lvulkan\n",
		"#define VK_USE_PLATFORM_XLIB_KHR\n#include <vulkan/vulkan.h>\n",
		"// VK_VERSION_1_0\n",
		"// VK_KHR_surface is instance extension 1.\n",
		"// Requires VK_USE_PLATFORM_XLIB_KHR.\n",
		"// Deprecated: VkMemoryBarrier2 is deprecated and should not be used.\n",
		"// DebugUtilsMessengerCreateInfoEXT extends InstanceCreateInfo.\n",
		"// PhysicalDevice is a dispatchable handle owned by Instance.\n",
		"// Error codes: VK_ERROR_OUT_OF_HOST_MEMORY, VK_ERROR_LAYER_NOT_PRESENT, VK_ERROR_EXTENSION_NOT_PRESENT, VK_ERROR_INCOMPATIBLE_DRIVER.\n",
		"typedef void* (VKAPI_PTR *PFN_vkAllocationFunction)(void* pUserData, size_t size, size_t alignment, VkSystemAllocationScope allocationScope);",
		`return "VK_ERROR_SURFACE_LOST_KHR"`,
		"C.vkCreateInstance(",
	} {
		require.Contains(t, out, want)
	}

	// Extension blocks follow the features in extension number order.
	surface := strings.Index(out, "// VK_KHR_surface is")
	xlib := strings.Index(out, "// VK_KHR_xlib_surface is")
	sync2 := strings.Index(out, "// VK_KHR_synchronization2 is")
	require.Less(t, strings.Index(out, "// VK_VERSION_1_1\n"), surface)
	require.Less(t, surface, xlib)
	require.Less(t, xlib, sync2)
}

func TestGenerate_WithoutCommandsOrStringers(t *testing.T) {
	opts := fixtureOptions()
	opts.Commands = false
	opts.Stringers = false
	_, d := generateFixture(t, opts)

	require.NotContains(t, d.funcs, "CreateInstance")
	require.Contains(t, d.funcs, "NewInstanceCreateInfo")
	require.NotContains(t, d.methods, "Result.String")
	require.NotContains(t, d.imports, "strconv")
	require.Contains(t, d.imports, "unsafe")
}

func TestGenerate_Overrides(t *testing.T) {
	opts := fixtureOptions()
	opts.Overrides = map[string]string{"VkExtent2D": "[2]uint32"}
	_, d := generateFixture(t, opts)

	require.NotContains(t, d.types, "Extent2D")
	require.Equal(t, "[2]uint32", d.fields(t, "PhysicalDeviceProperties2")["MaxExtent"])
}

func TestGenerate_Deterministic(t *testing.T) {
	first, _ := generateFixture(t, fixtureOptions())
	for i := 0; i < 5; i++ {
		again, _ := generateFixture(t, fixtureOptions())
		require.Equal(t, string(first), string(again))
	}
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, fixtureSelection(t), fixtureOptions())
	require.ErrorIs(t, err, context.Canceled)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vk", "vk.go")
	opts := fixtureOptions()
	opts.Output = ""

	require.NoError(t, WriteFile(context.Background(), fixtureSelection(t), opts, path))

	src, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(src), "// Code generated by vkbindgen"))
	parseGenerated(t, src)
}

func TestWriteFile_KeepsBrokenOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vk.go")
	opts := fixtureOptions()
	opts.Overrides = map[string]string{"VkExtent2D": "[[broken"}

	err := WriteFile(context.Background(), fixtureSelection(t), opts, path)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnformatted))
	require.Contains(t, err.Error(), "vk.go.broken")

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))

	broken, readErr := os.ReadFile(path + ".broken")
	require.NoError(t, readErr)
	require.Contains(t, string(broken), "MaxExtent [[broken")
}
