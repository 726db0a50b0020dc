package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func selectFixture(t *testing.T, opts Options) *Selection {
	t.Helper()
	sel, err := Select(context.Background(), loadFixture(t), opts)
	require.NoError(t, err)
	return sel
}

func blockNames(sel *Selection) []string {
	names := make([]string, 0, len(sel.Blocks))
	for _, b := range sel.Blocks {
		names = append(names, b.Name)
	}
	return names
}

func valueNames(g *Group) []string {
	names := make([]string, 0, len(g.Values))
	for _, v := range g.Values {
		names = append(names, v.Name)
	}
	return names
}

func findValue(t *testing.T, g *Group, name string) *Value {
	t.Helper()
	for _, v := range g.Values {
		if v.Name == name {
			return v
		}
	}
	t.Fatalf("value %s not in group %s", name, g.Name)
	return nil
}

func TestSelect_AllSupportedExtensions(t *testing.T) {
	sel := selectFixture(t, Options{MaxVersion: "VK_VERSION_1_1"})

	require.Equal(t, []string{
		"VK_VERSION_1_0",
		"VK_VERSION_1_1",
		"VK_KHR_surface",
		"VK_KHR_get_physical_device_properties2",
		"VK_EXT_debug_utils",
		"VK_KHR_synchronization2",
		"VK_KHR_portability_enumeration",
	}, blockNames(sel))
	require.Empty(t, sel.Protects)

	require.True(t, sel.HasType("VkSurfaceKHR"))
	require.True(t, sel.HasType("VkAllocationCallbacks"), "pulled in by command params")
	require.True(t, sel.HasType("VkSystemAllocationScope"), "pulled in by funcpointer parameters")
	require.True(t, sel.HasType("VkInternalAllocationType"))
	require.True(t, sel.HasType("VkDebugUtilsMessageSeverityFlagBitsEXT"), "bitmask requires its flag bits")
	require.True(t, sel.HasType("VkAccessFlagBits2"), "64-bit bitmask names its bit values")
	require.False(t, sel.HasType("VkXlibSurfaceCreateInfoKHR"))
	require.False(t, sel.HasType("VkSafetyCriticalInfo"))
	require.False(t, sel.HasType("vk_platform"))

	result, ok := sel.Group("VkResult")
	require.True(t, ok)
	require.Equal(t, int64(-1000000000), findValue(t, result, "VK_ERROR_SURFACE_LOST_KHR").Value)
	require.Equal(t, int64(-1000000001), findValue(t, result, "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR").Value)

	sType, ok := sel.Group("VkStructureType")
	require.True(t, ok)
	require.Equal(t, []string{
		"VK_STRUCTURE_TYPE_APPLICATION_INFO",
		"VK_STRUCTURE_TYPE_INSTANCE_CREATE_INFO",
		"VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_PROPERTIES_2",
		"VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_PROPERTIES_2_KHR",
		"VK_STRUCTURE_TYPE_DEBUG_UTILS_MESSENGER_CALLBACK_DATA_EXT",
		"VK_STRUCTURE_TYPE_DEBUG_UTILS_MESSENGER_CREATE_INFO_EXT",
		"VK_STRUCTURE_TYPE_MEMORY_BARRIER_2",
	}, valueNames(sType))
	require.Equal(t, int64(1000059001), findValue(t, sType, "VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_PROPERTIES_2").Value)
	require.Equal(t, "VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_PROPERTIES_2",
		findValue(t, sType, "VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_PROPERTIES_2_KHR").Alias)
	require.Equal(t, int64(1000128004), findValue(t, sType, "VK_STRUCTURE_TYPE_DEBUG_UTILS_MESSENGER_CREATE_INFO_EXT").Value)
	require.Equal(t, int64(1000314000), findValue(t, sType, "VK_STRUCTURE_TYPE_MEMORY_BARRIER_2").Value)

	flags, ok := sel.Group("VkInstanceCreateFlagBits")
	require.True(t, ok)
	require.Equal(t, GroupBitmask, flags.Kind)
	require.Equal(t, int64(1), findValue(t, flags, "VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR").Value)

	access, ok := sel.Group("VkAccessFlagBits2")
	require.True(t, ok)
	require.Equal(t, 64, access.BitWidth)
	require.Equal(t, int64(1)<<32, findValue(t, access, "VK_ACCESS_2_SHADER_SAMPLED_READ_BIT").Value)

	_, ok = sel.Group("VkAccessFlagBits2KHR")
	require.False(t, ok, "alias types do not get their own group")
}

func TestSelect_FirstBlockOwnsDeclaration(t *testing.T) {
	sel := selectFixture(t, Options{MaxVersion: "VK_VERSION_1_1"})

	core := sel.Blocks[0]
	names := make(map[string]bool)
	for _, ty := range core.Types {
		names[ty.Name] = true
	}
	require.True(t, names["VkInstanceCreateInfo"])
	require.True(t, names["VkInstanceCreateFlags"], "member type lands in the requiring block")
	require.Len(t, core.Constants, 7)
	require.Len(t, core.Commands, 5)

	portability := sel.Blocks[len(sel.Blocks)-1]
	for _, ty := range portability.Types {
		require.NotEqual(t, "VkInstanceCreateFlags", ty.Name)
	}
	require.Len(t, portability.Constants, 2)
	require.Equal(t, `"VK_KHR_portability_enumeration"`, portability.Constants[1].Value)
	require.True(t, portability.Constants[1].IsString())

	gpdp2 := sel.Blocks[3]
	require.Len(t, gpdp2.Commands, 1)
	require.Equal(t, "vkGetPhysicalDeviceProperties2", gpdp2.Commands[0].Alias)
}

func TestSelect_Platforms(t *testing.T) {
	sel := selectFixture(t, Options{MaxVersion: "VK_VERSION_1_0", Platforms: []string{"xlib"}})

	require.Contains(t, blockNames(sel), "VK_KHR_xlib_surface")
	require.Equal(t, []string{"VK_USE_PLATFORM_XLIB_KHR"}, sel.Protects)
	require.True(t, sel.HasType("Display"))
	require.True(t, sel.HasType("VkXlibSurfaceCreateInfoKHR"))

	sType, _ := sel.Group("VkStructureType")
	xlib := findValue(t, sType, "VK_STRUCTURE_TYPE_XLIB_SURFACE_CREATE_INFO_KHR")
	require.Equal(t, int64(1000004000), xlib.Value)
	require.Equal(t, "VK_USE_PLATFORM_XLIB_KHR", xlib.Protect)
}

func TestSelect_ExplicitExtensions(t *testing.T) {
	sel := selectFixture(t, Options{
		MaxVersion: "VK_VERSION_1_1",
		Extensions: []string{"VK_KHR_synchronization2", "VK_KHR_surface"},
	})
	require.Equal(t, []string{"VK_VERSION_1_0", "VK_VERSION_1_1", "VK_KHR_surface", "VK_KHR_synchronization2"}, blockNames(sel))
	require.True(t, sel.Enabled("VK_KHR_synchronization2"))
	require.False(t, sel.Enabled("VK_EXT_debug_utils"))
}

func TestSelect_DependenciesDropImplicitExtensions(t *testing.T) {
	sel := selectFixture(t, Options{
		MaxVersion: "VK_VERSION_1_0",
		Exclude:    []string{"VK_KHR_get_physical_device_properties2"},
	})
	require.NotContains(t, blockNames(sel), "VK_KHR_synchronization2")
	require.False(t, sel.HasType("VkMemoryBarrier2"))
}

func TestSelect_UnmetDependsNamesMissing(t *testing.T) {
	_, err := Select(context.Background(), loadFixture(t), Options{
		MaxVersion: "VK_VERSION_1_0",
		Extensions: []string{"VK_KHR_synchronization2"},
	})
	require.ErrorContains(t, err, "not selected: VK_KHR_get_physical_device_properties2, VK_VERSION_1_1")
}

func TestSelect_VulkanSC(t *testing.T) {
	sel := selectFixture(t, Options{API: "vulkansc", MaxVersion: "VKSC_VERSION_1_0"})

	require.Equal(t, []string{"VK_VERSION_1_0", "VKSC_VERSION_1_0", "VK_KHR_surface"}, blockNames(sel))
	require.True(t, sel.HasType("VkSafetyCriticalInfo"))
	require.False(t, sel.HasType("VkLayerProperties"), "removed command drags nothing in")
	for _, b := range sel.Blocks {
		for _, c := range b.Commands {
			require.NotEqual(t, "vkEnumerateInstanceLayerProperties", c.Name)
		}
	}
}

func TestSelect_Errors(t *testing.T) {
	reg := loadFixture(t)
	cases := map[string]Options{
		"unknown version":       {MaxVersion: "VK_VERSION_9_9"},
		"wrong api version":     {MaxVersion: "VKSC_VERSION_1_0"},
		"unknown extension":     {Extensions: []string{"VK_KHR_teleport"}, MaxVersion: "VK_VERSION_1_1"},
		"unknown platform":      {Platforms: []string{"mars"}, MaxVersion: "VK_VERSION_1_1"},
		"platform not enabled":  {Extensions: []string{"VK_KHR_xlib_surface"}, MaxVersion: "VK_VERSION_1_1"},
		"disabled extension":    {Extensions: []string{"VK_NV_extension_400"}, MaxVersion: "VK_VERSION_1_1"},
		"unmet explicit depend": {Extensions: []string{"VK_KHR_synchronization2"}, MaxVersion: "VK_VERSION_1_0"},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Select(context.Background(), reg, opts)
			require.Error(t, err)
		})
	}
}
