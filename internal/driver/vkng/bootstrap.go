// Package vkng implements the driver interfaces on top of vkngwrapper. The
// loader is located through SDL2 or GLFW, whichever the caller selects.
package vkng

import (
	"context"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/loov/hrtime"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/vkinit/internal/ctxlog"
	"github.com/vkngwrapper/vkinit/internal/driver"
)

// Bootstrap loads the Vulkan loader library through the selected source and
// resolves the global entry points. Every failure is marked with
// driver.ErrNoDriver.
func Bootstrap(ctx context.Context, opts driver.BootstrapOptions) (driver.Loader, error) {
	logger := ctxlog.FromContext(ctx)
	start := hrtime.Now()

	var (
		procAddr unsafe.Pointer
		release  func()
		err      error
	)
	switch opts.Source {
	case driver.SourceSDL, "":
		procAddr, release, err = sdlProcAddr(opts.LibraryPath)
	case driver.SourceGLFW:
		procAddr, release, err = glfwProcAddr()
	default:
		return nil, errors.Newf("bootstrap: unknown loader source %q", opts.Source)
	}
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "bootstrap (%s)", opts.Source), driver.ErrNoDriver)
	}

	globalDriver, err := core.CreateDriverFromProcAddr(procAddr)
	if err != nil {
		release()
		return nil, errors.Mark(errors.Wrap(err, "bootstrap: resolve global entry points"), driver.ErrNoDriver)
	}

	logger.Debug("Vulkan loader bootstrapped", "source", opts.Source, "elapsed", hrtime.Since(start))
	return &loader{
		source:  opts.Source,
		global:  globalDriver,
		release: release,
	}, nil
}

func sdlProcAddr(libraryPath string) (unsafe.Pointer, func(), error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, nil, errors.Wrap(err, "sdl init")
	}

	if err := sdl.VulkanLoadLibrary(libraryPath); err != nil {
		sdl.Quit()
		return nil, nil, errors.Wrap(err, "load vulkan library")
	}

	procAddr := sdl.VulkanGetVkGetInstanceProcAddr()
	if procAddr == nil {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
		return nil, nil, errors.New("vkGetInstanceProcAddr not exported")
	}

	return procAddr, func() {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
	}, nil
}

func glfwProcAddr() (unsafe.Pointer, func(), error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, errors.Wrap(err, "glfw init")
	}

	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, nil, errors.New("glfw found no Vulkan loader")
	}

	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		glfw.Terminate()
		return nil, nil, errors.New("vkGetInstanceProcAddr not exported")
	}

	return procAddr, glfw.Terminate, nil
}
