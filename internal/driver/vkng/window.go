package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
	"github.com/vkngwrapper/vkinit/internal/driver"
)

type window struct {
	window *sdl.Window
}

func (w *window) RequiredExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *window) CreateSurface(inst driver.Instance) (driver.Surface, error) {
	vkInstance, ok := inst.(*instance)
	if !ok {
		return nil, errors.Newf("create surface: instance %T was not created by this loader", inst)
	}

	surfaceExtension := khr_surface.CreateExtensionDriverFromCoreDriver(vkInstance.driver)
	surface, err := vkng_sdl2.CreateSurface(vkInstance.driver.Instance(), surfaceExtension, w.window)
	if err != nil {
		return nil, errors.Wrap(err, "create surface")
	}

	return &presentSurface{extension: surfaceExtension, surface: surface}, nil
}

func (w *window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
}

type presentSurface struct {
	extension khr_surface.ExtensionDriver
	surface   khr_surface.Surface
}

func (s *presentSurface) Destroy() {
	s.extension.DestroySurface(s.surface, nil)
}
