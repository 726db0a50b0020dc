package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/vkinit/internal/driver"
)

type loader struct {
	source  driver.Source
	global  core1_0.GlobalDriver
	release func()
}

func (l *loader) AvailableLayers() (map[string]driver.Layer, error) {
	layers, res, err := l.global.AvailableLayers()
	if err != nil {
		return nil, driver.NewResultError("enumerate instance layers", toResult(res), err)
	}

	out := make(map[string]driver.Layer, len(layers))
	for name, props := range layers {
		out[name] = driver.Layer{Name: name, Description: props.Description}
	}
	return out, nil
}

func (l *loader) AvailableExtensions() (map[string]struct{}, error) {
	extensions, res, err := l.global.AvailableExtensions()
	if err != nil {
		return nil, driver.NewResultError("enumerate instance extensions", toResult(res), err)
	}

	out := make(map[string]struct{}, len(extensions))
	for name := range extensions {
		out[name] = struct{}{}
	}
	return out, nil
}

func (l *loader) CreateInstance(info driver.InstanceInfo) (driver.Instance, error) {
	createInfo := core1_0.InstanceCreateInfo{
		ApplicationName:       info.ApplicationName,
		ApplicationVersion:    common.Version(info.ApplicationVersion),
		EngineName:            info.EngineName,
		EngineVersion:         common.Version(info.EngineVersion),
		APIVersion:            common.APIVersion(info.APIVersion),
		EnabledLayerNames:     info.Layers,
		EnabledExtensionNames: info.Extensions,
	}

	if info.EnumeratePortability {
		createInfo.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if info.Messenger != nil {
		createInfo.Next = messengerCreateInfo(*info.Messenger)
	}

	vkInstance, res, err := l.global.CreateInstance(nil, createInfo)
	if err != nil {
		return nil, driver.NewResultError("create instance", toResult(res), err)
	}

	instanceDriver, err := l.global.BuildInstanceDriver(vkInstance)
	if err != nil {
		// Without an instance driver the handle can only be released through
		// the global loader.
		l.global.Loader().VkDestroyInstance(vkInstance.Handle(), nil)
		return nil, errors.Wrap(err, "build instance driver")
	}

	return &instance{driver: instanceDriver}, nil
}

func (l *loader) OpenWindow(opts driver.WindowOptions) (driver.Window, error) {
	if l.source != driver.SourceSDL && l.source != "" {
		return nil, errors.Newf("open window: not supported with loader source %q", l.source)
	}

	window, err := sdl.CreateWindow(opts.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(opts.Width), int32(opts.Height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN)
	if err != nil {
		return nil, errors.Wrap(err, "open window")
	}

	return &window{window: window}, nil
}

func (l *loader) Close() error {
	if l.release != nil {
		l.release()
		l.release = nil
	}
	return nil
}

type instance struct {
	driver core1_0.CoreInstanceDriver
}

func (i *instance) CreateMessenger(info driver.MessengerInfo) (driver.Messenger, error) {
	debugDriver := ext_debug_utils.CreateExtensionDriverFromCoreDriver(i.driver)
	messenger, res, err := debugDriver.CreateDebugUtilsMessenger(nil, messengerCreateInfo(info))
	if err != nil {
		return nil, driver.NewResultError("create debug messenger", toResult(res), err)
	}

	return &debugMessenger{driver: debugDriver, messenger: messenger}, nil
}

func (i *instance) Destroy() {
	if i.driver == nil {
		return
	}
	i.driver.DestroyInstance(nil)
	i.driver = nil
}

type debugMessenger struct {
	driver    ext_debug_utils.ExtensionDriver
	messenger ext_debug_utils.DebugUtilsMessenger
}

func (m *debugMessenger) Destroy() {
	m.driver.DestroyDebugUtilsMessenger(m.messenger, nil)
}

func messengerCreateInfo(info driver.MessengerInfo) ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback: func(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
			if info.Callback != nil {
				info.Callback(driver.Message{
					Severity: severity.String(),
					Type:     msgType.String(),
					IDName:   data.MessageIDName,
					Text:     data.Message,
				})
			}
			return false
		},
	}
}

func toResult(res common.VkResult) driver.Result {
	return driver.Result(int32(res))
}
