package driver

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrNoDriver marks every bootstrap failure: the loader library could not be
// opened or it did not expose vkGetInstanceProcAddr.
var ErrNoDriver = errors.New("no compatible Vulkan driver found")

// Source names the library used to locate the Vulkan loader.
type Source string

const (
	SourceSDL  Source = "sdl"
	SourceGLFW Source = "glfw"
)

func (s Source) Valid() bool {
	return s == SourceSDL || s == SourceGLFW
}

type BootstrapOptions struct {
	Source Source
	// LibraryPath overrides the loader library. Empty means the platform default.
	LibraryPath string
}

// BootstrapFunc resolves the global driver entry points. It must run exactly
// once before any other graphics call and wraps its failures with ErrNoDriver.
type BootstrapFunc func(ctx context.Context, opts BootstrapOptions) (Loader, error)

type Layer struct {
	Name        string
	Description string
}

// Message is one report delivered to a debug messenger callback.
type Message struct {
	Severity string
	Type     string
	IDName   string
	Text     string
}

// MessengerInfo configures a debug messenger. Callback may be invoked from
// driver-owned threads.
type MessengerInfo struct {
	Callback func(Message)
}

// InstanceInfo is the immutable descriptor consumed by instance creation.
type InstanceInfo struct {
	ApplicationName    string
	ApplicationVersion Version
	EngineName         string
	EngineVersion      Version
	APIVersion         Version

	// Layers is passed to the driver in order.
	Layers     []string
	Extensions []string

	EnumeratePortability bool

	// Messenger, when set, is chained into the create info so messages
	// emitted during instance creation and destruction are captured too.
	Messenger *MessengerInfo
}

type WindowOptions struct {
	Title  string
	Width  int
	Height int
}

// Loader is the bootstrapped driver: global entry points only.
type Loader interface {
	AvailableLayers() (map[string]Layer, error)
	AvailableExtensions() (map[string]struct{}, error)
	CreateInstance(info InstanceInfo) (Instance, error)
	OpenWindow(opts WindowOptions) (Window, error)
	Close() error
}

// Instance is an owned VkInstance. Destroy calls vkDestroyInstance.
type Instance interface {
	CreateMessenger(info MessengerInfo) (Messenger, error)
	Destroy()
}

type Messenger interface {
	Destroy()
}

type Window interface {
	RequiredExtensions() []string
	CreateSurface(instance Instance) (Surface, error)
	Destroy()
}

type Surface interface {
	Destroy()
}
