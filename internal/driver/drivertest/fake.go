// Package drivertest provides an in-memory driver.Loader for tests. It
// records every call so tests can assert ordering and destroy counts.
package drivertest

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vkinit/internal/driver"
)

// Loader is a fake driver.Loader. Zero value offers no layers and
// extensions; use NewLoader for the usual validation-layer setup.
type Loader struct {
	mu sync.Mutex

	Layers     map[string]driver.Layer
	Extensions map[string]struct{}

	// CreateResult, when not driver.Success, makes CreateInstance fail with
	// that code. A requested layer missing from Layers fails with
	// ErrorLayerNotPresent the way the real loader does.
	CreateResult driver.Result
	// PanicOnMessenger makes Instance.CreateMessenger panic.
	PanicOnMessenger bool
	WindowExtensions []string

	Calls     []string
	Created   []driver.InstanceInfo
	Instances []*Instance
	Closed    int
}

func NewLoader() *Loader {
	return &Loader{
		Layers: map[string]driver.Layer{
			"VK_LAYER_KHRONOS_validation": {Name: "VK_LAYER_KHRONOS_validation", Description: "Khronos Validation Layer"},
		},
		Extensions: map[string]struct{}{
			"VK_EXT_debug_utils": {},
			"VK_KHR_surface":     {},
		},
		WindowExtensions: []string{"VK_KHR_surface"},
	}
}

// Bootstrap returns a driver.BootstrapFunc handing out l.
func (l *Loader) Bootstrap() driver.BootstrapFunc {
	return func(context.Context, driver.BootstrapOptions) (driver.Loader, error) {
		l.record("bootstrap")
		return l, nil
	}
}

func (l *Loader) record(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = append(l.Calls, call)
}

// CallLog returns a copy of the recorded calls.
func (l *Loader) CallLog() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Calls...)
}

func (l *Loader) AvailableLayers() (map[string]driver.Layer, error) {
	l.record("available layers")
	out := make(map[string]driver.Layer, len(l.Layers))
	for name, layer := range l.Layers {
		out[name] = layer
	}
	return out, nil
}

func (l *Loader) AvailableExtensions() (map[string]struct{}, error) {
	l.record("available extensions")
	out := make(map[string]struct{}, len(l.Extensions))
	for name := range l.Extensions {
		out[name] = struct{}{}
	}
	return out, nil
}

func (l *Loader) CreateInstance(info driver.InstanceInfo) (driver.Instance, error) {
	l.record("create instance")
	l.mu.Lock()
	l.Created = append(l.Created, info)
	l.mu.Unlock()

	if l.CreateResult != driver.Success {
		return nil, driver.NewResultError("create instance", l.CreateResult, nil)
	}
	for _, layer := range info.Layers {
		if _, ok := l.Layers[layer]; !ok {
			return nil, driver.NewResultError("create instance", driver.ErrorLayerNotPresent, nil)
		}
	}
	for _, ext := range info.Extensions {
		if _, ok := l.Extensions[ext]; !ok {
			return nil, driver.NewResultError("create instance", driver.ErrorExtensionNotPresent, nil)
		}
	}

	instance := &Instance{loader: l, Info: info}
	l.mu.Lock()
	l.Instances = append(l.Instances, instance)
	l.mu.Unlock()

	if info.Messenger != nil && info.Messenger.Callback != nil {
		info.Messenger.Callback(driver.Message{
			Severity: "Info",
			Type:     "General",
			IDName:   "Loader Message",
			Text:     "fake instance created",
		})
	}
	return instance, nil
}

func (l *Loader) OpenWindow(opts driver.WindowOptions) (driver.Window, error) {
	l.record("open window")
	return &Window{loader: l, Options: opts}, nil
}

func (l *Loader) Close() error {
	l.record("close")
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Closed++
	return nil
}

type Instance struct {
	loader *Loader

	Info       driver.InstanceInfo
	Destroyed  int
	Messengers []*Messenger
}

func (i *Instance) CreateMessenger(info driver.MessengerInfo) (driver.Messenger, error) {
	i.loader.record("create messenger")
	if i.loader.PanicOnMessenger {
		panic("drivertest: messenger creation panicked")
	}
	m := &Messenger{loader: i.loader, Info: info}
	i.Messengers = append(i.Messengers, m)
	return m, nil
}

func (i *Instance) Destroy() {
	i.loader.record("destroy instance")
	i.Destroyed++
}

type Messenger struct {
	loader *Loader

	Info      driver.MessengerInfo
	Destroyed int
}

// Emit delivers msg to the registered callback, as a driver thread would.
func (m *Messenger) Emit(msg driver.Message) {
	m.Info.Callback(msg)
}

func (m *Messenger) Destroy() {
	m.loader.record("destroy messenger")
	m.Destroyed++
}

type Window struct {
	loader *Loader

	Options   driver.WindowOptions
	Destroyed int
}

func (w *Window) RequiredExtensions() []string {
	return append([]string(nil), w.loader.WindowExtensions...)
}

func (w *Window) CreateSurface(driver.Instance) (driver.Surface, error) {
	w.loader.record("create surface")
	return &Surface{loader: w.loader}, nil
}

func (w *Window) Destroy() {
	w.loader.record("destroy window")
	w.Destroyed++
}

type Surface struct {
	loader *Loader

	Destroyed int
}

func (s *Surface) Destroy() {
	s.loader.record("destroy surface")
	s.Destroyed++
}

// FailingBootstrap returns a BootstrapFunc that always fails the way a
// machine without a Vulkan driver does.
func FailingBootstrap(calls *int) driver.BootstrapFunc {
	return func(context.Context, driver.BootstrapOptions) (driver.Loader, error) {
		*calls++
		return nil, errors.Mark(errors.New("bootstrap: libvulkan.so.1 not found"), driver.ErrNoDriver)
	}
}
