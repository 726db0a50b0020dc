// Package app drives the instance-creation lifecycle: bootstrap the loader,
// create one instance with the configured layers, and release everything in
// reverse order on every exit path.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/vkinit/internal/ctxlog"
	"github.com/vkngwrapper/vkinit/internal/driver"
)

const (
	DebugUtilsExtension             = "VK_EXT_debug_utils"
	PortabilityEnumerationExtension = "VK_KHR_portability_enumeration"
)

// Application owns every handle created during a run. Handles are nil until
// their creation succeeds and are nil again after Cleanup.
type Application struct {
	cfg       Config
	bootstrap driver.BootstrapFunc

	id     uuid.UUID
	shared *SharedData

	loader    driver.Loader
	window    driver.Window
	instance  driver.Instance
	messenger driver.Messenger
	surface   driver.Surface
}

func New(cfg Config, bootstrap driver.BootstrapFunc) *Application {
	return &Application{
		cfg:       cfg,
		bootstrap: bootstrap,
		id:        uuid.New(),
		shared:    NewSharedData(),
	}
}

// Instance returns the live instance handle, or nil before creation and after
// cleanup.
func (a *Application) Instance() driver.Instance {
	return a.instance
}

// Shared returns the data written by the debug messenger.
func (a *Application) Shared() *SharedData {
	return a.shared
}

func (a *Application) ID() uuid.UUID {
	return a.id
}

// Run bootstraps the loader and creates the instance. Cleanup is deferred as
// soon as the loader exists, so it runs on success, error and panic alike.
func (a *Application) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, ctxlog.FromContext(ctx).With("session", a.id.String()))
	logger := ctxlog.FromContext(ctx)
	start := hrtime.Now()

	err := a.initLoader(ctx)
	if err != nil {
		return err
	}
	defer a.Cleanup(ctx)

	err = a.initVulkan(ctx)
	if err != nil {
		return errors.Wrap(err, "init vulkan")
	}

	logger.Info("Vulkan instance ready", "elapsed", hrtime.Since(start), "debug_messages", a.shared.Len())
	return nil
}

func (a *Application) initLoader(ctx context.Context) error {
	loader, err := a.bootstrap(ctx, driver.BootstrapOptions{
		Source:      a.cfg.Loader,
		LibraryPath: a.cfg.LibraryPath,
	})
	if err != nil {
		return err
	}
	a.loader = loader

	ctxlog.FromContext(ctx).Debug("Loader initialized", "source", a.cfg.Loader)
	return nil
}

func (a *Application) initVulkan(ctx context.Context) error {
	if a.cfg.Window {
		err := a.openWindow(ctx)
		if err != nil {
			return err
		}
	}

	err := a.createInstance(ctx)
	if err != nil {
		return err
	}

	if a.cfg.DebugMessenger {
		err = a.setupDebugMessenger(ctx)
		if err != nil {
			return err
		}
	}

	if a.window != nil {
		return a.createSurface(ctx)
	}
	return nil
}

func (a *Application) openWindow(ctx context.Context) error {
	window, err := a.loader.OpenWindow(driver.WindowOptions{
		Title:  a.cfg.WindowTitle,
		Width:  a.cfg.WindowWidth,
		Height: a.cfg.WindowHeight,
	})
	if err != nil {
		return err
	}
	a.window = window

	ctxlog.FromContext(ctx).Debug("Window opened", "width", a.cfg.WindowWidth, "height", a.cfg.WindowHeight)
	return nil
}

func (a *Application) createInstance(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	start := hrtime.Now()

	info, err := a.instanceInfo(ctx)
	if err != nil {
		return err
	}

	instance, err := a.loader.CreateInstance(info)
	if err != nil {
		return err
	}
	a.instance = instance

	logger.Info("Instance created",
		"application", info.ApplicationName,
		"api_version", info.APIVersion.String(),
		"layers", info.Layers,
		"extensions", info.Extensions,
		"elapsed", hrtime.Since(start))
	return nil
}

// instanceInfo assembles the create descriptor. Requested layers the driver
// does not offer are only warned about: the native call reports them with
// its own status code.
func (a *Application) instanceInfo(ctx context.Context) (driver.InstanceInfo, error) {
	logger := ctxlog.FromContext(ctx)

	info := driver.InstanceInfo{
		ApplicationName:    a.cfg.ApplicationName,
		ApplicationVersion: a.cfg.ApplicationVersion,
		EngineName:         a.cfg.EngineName,
		EngineVersion:      a.cfg.EngineVersion,
		APIVersion:         a.cfg.APIVersion,
		Layers:             append([]string(nil), a.cfg.Layers...),
	}

	availableLayers, err := a.loader.AvailableLayers()
	if err != nil {
		return info, err
	}
	for _, layer := range info.Layers {
		if _, ok := availableLayers[layer]; !ok {
			logger.Warn("Requested layer is not offered by the driver", "layer", layer)
		}
	}

	availableExtensions, err := a.loader.AvailableExtensions()
	if err != nil {
		return info, err
	}

	var extensions []string
	if a.window != nil {
		extensions = append(extensions, a.window.RequiredExtensions()...)
	}
	extensions = append(extensions, a.cfg.Extensions...)

	if a.cfg.DebugMessenger {
		extensions = append(extensions, DebugUtilsExtension)
		info.Messenger = &driver.MessengerInfo{Callback: debugHandler(ctx, a.shared)}
	}

	if _, ok := availableExtensions[PortabilityEnumerationExtension]; ok {
		extensions = append(extensions, PortabilityEnumerationExtension)
		info.EnumeratePortability = true
	}

	info.Extensions = dedupe(extensions)
	return info, nil
}

func (a *Application) setupDebugMessenger(ctx context.Context) error {
	messenger, err := a.instance.CreateMessenger(driver.MessengerInfo{
		Callback: debugHandler(ctx, a.shared),
	})
	if err != nil {
		return err
	}
	a.messenger = messenger

	ctxlog.FromContext(ctx).Debug("Debug messenger installed")
	return nil
}

func (a *Application) createSurface(ctx context.Context) error {
	surface, err := a.window.CreateSurface(a.instance)
	if err != nil {
		return err
	}
	a.surface = surface

	ctxlog.FromContext(ctx).Debug("Surface created")
	return nil
}

// Cleanup releases surface, messenger, instance, window and loader in that
// order. Each handle is released at most once, so calling Cleanup again is a
// no-op.
func (a *Application) Cleanup(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	if a.surface != nil {
		a.surface.Destroy()
		a.surface = nil
	}

	if a.messenger != nil {
		a.messenger.Destroy()
		a.messenger = nil
	}

	if a.instance != nil {
		a.instance.Destroy()
		a.instance = nil
		logger.Debug("Instance destroyed")
	}

	if a.window != nil {
		a.window.Destroy()
		a.window = nil
	}

	if a.loader != nil {
		if err := a.loader.Close(); err != nil {
			logger.Warn("Failed to release loader", "error", err)
		}
		a.loader = nil
	}
}

// Diagnose renders err as the one-line message printed before exiting.
func Diagnose(err error) string {
	if errors.Is(err, driver.ErrNoDriver) {
		return fmt.Sprintf("no compatible Vulkan driver found: %v", err)
	}
	var resultErr *driver.ResultError
	if errors.As(err, &resultErr) {
		code := resultErr.Code
		if !code.IsError() {
			return fmt.Sprintf("%s stopped with status %s (%d)", resultErr.Op, code, int32(code))
		}
		return fmt.Sprintf("failed to %s: %s (%d)", resultErr.Op, code, int32(code))
	}
	return err.Error()
}

// LogValue lets the configuration be logged as one structured group.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("application", c.ApplicationName),
		slog.String("engine", c.EngineName),
		slog.String("api_version", c.APIVersion.String()),
		slog.Any("layers", c.Layers),
		slog.Any("extensions", c.Extensions),
		slog.String("loader", string(c.Loader)),
		slog.Bool("window", c.Window),
		slog.Bool("debug_messenger", c.DebugMessenger),
	)
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
