package driver

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Result is a VkResult status code returned by the native driver.
type Result int32

const (
	Success                    Result = 0
	NotReady                   Result = 1
	Timeout                    Result = 2
	EventSet                   Result = 3
	EventReset                 Result = 4
	Incomplete                 Result = 5
	ErrorOutOfHostMemory       Result = -1
	ErrorOutOfDeviceMemory     Result = -2
	ErrorInitializationFailed  Result = -3
	ErrorDeviceLost            Result = -4
	ErrorMemoryMapFailed       Result = -5
	ErrorLayerNotPresent       Result = -6
	ErrorExtensionNotPresent   Result = -7
	ErrorFeatureNotPresent     Result = -8
	ErrorIncompatibleDriver    Result = -9
	ErrorTooManyObjects        Result = -10
	ErrorFormatNotSupported    Result = -11
	ErrorFragmentedPool        Result = -12
	ErrorUnknown               Result = -13
	ErrorOutOfPoolMemory       Result = -1000069000
	ErrorInvalidExternalHandle Result = -1000072003
	ErrorSurfaceLost           Result = -1000000000
	ErrorNativeWindowInUse     Result = -1000000001
	ErrorValidationFailed      Result = -1000011001
)

var resultNames = map[Result]string{
	Success:                    "VK_SUCCESS",
	NotReady:                   "VK_NOT_READY",
	Timeout:                    "VK_TIMEOUT",
	EventSet:                   "VK_EVENT_SET",
	EventReset:                 "VK_EVENT_RESET",
	Incomplete:                 "VK_INCOMPLETE",
	ErrorOutOfHostMemory:       "VK_ERROR_OUT_OF_HOST_MEMORY",
	ErrorOutOfDeviceMemory:     "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	ErrorInitializationFailed:  "VK_ERROR_INITIALIZATION_FAILED",
	ErrorDeviceLost:            "VK_ERROR_DEVICE_LOST",
	ErrorMemoryMapFailed:       "VK_ERROR_MEMORY_MAP_FAILED",
	ErrorLayerNotPresent:       "VK_ERROR_LAYER_NOT_PRESENT",
	ErrorExtensionNotPresent:   "VK_ERROR_EXTENSION_NOT_PRESENT",
	ErrorFeatureNotPresent:     "VK_ERROR_FEATURE_NOT_PRESENT",
	ErrorIncompatibleDriver:    "VK_ERROR_INCOMPATIBLE_DRIVER",
	ErrorTooManyObjects:        "VK_ERROR_TOO_MANY_OBJECTS",
	ErrorFormatNotSupported:    "VK_ERROR_FORMAT_NOT_SUPPORTED",
	ErrorFragmentedPool:        "VK_ERROR_FRAGMENTED_POOL",
	ErrorUnknown:               "VK_ERROR_UNKNOWN",
	ErrorOutOfPoolMemory:       "VK_ERROR_OUT_OF_POOL_MEMORY",
	ErrorInvalidExternalHandle: "VK_ERROR_INVALID_EXTERNAL_HANDLE",
	ErrorSurfaceLost:           "VK_ERROR_SURFACE_LOST_KHR",
	ErrorNativeWindowInUse:     "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
	ErrorValidationFailed:      "VK_ERROR_VALIDATION_FAILED_EXT",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("VkResult(%d)", int32(r))
}

// IsError reports whether r is one of the negative error codes.
func (r Result) IsError() bool {
	return r < 0
}

// ResultError is returned when a native call reports a non-success status.
type ResultError struct {
	Op    string
	Code  Result
	cause error
}

// NewResultError builds a ResultError for op. cause is the error the
// binding layer produced alongside the status, if any.
func NewResultError(op string, code Result, cause error) error {
	return errors.WithStack(&ResultError{Op: op, Code: code, cause: cause})
}

// Error ends with the cause's message, if there is one.
func (e *ResultError) Error() string {
	msg := fmt.Sprintf("%s: %s (%d)", e.Op, e.Code, int32(e.Code))
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *ResultError) Unwrap() error {
	return e.cause
}

// Is matches any ResultError carrying the same code, so callers can test
// against the sentinels below.
func (e *ResultError) Is(target error) bool {
	var other *ResultError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// ResultOf returns the status code carried by err, if any.
func ResultOf(err error) (Result, bool) {
	var resultErr *ResultError
	if errors.As(err, &resultErr) {
		return resultErr.Code, true
	}
	return Success, false
}

var (
	ErrLayerNotPresent     = &ResultError{Op: "driver", Code: ErrorLayerNotPresent}
	ErrExtensionNotPresent = &ResultError{Op: "driver", Code: ErrorExtensionNotPresent}
	ErrIncompatibleDriver  = &ResultError{Op: "driver", Code: ErrorIncompatibleDriver}
)
