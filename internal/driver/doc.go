// Package driver describes the small slice of the native Vulkan API this
// module touches: bootstrapping the loader, enumerating layers and
// extensions, creating and destroying one instance, and the optional debug
// messenger and presentation surface hanging off it.
//
// The interfaces here are implemented against the real driver by package
// vkng and by an in-memory fake in package drivertest. Nothing in this
// package needs cgo.
package driver
