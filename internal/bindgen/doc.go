// Package bindgen renders a registry selection as a single Go source file:
// typed constants for enums and bitmasks, struct layouts that mirror the C
// headers, and cgo wrappers for every selected command.
//
// Rendering is split per block (one core version or extension). Names are
// resolved up front so blocks can be rendered concurrently and joined in
// selection order.
package bindgen
