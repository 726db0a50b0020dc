package bindgen

import (
	"bytes"
	"sort"
	"text/template"

	"github.com/cockroachdb/errors"
)

// preambleDefines are the header macros the fixed preamble stands in for.
var preambleDefines = map[string]string{
	"VK_NULL_HANDLE":                    "NullHandle",
	"VK_MAKE_API_VERSION":               "MakeAPIVersion",
	"VK_API_VERSION_VARIANT":            "APIVersionVariant",
	"VK_API_VERSION_MAJOR":              "APIVersionMajor",
	"VK_API_VERSION_MINOR":              "APIVersionMinor",
	"VK_API_VERSION_PATCH":              "APIVersionPatch",
	"VK_DEFINE_HANDLE":                  "",
	"VK_DEFINE_NON_DISPATCHABLE_HANDLE": "",
	"VK_USE_64_BIT_PTR_DEFINES":         "",
	// Deprecated forms with no Go counterpart.
	"VK_MAKE_VERSION":  "",
	"VK_VERSION_MAJOR": "",
	"VK_VERSION_MINOR": "",
	"VK_VERSION_PATCH": "",
	"VK_API_VERSION":   "",
}

var preambleTmpl = template.Must(template.New("preamble").Parse(`// Code generated by vkbindgen from {{.Source}}; DO NOT EDIT.

package {{.Package}}

/*
{{- range .CFlags}}
#cgo CFLAGS: {{.}}
{{- end}}
{{- range .LDFlags}}
#cgo {{.GOOS}} LDFLAGS: {{.Flag}}
{{- end}}
{{- range .Protects}}
#define {{.}}
{{- end}}
#include <vulkan/vulkan.h>
*/
import "C"

import (
	"strconv"
	"unsafe"
)

// NullHandle is the value of a handle that refers to no object.
const NullHandle = 0

// MakeAPIVersion packs a version number the way the loader expects it.
func MakeAPIVersion(variant, major, minor, patch uint32) uint32 {
	return variant<<29 | major<<22 | minor<<12 | patch
}

func APIVersionVariant(version uint32) uint32 {
	return version >> 29
}

func APIVersionMajor(version uint32) uint32 {
	return (version >> 22) & 0x7F
}

func APIVersionMinor(version uint32) uint32 {
	return (version >> 12) & 0x3FF
}

func APIVersionPatch(version uint32) uint32 {
	return version & 0xFFF
}
`))

type ldflag struct {
	GOOS string
	Flag string
}

type preambleData struct {
	Source   string
	Package  string
	CFlags   []string
	LDFlags  []ldflag
	Protects []string
}

func renderPreamble(opts Options, protects []string) ([]byte, error) {
	data := preambleData{
		Source:   opts.Source,
		Package:  opts.Package,
		CFlags:   opts.CFlags,
		Protects: protects,
	}
	for goos, flag := range opts.LDFlags {
		data.LDFlags = append(data.LDFlags, ldflag{GOOS: goos, Flag: flag})
	}
	sort.Slice(data.LDFlags, func(i, j int) bool { return data.LDFlags[i].GOOS < data.LDFlags[j].GOOS })

	var buf bytes.Buffer
	if err := preambleTmpl.Execute(&buf, data); err != nil {
		return nil, errors.Wrap(err, "render preamble")
	}
	return buf.Bytes(), nil
}
