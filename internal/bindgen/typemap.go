package bindgen

import (
	"regexp"
	"strings"

	"github.com/vkngwrapper/vkinit/internal/registry"
)

// scalar holds the Go and cgo spellings of a C builtin.
type scalar struct {
	goName string
	cName  string
}

var scalars = map[string]scalar{
	"void":     {"", "void"},
	"char":     {"byte", "C.char"},
	"float":    {"float32", "C.float"},
	"double":   {"float64", "C.double"},
	"int":      {"int32", "C.int"},
	"int8_t":   {"int8", "C.int8_t"},
	"uint8_t":  {"uint8", "C.uint8_t"},
	"int16_t":  {"int16", "C.int16_t"},
	"uint16_t": {"uint16", "C.uint16_t"},
	"int32_t":  {"int32", "C.int32_t"},
	"uint32_t": {"uint32", "C.uint32_t"},
	"int64_t":  {"int64", "C.int64_t"},
	"uint64_t": {"uint64", "C.uint64_t"},
	"size_t":   {"uint", "C.size_t"},
}

// IsScalar reports whether name is a C builtin with a fixed Go spelling.
func IsScalar(name string) bool {
	_, ok := scalars[name]
	return ok
}

// typeMapper spells declarations in Go and in cgo.
type typeMapper struct {
	names     *nameTable
	overrides map[string]string
	// structTags holds external types that are only ever referenced as
	// "struct name", which cgo spells C.struct_name.
	structTags map[string]struct{}
}

// goBase spells a bare type name.
func (m *typeMapper) goBase(name string) string {
	if o, ok := m.overrides[name]; ok {
		return o
	}
	if s, ok := scalars[name]; ok {
		return s.goName
	}
	if n, ok := m.names.lookup(name); ok {
		return n
	}
	return m.names.namer.TypeName(name)
}

// cBase spells a bare type name for cgo.
func (m *typeMapper) cBase(name string) string {
	if s, ok := scalars[name]; ok {
		return s.cName
	}
	if _, ok := m.structTags[name]; ok {
		return "C.struct_" + name
	}
	return "C." + name
}

// arrayPrefix renders array dimensions; enum dimensions refer to the Go
// constant.
func (m *typeMapper) arrayPrefix(d *registry.Decl) string {
	var b strings.Builder
	for _, dim := range d.ArrayDims {
		if n, ok := m.names.lookup(dim); ok {
			dim = n
		}
		b.WriteString("[" + dim + "]")
	}
	return b.String()
}

// goType spells a member or parameter. The first pointer level of void
// becomes unsafe.Pointer; T* name[N] is an array of pointers.
func (m *typeMapper) goType(d *registry.Decl) string {
	depth := d.PointerDepth()
	base := m.goBase(d.Type)
	if d.Type == "void" && depth > 0 {
		base = "unsafe.Pointer"
		depth--
	}
	return m.arrayPrefix(d) + strings.Repeat("*", depth) + base
}

// paramGoType spells a parameter. Array parameters decay to a pointer to
// the array.
func (m *typeMapper) paramGoType(d *registry.Decl) string {
	if len(d.ArrayDims) > 0 {
		return "*" + m.goType(d)
	}
	return m.goType(d)
}

// cType spells the cgo type a parameter is passed as. It is empty for a
// plain void.
func (m *typeMapper) cType(d *registry.Decl) string {
	depth := d.PointerDepth()
	if len(d.ArrayDims) > 0 {
		depth++
	}
	if d.Type == "void" {
		if depth == 0 {
			return ""
		}
		return strings.Repeat("*", depth-1) + "unsafe.Pointer"
	}
	return strings.Repeat("*", depth) + m.cBase(d.Type)
}

var (
	notU64     = regexp.MustCompile(`~(\d+)ULL`)
	notU32     = regexp.MustCompile(`~(\d+)U`)
	floatLit   = regexp.MustCompile(`(\d+\.\d*)[fF]\b`)
	intSuffix  = regexp.MustCompile(`\b(\d+)[uU]?[lL]{1,2}\b|\b(\d+)[uU]\b`)
	outerParen = regexp.MustCompile(`^\((.*)\)$`)
)

// constExpr turns a registry constant value into a Go constant expression:
// (~0U) is ^uint32(0) and 1000.0F is 1000.0.
func constExpr(value string) string {
	v := strings.TrimSpace(value)
	if m := outerParen.FindStringSubmatch(v); m != nil {
		v = m[1]
	}
	v = notU64.ReplaceAllString(v, "^uint64($1)")
	v = notU32.ReplaceAllString(v, "^uint32($1)")
	v = floatLit.ReplaceAllString(v, "$1")
	v = intSuffix.ReplaceAllString(v, "$1$2")
	return v
}
