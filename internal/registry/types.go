// Package registry decodes the Vulkan XML API registry (vk.xml) and selects
// the declarations one binding run needs.
package registry

import (
	"strconv"
	"strings"
)

// Category is the category attribute of a <type> element. External types
// such as uint32_t or platform headers have no category.
type Category string

const (
	CategoryNone        Category = ""
	CategoryInclude     Category = "include"
	CategoryDefine      Category = "define"
	CategoryBasetype    Category = "basetype"
	CategoryHandle      Category = "handle"
	CategoryEnum        Category = "enum"
	CategoryBitmask     Category = "bitmask"
	CategoryFuncpointer Category = "funcpointer"
	CategoryStruct      Category = "struct"
	CategoryUnion       Category = "union"
)

// GroupKind is the type attribute of an <enums> element.
type GroupKind string

const (
	GroupConstants GroupKind = "constants"
	GroupEnum      GroupKind = "enum"
	GroupBitmask   GroupKind = "bitmask"
)

// APIConstants is the name of the <enums> block holding the API constants.
const APIConstants = "API Constants"

type Platform struct {
	Name    string `xml:"name,attr"`
	Protect string `xml:"protect,attr"`
	Comment string `xml:"comment,attr"`
}

type Tag struct {
	Name    string `xml:"name,attr"`
	Author  string `xml:"author,attr"`
	Contact string `xml:"contact,attr"`
}

// Type is one <type> element.
type Type struct {
	Name          string
	Category      Category
	Alias         string
	Requires      string
	BitValues     string
	Parent        string
	StructExtends string
	ObjTypeEnum   string
	ReturnedOnly  bool
	API           string
	Deprecated    string
	Comment       string

	// Inner is the first nested <type> of a define, basetype, handle or
	// bitmask: uint32_t, VK_DEFINE_HANDLE, VkFlags and so on.
	Inner string
	// Pointer is set when a basetype typedefs a pointer (typedef void* X).
	Pointer bool
	// Refs lists every nested <type> in document order. Old style
	// funcpointers carry their parameter types only here.
	Refs []string

	Members []*Decl
	Proto   *Decl
	Params  []*Decl

	// Text is the element's character data with markup stripped.
	Text string
}

// Dispatchable reports whether a handle is pointer sized on every platform.
func (t *Type) Dispatchable() bool {
	return t.Inner == "VK_DEFINE_HANDLE"
}

// MembersFor returns the members that apply to api.
func (t *Type) MembersFor(api string) []*Decl {
	out := make([]*Decl, 0, len(t.Members))
	for _, m := range t.Members {
		if SupportsAPI(m.API, api) {
			out = append(out, m)
		}
	}
	return out
}

// Decl is a <member>, <param> or <proto>: a C declarator split into parts.
type Decl struct {
	Name string
	Type string

	Const  bool
	Struct bool
	// Pointers holds one entry per indirection level, outermost last. An
	// entry is true when that pointer is itself const.
	Pointers []bool
	// ArrayDims holds literal sizes or API constant names.
	ArrayDims []string
	BitWidth  int

	Optional   string
	Len        string
	AltLen     string
	Values     string
	Selector   string
	API        string
	Deprecated string
	ExternSync string
	Comment    string
}

func (d *Decl) PointerDepth() int {
	return len(d.Pointers)
}

// CString renders the declarator back into C, which is handy for comments
// and error messages.
func (d *Decl) CString() string {
	var b strings.Builder
	if d.Const {
		b.WriteString("const ")
	}
	if d.Struct {
		b.WriteString("struct ")
	}
	b.WriteString(d.Type)
	for _, c := range d.Pointers {
		b.WriteString("*")
		if c {
			b.WriteString(" const")
		}
	}
	if d.Name != "" {
		b.WriteString(" ")
		b.WriteString(d.Name)
	}
	for _, dim := range d.ArrayDims {
		b.WriteString("[" + dim + "]")
	}
	if d.BitWidth > 0 {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(d.BitWidth))
	}
	return b.String()
}

// EnumGroup is one <enums> element.
type EnumGroup struct {
	Name     string
	Kind     GroupKind
	BitWidth int
	Comment  string
	Values   []*EnumValue
}

// EnumValue is an <enum> inside <enums> or inside a <require> block.
type EnumValue struct {
	Name       string `xml:"name,attr"`
	Value      string `xml:"value,attr"`
	BitPos     string `xml:"bitpos,attr"`
	Alias      string `xml:"alias,attr"`
	Type       string `xml:"type,attr"`
	Extends    string `xml:"extends,attr"`
	ExtNumber  string `xml:"extnumber,attr"`
	Offset     string `xml:"offset,attr"`
	Dir        string `xml:"dir,attr"`
	Protect    string `xml:"protect,attr"`
	API        string `xml:"api,attr"`
	Deprecated string `xml:"deprecated,attr"`
	Comment    string `xml:"comment,attr"`
}

// IsReference reports whether the element only names an existing value.
func (e *EnumValue) IsReference() bool {
	return e.Value == "" && e.BitPos == "" && e.Alias == "" && e.Offset == ""
}

type Command struct {
	Name         string
	Alias        string
	API          string
	SuccessCodes string
	ErrorCodes   string
	Comment      string
	Deprecated   string

	Proto  *Decl
	Params []*Decl
}

// ParamsFor returns the parameters that apply to api.
func (c *Command) ParamsFor(api string) []*Decl {
	out := make([]*Decl, 0, len(c.Params))
	for _, p := range c.Params {
		if SupportsAPI(p.API, api) {
			out = append(out, p)
		}
	}
	return out
}

// Feature is a core API version.
type Feature struct {
	API      string
	Name     string
	Number   string
	Depends  string
	Comment  string
	Requires []*Require
	Removes  []*Require
}

type Extension struct {
	Name         string
	Number       int
	Type         string
	Supported    string
	Platform     string
	Depends      string
	PromotedTo   string
	DeprecatedBy string
	ObsoletedBy  string
	Author       string
	Provisional  bool
	Requires     []*Require
	Removes      []*Require
}

// Require is a <require> or <remove> block.
type Require struct {
	API      string
	Depends  string
	Comment  string
	Types    []string
	Enums    []*EnumValue
	Commands []string
}

// SupportsAPI reports whether a comma separated api attribute includes api.
// An empty attribute applies to every API.
func SupportsAPI(attr, api string) bool {
	if attr == "" {
		return true
	}
	for _, a := range strings.Split(attr, ",") {
		if strings.TrimSpace(a) == api {
			return true
		}
	}
	return false
}
