package bindgen

import (
	"go/token"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// initialisms stay upper case inside constant names.
var initialisms = map[string]struct{}{
	"API":  {},
	"ID":   {},
	"UUID": {},
	"LUID": {},
}

// reservedParams are the identifiers generated wrappers refer to. Parameters
// spelled like them, or like a keyword, get a trailing underscore.
var reservedParams = map[string]struct{}{
	"unsafe": {}, "strconv": {}, "ret": {},
}

// Namer maps registry names to Go identifiers.
type Namer struct {
	tags map[string]struct{}
}

// NewNamer builds a Namer that keeps the given vendor tags upper case.
func NewNamer(tags []string) *Namer {
	n := &Namer{tags: make(map[string]struct{}, len(tags))}
	for _, t := range tags {
		n.tags[t] = struct{}{}
	}
	return n
}

// TypeName maps a C type name: VkInstanceCreateInfo becomes
// InstanceCreateInfo and PFN_vkVoidFunction becomes PfnVoidFunction.
// Other names keep their spelling with the first letter exported.
func (n *Namer) TypeName(name string) string {
	switch {
	case strings.HasPrefix(name, "PFN_vk"):
		return "Pfn" + name[len("PFN_vk"):]
	case strings.HasPrefix(name, "Vk") && len(name) > 2:
		return name[2:]
	}
	return exported(name)
}

// FuncName maps a command name: vkCreateInstance becomes CreateInstance.
func (n *Namer) FuncName(name string) string {
	return exported(strings.TrimPrefix(name, "vk"))
}

// ConstName maps an upper snake case name such as VK_ERROR_SURFACE_LOST_KHR
// to ErrorSurfaceLostKHR. Vendor tags at either end and a few initialisms
// keep their case; words holding digits are kept verbatim; adjacent numbers
// are separated by an underscore (VK_API_VERSION_1_0 is APIVersion1_0).
func (n *Namer) ConstName(name string) string {
	words := strings.Split(strings.TrimPrefix(name, "VK_"), "_")

	var b strings.Builder
	prevDigit := false
	for i, w := range words {
		if w == "" {
			continue
		}
		startsDigit := w[0] >= '0' && w[0] <= '9'
		if prevDigit && startsDigit {
			b.WriteByte('_')
		}
		prevDigit = w[len(w)-1] >= '0' && w[len(w)-1] <= '9'

		_, tag := n.tags[w]
		_, initialism := initialisms[w]
		switch {
		case tag && (i == 0 || i == len(words)-1), initialism, strings.ContainsAny(w, "0123456789"):
			b.WriteString(w)
		default:
			b.WriteString(w[:1])
			b.WriteString(strings.ToLower(w[1:]))
		}
	}

	out := b.String()
	if out == "" || !unicode.IsLetter(rune(out[0])) {
		out = "V" + out
	}
	return out
}

// MaxEnumName names the sentinel appended to an enum: VkResult gives
// ResultMaxEnum and VkColorSpaceKHR gives ColorSpaceMaxEnumKHR.
func (n *Namer) MaxEnumName(group string) string {
	base := n.TypeName(group)
	tag := n.vendorSuffix(base)
	return strings.TrimSuffix(base, tag) + "MaxEnum" + tag
}

func (n *Namer) vendorSuffix(name string) string {
	best := ""
	for t := range n.tags {
		if len(t) > len(best) && strings.HasSuffix(name, t) {
			best = t
		}
	}
	return best
}

// MemberName exports a struct member: sType becomes SType.
func (n *Namer) MemberName(name string) string {
	return exported(name)
}

// ParamName keeps a parameter name but moves it off Go keywords and the
// identifiers wrappers depend on.
func (n *Namer) ParamName(name string) string {
	if token.IsKeyword(name) {
		return name + "_"
	}
	if _, ok := reservedParams[name]; ok {
		return name + "_"
	}
	return name
}

func exported(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// nameKind separates the identifier spaces so collisions get a suffix that
// says what lost.
type nameKind int

const (
	kindType nameKind = iota
	kindConst
	kindFunc
)

var collisionSuffix = map[nameKind]string{
	kindType:  "Type",
	kindConst: "Value",
	kindFunc:  "Func",
}

// nameTable assigns every registry name exactly one package level Go
// identifier. It is filled before rendering and read-only afterwards.
type nameTable struct {
	namer *Namer
	byC   map[string]string
	taken map[string]string
}

func newNameTable(namer *Namer) *nameTable {
	return &nameTable{
		namer: namer,
		byC:   make(map[string]string),
		taken: make(map[string]string),
	}
}

// reserve claims goName for cName. Names already claimed by another C name
// get the kind suffix and, if still taken, a counter.
func (t *nameTable) reserve(cName, goName string, kind nameKind) string {
	if got, ok := t.byC[cName]; ok {
		return got
	}
	candidate := goName
	if owner, ok := t.taken[candidate]; ok && owner != cName {
		candidate = goName + collisionSuffix[kind]
		for i := 2; ; i++ {
			if _, ok := t.taken[candidate]; !ok {
				break
			}
			candidate = goName + collisionSuffix[kind] + strconv.Itoa(i)
		}
	}
	t.byC[cName] = candidate
	t.taken[candidate] = cName
	return candidate
}

func (t *nameTable) addType(cName string) string {
	return t.reserve(cName, t.namer.TypeName(cName), kindType)
}

func (t *nameTable) addConst(cName string) string {
	return t.reserve(cName, t.namer.ConstName(cName), kindConst)
}

func (t *nameTable) addFunc(cName string) string {
	return t.reserve(cName, t.namer.FuncName(cName), kindFunc)
}

// lookup returns the Go name of cName, if one was reserved.
func (t *nameTable) lookup(cName string) (string, bool) {
	n, ok := t.byC[cName]
	return n, ok
}

// sortedGoNames is used by tests and debug logging.
func (t *nameTable) sortedGoNames() []string {
	out := make([]string, 0, len(t.taken))
	for n := range t.taken {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
