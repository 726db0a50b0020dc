package bindgen

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vkinit/internal/ctxlog"
	"github.com/vkngwrapper/vkinit/internal/registry"
)

var (
	headerVersionRe = regexp.MustCompile(`#define\s+VK_HEADER_VERSION\s+(\d+)`)
	makeVersionRe   = regexp.MustCompile(`VK_MAKE_API_VERSION\(\s*(\d+),\s*(\d+),\s*(\d+),\s*(\w+)\s*\)`)
)

// maxEnumKey is the name table key of a group's sentinel.
func maxEnumKey(group string) string {
	return group + "_MAX_ENUM"
}

// constructorKey is the name table key of a struct's NewX function.
func constructorKey(typeName string) string {
	return "new " + typeName
}

// blockStats counts what one block contributed, for logging.
type blockStats struct {
	types     int
	constants int
	values    int
	commands  int
}

// renderer turns blocks into Go source. It only reads shared state, so
// blocks can be rendered concurrently.
type renderer struct {
	sel    *registry.Selection
	opts   Options
	names  *nameTable
	types  *typeMapper
	sTypes map[string]struct{}
}

type writer struct {
	bytes.Buffer
}

func (w *writer) line(format string, args ...any) {
	fmt.Fprintf(&w.Buffer, format, args...)
	w.WriteByte('\n')
}

// comment writes text as a line comment, one line per input line.
func (w *writer) comment(text string) {
	for _, l := range strings.Split(strings.TrimSpace(text), "\n") {
		l = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "//"))
		if l == "" {
			w.line("//")
			continue
		}
		w.line("// %s", l)
	}
}

// doc writes a doc comment made of the registry comment and the
// deprecation note.
func (w *writer) doc(comment, deprecated string) {
	if comment != "" {
		w.comment(comment)
	}
	if deprecated != "" {
		if comment != "" {
			w.line("//")
		}
		w.line("// Deprecated: %s", deprecated)
	}
}

// deprecation explains a deprecated attribute.
func deprecation(name, reason string) (string, error) {
	switch reason {
	case "":
		return "", nil
	case "aliased":
		return name + " is a deprecated alias.", nil
	case "ignored":
		return name + " is deprecated and should not be used.", nil
	case "true":
		return name + " is deprecated, but no reason was given in the registry.", nil
	}
	return "", errors.Newf("%s has an unknown deprecated value %q", name, reason)
}

func trailing(comment string) string {
	comment = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(comment), "//"))
	if comment == "" {
		return ""
	}
	return " // " + strings.Join(strings.Fields(comment), " ")
}

func (r *renderer) goName(cName string) string {
	if n, ok := r.names.lookup(cName); ok {
		return n
	}
	return r.types.goBase(cName)
}

func (r *renderer) overridden(name string) bool {
	_, ok := r.opts.Overrides[name]
	return ok
}

func (r *renderer) renderBlock(ctx context.Context, b *registry.Block) ([]byte, blockStats, error) {
	logger := ctxlog.FromContext(ctx)
	var (
		w     writer
		stats blockStats
	)

	w.line("")
	switch {
	case b.Kind == registry.BlockFeature:
		w.line("// %s", b.Name)
	case b.Extension.Type != "":
		w.line("// %s is %s extension %d.", b.Name, b.Extension.Type, b.Extension.Number)
	default:
		w.line("// %s is extension %d.", b.Name, b.Extension.Number)
	}
	if b.Protect != "" {
		w.line("// Requires %s.", b.Protect)
	}
	w.line("")

	sections := []func(*writer, *registry.Block, *blockStats) error{
		r.defines,
		r.basetypes,
		r.externals,
		r.handles,
		r.constants,
		r.enums,
		r.bitmasks,
		r.funcpointers,
		r.structs,
		r.unions,
		r.commands,
		r.aliases,
	}
	for _, section := range sections {
		if err := section(&w, b, &stats); err != nil {
			return nil, stats, errors.Wrapf(err, "block %s", b.Name)
		}
	}

	logger.Debug("Block rendered.",
		"block", b.Name,
		"types", stats.types,
		"constants", stats.constants,
		"values", stats.values,
		"commands", stats.commands)
	return w.Bytes(), stats, nil
}

// typesOf returns the block's non-alias types of one category that are not
// overridden.
func (r *renderer) typesOf(b *registry.Block, category registry.Category) []*registry.Type {
	var out []*registry.Type
	for _, t := range b.Types {
		if t.Category == category && t.Alias == "" && !r.overridden(t.Name) {
			out = append(out, t)
		}
	}
	return out
}

func (r *renderer) defines(w *writer, b *registry.Block, stats *blockStats) error {
	var lines []string
	for _, t := range r.typesOf(b, registry.CategoryDefine) {
		goName, emitted := r.names.lookup(t.Name)
		if _, ok := preambleDefines[t.Name]; ok || !emitted {
			continue
		}

		switch t.Name {
		case "VK_HEADER_VERSION":
			m := headerVersionRe.FindStringSubmatch(t.Text)
			if m == nil {
				return errors.Newf("define %s: no version number in %q", t.Name, t.Text)
			}
			lines = append(lines, fmt.Sprintf("%s uint32 = %s", goName, m[1]))
		default:
			m := makeVersionRe.FindStringSubmatch(t.Text)
			if m == nil {
				return errors.Newf("define %s: no version in %q", t.Name, t.Text)
			}
			patch := m[4]
			if n, ok := r.names.lookup(patch); ok {
				patch = n
			}
			line := fmt.Sprintf("%s uint32 = %s", goName, versionExpr(m[1], m[2], m[3], patch))
			if patch == m[4] {
				line += fmt.Sprintf(" // %s.%s.%s", m[2], m[3], m[4])
			}
			lines = append(lines, line)
		}
		stats.constants++
	}

	if len(lines) == 0 {
		return nil
	}
	w.line("const (")
	for _, l := range lines {
		w.line("%s", l)
	}
	w.line(")")
	w.line("")
	return nil
}

// versionExpr spells a packed version as a constant expression, leaving
// out zero fields.
func versionExpr(variant, major, minor, patch string) string {
	var terms []string
	for _, f := range []struct{ v, shift string }{{variant, "<<29"}, {major, "<<22"}, {minor, "<<12"}, {patch, ""}} {
		if f.v != "0" {
			terms = append(terms, f.v+f.shift)
		}
	}
	if len(terms) == 0 {
		return "0"
	}
	return strings.Join(terms, " | ")
}

// emittableDefine reports whether a define becomes a Go constant.
func emittableDefine(t *registry.Type) bool {
	if _, ok := preambleDefines[t.Name]; ok {
		return false
	}
	if t.Name == "VK_HEADER_VERSION" {
		return headerVersionRe.MatchString(t.Text)
	}
	return strings.HasPrefix(t.Name, "VK_API_VERSION_") || t.Name == "VK_HEADER_VERSION_COMPLETE"
}

func (r *renderer) basetypes(w *writer, b *registry.Block, stats *blockStats) error {
	for _, t := range r.typesOf(b, registry.CategoryBasetype) {
		dep, err := deprecation(t.Name, t.Deprecated)
		if err != nil {
			return err
		}
		name := r.goName(t.Name)

		switch {
		case t.Inner == "":
			w.doc(name+" is an opaque platform type.", dep)
			w.line("type %s struct{}", name)
		case t.Pointer:
			w.doc(t.Comment, dep)
			w.line("type %s unsafe.Pointer", name)
		default:
			w.doc(t.Comment, dep)
			w.line("type %s %s", name, r.types.goBase(t.Inner))
		}
		w.line("")
		stats.types++
	}
	return nil
}

// externals are types defined by platform or codec headers. They alias the
// cgo type.
func (r *renderer) externals(w *writer, b *registry.Block, stats *blockStats) error {
	for _, t := range r.typesOf(b, registry.CategoryNone) {
		if IsScalar(t.Name) {
			continue
		}
		w.line("type %s = %s", r.goName(t.Name), r.types.cBase(t.Name))
		w.line("")
		stats.types++
	}
	return nil
}

func (r *renderer) handles(w *writer, b *registry.Block, stats *blockStats) error {
	for _, t := range r.typesOf(b, registry.CategoryHandle) {
		dep, err := deprecation(t.Name, t.Deprecated)
		if err != nil {
			return err
		}
		name := r.goName(t.Name)

		kind, underlying := "non-dispatchable", "uint64"
		if t.Dispatchable() {
			kind, underlying = "dispatchable", "uintptr"
		}
		summary := fmt.Sprintf("%s is a %s handle", name, kind)
		if t.Parent != "" {
			summary += " owned by " + r.goName(strings.Split(t.Parent, ",")[0])
		}
		w.doc(summary+".", dep)
		w.line("type %s %s", name, underlying)
		w.line("")
		stats.types++
	}
	return nil
}

func (r *renderer) constants(w *writer, b *registry.Block, stats *blockStats) error {
	if len(b.Constants) == 0 {
		return nil
	}

	w.line("const (")
	for _, ev := range b.Constants {
		dep, err := deprecation(ev.Name, ev.Deprecated)
		if err != nil {
			return err
		}
		if dep != "" {
			w.line("// Deprecated: %s", dep)
		}

		name := r.goName(ev.Name)
		switch {
		case ev.Alias != "":
			w.line("%s = %s%s", name, r.goName(ev.Alias), trailing(ev.Comment))
		case ev.IsString():
			w.line("%s = %s%s", name, ev.Value, trailing(ev.Comment))
		case ev.Type != "":
			w.line("%s %s = %s%s", name, r.types.goBase(ev.Type), constExpr(ev.Value), trailing(ev.Comment))
		default:
			w.line("%s = %s%s", name, constExpr(ev.Value), trailing(ev.Comment))
		}
		stats.constants++
	}
	w.line(")")
	w.line("")
	return nil
}

func (r *renderer) enums(w *writer, b *registry.Block, stats *blockStats) error {
	for _, t := range r.typesOf(b, registry.CategoryEnum) {
		g, ok := r.sel.Group(t.Name)
		if !ok {
			return errors.Newf("enum %s has no selected values", t.Name)
		}
		if err := r.group(w, t, g, stats); err != nil {
			return err
		}
		stats.types++
	}
	return nil
}

func (r *renderer) group(w *writer, t *registry.Type, g *registry.Group, stats *blockStats) error {
	dep, err := deprecation(t.Name, t.Deprecated)
	if err != nil {
		return err
	}
	name := r.goName(t.Name)

	underlying := "int32"
	format := func(v int64) string { return strconv.FormatInt(v, 10) }
	if g.Kind == registry.GroupBitmask {
		underlying = "uint32"
		format = func(v int64) string { return fmt.Sprintf("0x%08X", uint32(v)) }
		if g.BitWidth == 64 {
			underlying = "uint64"
			format = func(v int64) string { return fmt.Sprintf("0x%016X", uint64(v)) }
		}
	}

	summary := t.Comment
	if rg, ok := r.sel.Registry.Group(t.Name); ok && summary == "" {
		summary = rg.Comment
	}
	w.doc(summary, dep)
	w.line("type %s %s", name, underlying)
	w.line("")

	sentinel := g.BitWidth != 64
	if len(g.Values) > 0 || sentinel {
		w.line("const (")
		for _, v := range g.Values {
			vdep, err := deprecation(v.Name, v.Deprecated)
			if err != nil {
				return err
			}
			if vdep != "" {
				w.line("// Deprecated: %s", vdep)
			}
			if v.Alias != "" {
				w.line("%s %s = %s%s", r.goName(v.Name), name, r.goName(v.Alias), trailing(v.Comment))
			} else {
				w.line("%s %s = %s%s", r.goName(v.Name), name, format(v.Value), trailing(v.Comment))
			}
			stats.values++
		}
		if sentinel {
			w.line("%s %s = 0x7FFFFFFF", r.goName(maxEnumKey(t.Name)), name)
		}
		w.line(")")
		w.line("")
	}

	if r.opts.Stringers {
		r.stringer(w, t.Name, name, underlying, g)
	}
	return nil
}

// stringer writes a String method returning the registry name. Aliases and
// values repeating an earlier one are left out of the switch.
func (r *renderer) stringer(w *writer, cName, name, underlying string, g *registry.Group) {
	seen := make(map[int64]struct{})
	var cases []*registry.Value
	for _, v := range g.Values {
		if v.Alias != "" {
			continue
		}
		if _, dup := seen[v.Value]; dup {
			continue
		}
		seen[v.Value] = struct{}{}
		cases = append(cases, v)
	}

	w.line("func (v %s) String() string {", name)
	if len(cases) > 0 {
		w.line("switch v {")
		for _, v := range cases {
			w.line("case %s:", r.goName(v.Name))
			w.line("return %q", v.Name)
		}
		w.line("}")
	}
	if underlying == "int32" {
		w.line(`return "%s(" + strconv.FormatInt(int64(v), 10) + ")"`, cName)
	} else {
		w.line(`return "%s(" + strconv.FormatUint(uint64(v), 10) + ")"`, cName)
	}
	w.line("}")
	w.line("")
}

func (r *renderer) bitmasks(w *writer, b *registry.Block, stats *blockStats) error {
	for _, t := range r.typesOf(b, registry.CategoryBitmask) {
		dep, err := deprecation(t.Name, t.Deprecated)
		if err != nil {
			return err
		}
		name := r.goName(t.Name)

		bits := t.Requires
		if t.BitValues != "" {
			bits = t.BitValues
		}
		summary := t.Comment
		if bits != "" && r.sel.HasType(bits) {
			summary = fmt.Sprintf("%s is a set of %s.", name, r.goName(bits))
		}
		w.doc(summary, dep)
		w.line("type %s %s", name, r.types.goBase(t.Inner))
		w.line("")
		stats.types++
	}
	return nil
}

func (r *renderer) funcpointers(w *writer, b *registry.Block, stats *blockStats) error {
	for _, t := range r.typesOf(b, registry.CategoryFuncpointer) {
		dep, err := deprecation(t.Name, t.Deprecated)
		if err != nil {
			return err
		}
		name := r.goName(t.Name)

		w.line("// %s holds a C function pointer:", name)
		w.line("//")
		w.line("//\t%s", funcpointerSignature(t))
		if dep != "" {
			w.line("//")
			w.line("// Deprecated: %s", dep)
		}
		w.line("type %s uintptr", name)
		w.line("")
		stats.types++
	}
	return nil
}

// funcpointerSignature renders the C typedef on one line.
func funcpointerSignature(t *registry.Type) string {
	if t.Proto == nil {
		sig := strings.Join(strings.Fields(t.Text), " ")
		sig = strings.ReplaceAll(sig, "( ", "(")
		return strings.ReplaceAll(sig, " )", ")")
	}

	ret := *t.Proto
	ret.Name = ""
	params := make([]string, 0, len(t.Params))
	for _, p := range t.Params {
		params = append(params, p.CString())
	}
	if len(params) == 0 {
		params = append(params, "void")
	}
	return fmt.Sprintf("typedef %s (VKAPI_PTR *%s)(%s);", ret.CString(), t.Name, strings.Join(params, ", "))
}

type field struct {
	name       string
	typ        string
	comment    string
	deprecated string
}

// structFields lays out the members for the selected API. Runs of bitfields
// share one uint32, the way C compilers pack them.
func (r *renderer) structFields(t *registry.Type) ([]field, error) {
	members := t.MembersFor(r.sel.API)
	var out []field
	for i := 0; i < len(members); {
		m := members[i]
		if m.BitWidth == 0 {
			dep, err := deprecation(m.Name, m.Deprecated)
			if err != nil {
				return nil, errors.Wrapf(err, "struct %s", t.Name)
			}
			out = append(out, field{
				name:       r.names.namer.MemberName(m.Name),
				typ:        r.types.goType(m),
				comment:    m.Comment,
				deprecated: dep,
			})
			i++
			continue
		}

		var names, parts []string
		width := 0
		for i < len(members) && members[i].BitWidth > 0 && width+members[i].BitWidth <= 32 {
			names = append(names, r.names.namer.MemberName(members[i].Name))
			parts = append(parts, members[i].Name+":"+strconv.Itoa(members[i].BitWidth))
			width += members[i].BitWidth
			i++
		}
		if len(names) == 0 {
			return nil, errors.Newf("struct %s: bitfield %s is wider than 32 bits", t.Name, m.Name)
		}
		out = append(out, field{
			name:    strings.Join(names, "And"),
			typ:     "uint32",
			comment: strings.Join(parts, ", "),
		})
	}
	return out, nil
}

func (r *renderer) structs(w *writer, b *registry.Block, stats *blockStats) error {
	for _, t := range r.typesOf(b, registry.CategoryStruct) {
		dep, err := deprecation(t.Name, t.Deprecated)
		if err != nil {
			return err
		}
		fields, err := r.structFields(t)
		if err != nil {
			return err
		}
		name := r.goName(t.Name)

		summary := t.Comment
		if t.StructExtends != "" {
			var targets []string
			for _, s := range strings.Split(t.StructExtends, ",") {
				if r.sel.HasType(s) {
					targets = append(targets, r.goName(s))
				}
			}
			if len(targets) > 0 {
				summary = strings.TrimSpace(summary + "\n" + fmt.Sprintf("%s extends %s.", name, strings.Join(targets, ", ")))
			}
		}
		w.doc(summary, dep)
		w.line("type %s struct {", name)
		for _, f := range fields {
			if f.deprecated != "" {
				w.line("// Deprecated: %s", f.deprecated)
			}
			w.line("%s %s%s", f.name, f.typ, trailing(f.comment))
		}
		w.line("}")
		w.line("")

		if ctor, ok := r.constructor(t); ok {
			w.line("// %s returns a %s with SType set.", ctor, name)
			w.line("func %s() %s {", ctor, name)
			w.line("return %s{SType: %s}", name, r.goName(t.Members[0].Values))
			w.line("}")
			w.line("")
		}
		stats.types++
	}
	return nil
}

// constructor returns the NewX name for structs whose sType has a single
// selected value.
func (r *renderer) constructor(t *registry.Type) (string, bool) {
	if sTypeValue(t, r.sTypes) == "" {
		return "", false
	}
	return r.names.lookup(constructorKey(t.Name))
}

// sTypeValue returns the structure type value t is tagged with, if it has
// exactly one and that value is selected.
func sTypeValue(t *registry.Type, sTypes map[string]struct{}) string {
	if len(t.Members) == 0 {
		return ""
	}
	first := t.Members[0]
	if first.Name != "sType" || first.Values == "" || strings.Contains(first.Values, ",") {
		return ""
	}
	if _, ok := sTypes[first.Values]; !ok {
		return ""
	}
	return first.Values
}

func (r *renderer) unions(w *writer, b *registry.Block, stats *blockStats) error {
	for _, t := range r.typesOf(b, registry.CategoryUnion) {
		dep, err := deprecation(t.Name, t.Deprecated)
		if err != nil {
			return err
		}
		name := r.goName(t.Name)

		w.doc(t.Comment, dep)
		w.line("type %s struct {", name)
		for _, typ := range r.unionAligners(t) {
			w.line("_ [0]%s", typ)
		}
		w.line("raw [C.sizeof_%s]byte", t.Name)
		w.line("}")
		w.line("")
		for _, m := range t.MembersFor(r.sel.API) {
			typ := r.types.goType(m)
			w.line("// %s reinterprets the union as its %s member.", r.names.namer.MemberName(m.Name), m.Name)
			w.line("func (u *%s) %s() *%s {", name, r.names.namer.MemberName(m.Name), typ)
			w.line("return (*%s)(unsafe.Pointer(u))", typ)
			w.line("}")
			w.line("")
		}
		stats.types++
	}
	return nil
}

// unionAligners returns the distinct member types of a union. A zero length
// array of each gives the Go struct the alignment of its widest member, which
// cgo's byte array representation of C unions loses.
func (r *renderer) unionAligners(t *registry.Type) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range t.MembersFor(r.sel.API) {
		typ := r.types.goType(m)
		if _, ok := seen[typ]; ok {
			continue
		}
		seen[typ] = struct{}{}
		out = append(out, typ)
	}
	return out
}

func (r *renderer) commands(w *writer, b *registry.Block, stats *blockStats) error {
	if !r.opts.Commands {
		return nil
	}
	for _, c := range b.Commands {
		// The alias symbol may be missing from the loader; callers use the
		// promoted name.
		if c.Alias != "" {
			continue
		}
		if err := r.command(w, c); err != nil {
			return errors.Wrapf(err, "command %s", c.Name)
		}
		stats.commands++
	}
	return nil
}

func (r *renderer) command(w *writer, c *registry.Command) error {
	dep, err := deprecation(c.Name, c.Deprecated)
	if err != nil {
		return err
	}
	name := r.goName(c.Name)

	var (
		params []string
		args   []string
	)
	for _, p := range c.ParamsFor(r.sel.API) {
		pname := r.names.namer.ParamName(p.Name)
		params = append(params, pname+" "+r.types.paramGoType(p))

		ctype := r.types.cType(p)
		switch {
		case ctype == "unsafe.Pointer":
			args = append(args, pname)
		case p.PointerDepth() > 0 || len(p.ArrayDims) > 0:
			args = append(args, fmt.Sprintf("(%s)(unsafe.Pointer(%s))", ctype, pname))
		default:
			args = append(args, fmt.Sprintf("*(*%s)(unsafe.Pointer(&%s))", ctype, pname))
		}
	}

	ret := ""
	if c.Proto.Type != "void" || c.Proto.PointerDepth() > 0 {
		ret = r.types.goType(c.Proto)
	}

	summary := fmt.Sprintf("%s calls %s.", name, c.Name)
	if c.SuccessCodes != "" {
		summary += "\nSuccess codes: " + strings.ReplaceAll(c.SuccessCodes, ",", ", ") + "."
	}
	if c.ErrorCodes != "" {
		summary += "\nError codes: " + strings.ReplaceAll(c.ErrorCodes, ",", ", ") + "."
	}
	w.doc(summary, dep)

	call := fmt.Sprintf("C.%s(%s)", c.Name, strings.Join(args, ", "))
	if ret == "" {
		w.line("func %s(%s) {", name, strings.Join(params, ", "))
		w.line("%s", call)
	} else {
		w.line("func %s(%s) %s {", name, strings.Join(params, ", "), ret)
		w.line("ret := %s", call)
		w.line("return *(*%s)(unsafe.Pointer(&ret))", ret)
	}
	w.line("}")
	w.line("")
	return nil
}

func (r *renderer) aliases(w *writer, b *registry.Block, stats *blockStats) error {
	for _, t := range b.Types {
		if t.Alias == "" || r.overridden(t.Name) {
			continue
		}
		switch t.Category {
		case registry.CategoryDefine, registry.CategoryInclude, registry.CategoryNone:
			continue
		}
		dep, err := deprecation(t.Name, t.Deprecated)
		if err != nil {
			return err
		}
		w.doc("", dep)
		w.line("type %s = %s", r.goName(t.Name), r.types.goBase(t.Alias))
		w.line("")
		stats.types++
	}
	return nil
}
