package registry

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vkinit/internal/ctxlog"
)

// Options picks the part of the registry a binding run covers.
type Options struct {
	// API is matched against api and supported attributes. Default "vulkan".
	API string
	// MaxVersion names the newest core feature, e.g. VK_VERSION_1_3.
	MaxVersion string
	// Extensions limits the run to these extensions. Empty selects every
	// extension supported by API.
	Extensions []string
	Exclude    []string
	// Platforms enables platform specific extensions (xlib, win32, ...).
	Platforms []string
}

type BlockKind int

const (
	BlockFeature BlockKind = iota
	BlockExtension
)

// Block holds what one feature or extension contributes, in first-required
// order. A declaration appears in the first block that requires it.
type Block struct {
	Name      string
	Kind      BlockKind
	Feature   *Feature
	Extension *Extension
	// Protect is the platform macro guarding an extension, if any.
	Protect string

	Types     []*Type
	Constants []*EnumValue
	Commands  []*Command
}

// Value is a resolved member of an enumerated type.
type Value struct {
	Name       string
	Value      int64
	Alias      string
	Deprecated string
	Protect    string
	Comment    string
}

// Group is an enumerated type with the values of every selected block.
type Group struct {
	Name     string
	Kind     GroupKind
	BitWidth int
	Values   []*Value
}

// Selection is the closed set of declarations chosen for one run.
type Selection struct {
	API        string
	Registry   *Registry
	Features   []*Feature
	Extensions []*Extension
	Blocks     []*Block
	// Protects lists the platform macros of the selected extensions.
	Protects []string

	groups     map[string]*Group
	groupOrder []string
	types      map[string]*Block
	commands   map[string]struct{}
	constants  map[string]struct{}
	removed    map[string]struct{}
	enabled    map[string]struct{}
	pending    map[string][]*Value
}

// Group returns the resolved values of a selected enum or bitmask type.
func (s *Selection) Group(name string) (*Group, bool) {
	g, ok := s.groups[name]
	return g, ok
}

// Groups returns the selected groups in selection order.
func (s *Selection) Groups() []*Group {
	out := make([]*Group, 0, len(s.groupOrder))
	for _, name := range s.groupOrder {
		out = append(out, s.groups[name])
	}
	return out
}

// HasType reports whether name is part of the selection.
func (s *Selection) HasType(name string) bool {
	_, ok := s.types[name]
	return ok
}

// Enabled reports whether a feature or extension name is selected.
func (s *Selection) Enabled(name string) bool {
	_, ok := s.enabled[name]
	return ok
}

// Select walks features up to opts.MaxVersion and the chosen extensions and
// collects every declaration they require, closed over type dependencies.
func Select(ctx context.Context, reg *Registry, opts Options) (*Selection, error) {
	logger := ctxlog.FromContext(ctx)

	api := opts.API
	if api == "" {
		api = "vulkan"
	}

	sel := &Selection{
		API:       api,
		Registry:  reg,
		groups:    make(map[string]*Group),
		types:     make(map[string]*Block),
		commands:  make(map[string]struct{}),
		constants: make(map[string]struct{}),
		removed:   make(map[string]struct{}),
		enabled:   make(map[string]struct{}),
		pending:   make(map[string][]*Value),
	}

	features, err := selectFeatures(reg, api, opts.MaxVersion)
	if err != nil {
		return nil, err
	}
	sel.Features = features
	for _, f := range features {
		sel.enabled[f.Name] = struct{}{}
	}

	extensions, err := sel.selectExtensions(ctx, opts)
	if err != nil {
		return nil, err
	}
	sel.Extensions = extensions

	for _, f := range features {
		for _, rm := range f.Removes {
			if !SupportsAPI(rm.API, api) {
				continue
			}
			for _, name := range rm.Types {
				sel.removed[name] = struct{}{}
			}
			for _, name := range rm.Commands {
				sel.removed[name] = struct{}{}
			}
			for _, ev := range rm.Enums {
				sel.removed[ev.Name] = struct{}{}
			}
		}
	}

	for _, f := range features {
		block := &Block{Name: f.Name, Kind: BlockFeature, Feature: f}
		if err := sel.fill(block, f.Requires, 0); err != nil {
			return nil, errors.Wrapf(err, "feature %s", f.Name)
		}
		sel.Blocks = append(sel.Blocks, block)
	}

	protects := make(map[string]struct{})
	for _, e := range extensions {
		block := &Block{Name: e.Name, Kind: BlockExtension, Extension: e}
		if e.Platform != "" {
			p, _ := reg.Platform(e.Platform)
			block.Protect = p.Protect
			if p.Protect != "" {
				protects[p.Protect] = struct{}{}
			}
		}
		if err := sel.fill(block, e.Requires, e.Number); err != nil {
			return nil, errors.Wrapf(err, "extension %s", e.Name)
		}
		sel.Blocks = append(sel.Blocks, block)
	}
	for p := range protects {
		sel.Protects = append(sel.Protects, p)
	}
	sort.Strings(sel.Protects)

	if err := sel.resolveGroups(); err != nil {
		return nil, err
	}

	logger.Debug("Registry selection complete.",
		"api", api,
		"features", len(features),
		"extensions", len(extensions),
		"types", len(sel.types),
		"commands", len(sel.commands),
		"groups", len(sel.groups))
	return sel, nil
}

func selectFeatures(reg *Registry, api, maxVersion string) ([]*Feature, error) {
	if maxVersion == "" {
		maxVersion = "VK_VERSION_1_3"
	}
	maxFeature, ok := reg.Feature(maxVersion)
	if !ok {
		return nil, errors.Newf("unknown feature %q", maxVersion)
	}
	if !SupportsAPI(maxFeature.API, api) {
		return nil, errors.Newf("feature %q does not apply to api %q", maxVersion, api)
	}
	limit, err := featureNumber(maxFeature.Number)
	if err != nil {
		return nil, errors.Wrapf(err, "feature %s", maxFeature.Name)
	}

	var out []*Feature
	for _, f := range reg.Features {
		if !SupportsAPI(f.API, api) {
			continue
		}
		n, err := featureNumber(f.Number)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %s", f.Name)
		}
		if n <= limit {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := featureNumber(out[i].Number)
		b, _ := featureNumber(out[j].Number)
		return a < b
	})
	return out, nil
}

// featureNumber turns "1.3" into a sortable integer.
func featureNumber(s string) (int, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return 0, errors.Newf("invalid feature number %q", s)
	}
	ma, err := strconv.Atoi(major)
	if err != nil {
		return 0, errors.Newf("invalid feature number %q", s)
	}
	mi, err := strconv.Atoi(minor)
	if err != nil {
		return 0, errors.Newf("invalid feature number %q", s)
	}
	return ma*1000 + mi, nil
}

func (s *Selection) selectExtensions(ctx context.Context, opts Options) ([]*Extension, error) {
	logger := ctxlog.FromContext(ctx)
	reg := s.Registry

	include := toSet(opts.Extensions)
	exclude := toSet(opts.Exclude)
	platforms := toSet(opts.Platforms)

	for name := range include {
		if _, ok := reg.Extension(name); !ok {
			return nil, errors.Newf("unknown extension %q", name)
		}
	}
	for name := range platforms {
		if _, ok := reg.Platform(name); !ok {
			return nil, errors.Newf("unknown platform %q", name)
		}
	}

	var candidates []*Extension
	for _, e := range reg.Extensions {
		_, explicit := include[e.Name]
		if _, skip := exclude[e.Name]; skip {
			continue
		}
		if len(include) > 0 && !explicit {
			continue
		}
		if !SupportsAPI(e.Supported, s.API) {
			if explicit {
				return nil, errors.Newf("extension %q is not supported for api %q", e.Name, s.API)
			}
			continue
		}
		if e.Platform != "" {
			if _, ok := platforms[e.Platform]; !ok {
				if explicit {
					return nil, errors.Newf("extension %q needs platform %q, which is not enabled", e.Name, e.Platform)
				}
				continue
			}
		}
		candidates = append(candidates, e)
		s.enabled[e.Name] = struct{}{}
	}

	// Dropping one extension can invalidate another that depends on it, so
	// repeat until nothing changes.
	for changed := true; changed; {
		changed = false
		kept := candidates[:0]
		for _, e := range candidates {
			ok, err := EvalDepends(e.Depends, s.Enabled)
			if err != nil {
				return nil, errors.Wrapf(err, "extension %s", e.Name)
			}
			if ok {
				kept = append(kept, e)
				continue
			}
			if _, explicit := include[e.Name]; explicit {
				return nil, errors.Newf("extension %q depends on %q; not selected: %s",
					e.Name, e.Depends, strings.Join(missingDepends(e.Depends, s.Enabled), ", "))
			}
			logger.Debug("Extension dropped, dependencies not selected.", "extension", e.Name,
				"depends", e.Depends, "missing", missingDepends(e.Depends, s.Enabled))
			delete(s.enabled, e.Name)
			changed = true
		}
		candidates = kept
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Number < candidates[j].Number
	})
	return candidates, nil
}

func (s *Selection) fill(block *Block, requires []*Require, extNumber int) error {
	for _, req := range requires {
		if !SupportsAPI(req.API, s.API) {
			continue
		}
		ok, err := EvalDepends(req.Depends, s.Enabled)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		for _, name := range req.Types {
			if err := s.addType(block, name); err != nil {
				return err
			}
		}
		for _, ev := range req.Enums {
			if err := s.addEnum(block, ev, extNumber); err != nil {
				return err
			}
		}
		for _, name := range req.Commands {
			if err := s.addCommand(block, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Selection) addType(block *Block, name string) error {
	if _, done := s.types[name]; done {
		return nil
	}
	if _, gone := s.removed[name]; gone {
		return nil
	}

	t, ok := s.Registry.Type(name, s.API)
	if !ok {
		// Builtins and definitions that exist only for another API are
		// not an error.
		if isCBuiltin(name) || len(s.Registry.types[name]) > 0 {
			return nil
		}
		return errors.Newf("unknown type %q", name)
	}
	if t.Category == CategoryInclude {
		return nil
	}

	s.types[name] = block
	block.Types = append(block.Types, t)

	if t.Category == CategoryEnum && t.Alias == "" {
		s.touchGroup(name)
	}

	for _, dep := range s.typeDeps(t) {
		if err := s.addType(block, dep); err != nil {
			return errors.Wrapf(err, "dependency of %s", name)
		}
	}
	return nil
}

// typeDeps lists the types t refers to. Handle parents and structextends
// are relations, not dependencies, and are left out.
func (s *Selection) typeDeps(t *Type) []string {
	var deps []string
	add := func(name string) {
		if name != "" && name != t.Name {
			deps = append(deps, name)
		}
	}

	add(t.Alias)
	add(t.BitValues)
	if t.Requires != "" {
		if rt, ok := s.Registry.Type(t.Requires, s.API); !ok || rt.Category != CategoryInclude {
			add(t.Requires)
		}
	}

	switch t.Category {
	case CategoryBasetype, CategoryBitmask:
		add(t.Inner)
	case CategoryStruct, CategoryUnion:
		for _, m := range t.MembersFor(s.API) {
			add(m.Type)
		}
	case CategoryFuncpointer:
		if t.Proto != nil {
			add(t.Proto.Type)
			for _, p := range t.Params {
				add(p.Type)
			}
		} else {
			for _, ref := range t.Refs {
				add(ref)
			}
		}
	}
	return deps
}

func (s *Selection) addEnum(block *Block, ev *EnumValue, extNumber int) error {
	if !SupportsAPI(ev.API, s.API) {
		return nil
	}
	if _, gone := s.removed[ev.Name]; gone {
		return nil
	}

	if ev.Extends != "" {
		if err := s.addType(block, ev.Extends); err != nil {
			return err
		}
		v := &Value{
			Name:       ev.Name,
			Alias:      ev.Alias,
			Deprecated: ev.Deprecated,
			Protect:    ev.Protect,
			Comment:    ev.Comment,
		}
		if v.Protect == "" {
			v.Protect = block.Protect
		}
		if ev.Alias == "" {
			n, err := ev.IntValue(extNumber)
			if err != nil {
				return err
			}
			v.Value = n
		}
		s.touchGroup(ev.Extends)
		s.pending[ev.Extends] = append(s.pending[ev.Extends], v)
		return nil
	}

	if _, done := s.constants[ev.Name]; done {
		return nil
	}

	if ev.IsReference() {
		c, ok := s.Registry.Constant(ev.Name)
		if !ok {
			// A member of an enumerated type; the type carries it.
			if _, inGroup := s.Registry.GroupOf(ev.Name); inGroup {
				return nil
			}
			return errors.Newf("unknown enum reference %q", ev.Name)
		}
		ev = c
	} else if ev.Alias != "" {
		if c, ok := s.Registry.Constant(ev.Alias); ok {
			if err := s.addEnum(block, c, 0); err != nil {
				return err
			}
		}
	}

	s.constants[ev.Name] = struct{}{}
	block.Constants = append(block.Constants, ev)
	return nil
}

func (s *Selection) addCommand(block *Block, name string) error {
	if _, done := s.commands[name]; done {
		return nil
	}
	if _, gone := s.removed[name]; gone {
		return nil
	}

	c, ok := s.Registry.Command(name, s.API)
	if !ok {
		return errors.Newf("unknown command %q", name)
	}
	s.commands[name] = struct{}{}
	block.Commands = append(block.Commands, c)

	if c.Alias != "" {
		return nil
	}
	if err := s.addType(block, c.Proto.Type); err != nil {
		return errors.Wrapf(err, "command %s", name)
	}
	for _, p := range c.ParamsFor(s.API) {
		if err := s.addType(block, p.Type); err != nil {
			return errors.Wrapf(err, "command %s", name)
		}
	}
	return nil
}

func (s *Selection) touchGroup(name string) {
	if _, ok := s.groups[name]; ok {
		return
	}
	g := &Group{Name: name, Kind: GroupEnum, BitWidth: 32}
	if rg, ok := s.Registry.Group(name); ok {
		g.Kind = rg.Kind
		g.BitWidth = rg.BitWidth
	} else if strings.Contains(name, "FlagBits") {
		g.Kind = GroupBitmask
	}
	s.groups[name] = g
	s.groupOrder = append(s.groupOrder, name)
}

// resolveGroups fills each group with its own values followed by the values
// extensions and later features add, dropping repeats.
func (s *Selection) resolveGroups() error {
	for _, name := range s.groupOrder {
		g := s.groups[name]
		seen := make(map[string]struct{})

		if rg, ok := s.Registry.Group(name); ok {
			for _, ev := range rg.Values {
				if !SupportsAPI(ev.API, s.API) {
					continue
				}
				if _, gone := s.removed[ev.Name]; gone {
					continue
				}
				v := &Value{
					Name:       ev.Name,
					Alias:      ev.Alias,
					Deprecated: ev.Deprecated,
					Protect:    ev.Protect,
					Comment:    ev.Comment,
				}
				if ev.Alias == "" {
					n, err := ev.IntValue(0)
					if err != nil {
						return errors.Wrapf(err, "enums %s", name)
					}
					v.Value = n
				}
				seen[v.Name] = struct{}{}
				g.Values = append(g.Values, v)
			}
		}

		for _, v := range s.pending[name] {
			if _, dup := seen[v.Name]; dup {
				continue
			}
			seen[v.Name] = struct{}{}
			g.Values = append(g.Values, v)
		}
	}

	// Aliases must point at a value of the same group.
	for _, g := range s.groups {
		names := make(map[string]struct{}, len(g.Values))
		for _, v := range g.Values {
			names[v.Name] = struct{}{}
		}
		kept := g.Values[:0]
		for _, v := range g.Values {
			if v.Alias != "" {
				if _, ok := names[v.Alias]; !ok {
					continue
				}
			}
			kept = append(kept, v)
		}
		g.Values = kept
	}
	return nil
}

var cBuiltins = map[string]struct{}{
	"void": {}, "char": {}, "float": {}, "double": {}, "int": {},
	"int8_t": {}, "uint8_t": {}, "int16_t": {}, "uint16_t": {},
	"int32_t": {}, "uint32_t": {}, "int64_t": {}, "uint64_t": {},
	"size_t": {},
}

func isCBuiltin(name string) bool {
	_, ok := cBuiltins[name]
	return ok
}

func toSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

// missingDepends lists the names in a depends expression that are not enabled.
func missingDepends(expr string, enabled func(string) bool) []string {
	var missing []string
	for _, name := range DependsNames(expr) {
		if !enabled(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
