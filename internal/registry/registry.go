package registry

import (
	"context"
	"encoding/xml"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/vkinit/internal/ctxlog"
)

// Registry is the decoded vk.xml. The slices keep document order; lookups go
// through the accessor methods.
type Registry struct {
	Platforms  []Platform
	Tags       []Tag
	Types      []*Type
	Groups     []*EnumGroup
	Commands   []*Command
	Features   []*Feature
	Extensions []*Extension

	types      map[string][]*Type
	groups     map[string]*EnumGroup
	valueGroup map[string]*EnumGroup
	commands   map[string][]*Command
	features   map[string]*Feature
	extensions map[string]*Extension
	platforms  map[string]Platform
}

// Load reads and decodes the registry file at path.
func Load(ctx context.Context, path string) (*Registry, error) {
	logger := ctxlog.FromContext(ctx)
	start := hrtime.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open registry")
	}
	defer f.Close()

	reg, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse registry %s", path)
	}

	logger.Debug("Registry loaded.",
		"path", path,
		"types", len(reg.Types),
		"groups", len(reg.Groups),
		"commands", len(reg.Commands),
		"features", len(reg.Features),
		"extensions", len(reg.Extensions),
		"elapsed", hrtime.Since(start))
	return reg, nil
}

// Parse decodes a registry document.
func Parse(r io.Reader) (*Registry, error) {
	var doc xmlRegistry
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "malformed registry XML")
	}

	reg := &Registry{
		Platforms:  doc.Platforms,
		Tags:       doc.Tags,
		types:      make(map[string][]*Type),
		groups:     make(map[string]*EnumGroup),
		valueGroup: make(map[string]*EnumGroup),
		commands:   make(map[string][]*Command),
		features:   make(map[string]*Feature),
		extensions: make(map[string]*Extension),
		platforms:  make(map[string]Platform),
	}

	for _, p := range doc.Platforms {
		reg.platforms[p.Name] = p
	}

	for _, xt := range doc.Types {
		t := (*Type)(xt)
		if t.Name == "" {
			return nil, errors.Newf("type without a name (category %q)", t.Category)
		}
		for _, prev := range reg.types[t.Name] {
			if apisOverlap(prev.API, t.API) {
				return nil, errors.Newf("duplicate type %q", t.Name)
			}
		}
		reg.types[t.Name] = append(reg.types[t.Name], t)
		reg.Types = append(reg.Types, t)
	}

	for _, xe := range doc.Enums {
		if _, dup := reg.groups[xe.Name]; dup {
			return nil, errors.Newf("duplicate enums block %q", xe.Name)
		}
		g := &EnumGroup{
			Name:     xe.Name,
			Kind:     GroupKind(xe.Type),
			BitWidth: xe.BitWidth,
			Comment:  xe.Comment,
		}
		if g.Kind == "" {
			g.Kind = GroupConstants
		}
		if g.BitWidth == 0 {
			g.BitWidth = 32
		}
		for i := range xe.Values {
			v := &xe.Values[i]
			g.Values = append(g.Values, v)
			reg.valueGroup[v.Name] = g
		}
		reg.groups[g.Name] = g
		reg.Groups = append(reg.Groups, g)
	}

	for _, xc := range doc.Commands {
		c := &Command{
			Name:         xc.Name,
			Alias:        xc.Alias,
			API:          xc.API,
			SuccessCodes: xc.SuccessCodes,
			ErrorCodes:   xc.ErrorCodes,
			Comment:      xc.Comment,
			Deprecated:   xc.Deprecated,
		}
		if xc.Proto != nil {
			c.Proto = (*Decl)(xc.Proto)
			c.Name = c.Proto.Name
		}
		for _, p := range xc.Params {
			c.Params = append(c.Params, (*Decl)(p))
		}
		if c.Name == "" {
			return nil, errors.New("command without a name")
		}
		if c.Proto == nil && c.Alias == "" {
			return nil, errors.Newf("command %q has neither a prototype nor an alias", c.Name)
		}
		reg.commands[c.Name] = append(reg.commands[c.Name], c)
		reg.Commands = append(reg.Commands, c)
	}

	for _, xf := range doc.Features {
		f := &Feature{
			API:      xf.API,
			Name:     xf.Name,
			Number:   xf.Number,
			Depends:  xf.Depends,
			Comment:  xf.Comment,
			Requires: convertRequires(xf.Requires),
			Removes:  convertRequires(xf.Removes),
		}
		reg.features[f.Name] = f
		reg.Features = append(reg.Features, f)
	}

	for _, xe := range doc.Extensions {
		number, err := strconv.Atoi(xe.Number)
		if err != nil {
			return nil, errors.Wrapf(err, "extension %q: number", xe.Name)
		}
		depends := xe.Depends
		if depends == "" && xe.LegacyReqs != "" {
			depends = strings.ReplaceAll(xe.LegacyReqs, ",", "+")
		}
		e := &Extension{
			Name:         xe.Name,
			Number:       number,
			Type:         xe.Type,
			Supported:    xe.Supported,
			Platform:     xe.Platform,
			Depends:      depends,
			PromotedTo:   xe.PromotedTo,
			DeprecatedBy: xe.DeprecatedBy,
			ObsoletedBy:  xe.ObsoletedBy,
			Author:       xe.Author,
			Provisional:  xe.Provisional == "true",
			Requires:     convertRequires(xe.Requires),
			Removes:      convertRequires(xe.Removes),
		}
		if e.Platform != "" {
			if _, ok := reg.platforms[e.Platform]; !ok {
				return nil, errors.Newf("extension %q: unknown platform %q", e.Name, e.Platform)
			}
		}
		reg.extensions[e.Name] = e
		reg.Extensions = append(reg.Extensions, e)
	}

	return reg, nil
}

func convertRequires(in []*xmlRequire) []*Require {
	out := make([]*Require, 0, len(in))
	for _, xr := range in {
		r := &Require{
			API:     xr.API,
			Depends: xr.Depends,
			Comment: xr.Comment,
		}
		if r.Depends == "" {
			var parts []string
			if xr.Feature != "" {
				parts = append(parts, xr.Feature)
			}
			if xr.Extension != "" {
				parts = append(parts, xr.Extension)
			}
			r.Depends = strings.Join(parts, "+")
		}
		for _, t := range xr.Types {
			r.Types = append(r.Types, t.Name)
		}
		for i := range xr.Enums {
			r.Enums = append(r.Enums, &xr.Enums[i])
		}
		for _, c := range xr.Commands {
			r.Commands = append(r.Commands, c.Name)
		}
		out = append(out, r)
	}
	return out
}

// apisOverlap reports whether two api attributes can both apply to one API.
func apisOverlap(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	for _, x := range strings.Split(a, ",") {
		if SupportsAPI(b, strings.TrimSpace(x)) {
			return true
		}
	}
	return false
}

// Type returns the definition of name that applies to api.
func (r *Registry) Type(name, api string) (*Type, bool) {
	for _, t := range r.types[name] {
		if SupportsAPI(t.API, api) {
			return t, true
		}
	}
	return nil, false
}

func (r *Registry) Group(name string) (*EnumGroup, bool) {
	g, ok := r.groups[name]
	return g, ok
}

// GroupOf returns the <enums> block declaring the value name.
func (r *Registry) GroupOf(valueName string) (*EnumGroup, bool) {
	g, ok := r.valueGroup[valueName]
	return g, ok
}

// Constant looks name up among the API constants.
func (r *Registry) Constant(name string) (*EnumValue, bool) {
	g, ok := r.groups[APIConstants]
	if !ok {
		return nil, false
	}
	for _, v := range g.Values {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

func (r *Registry) Command(name, api string) (*Command, bool) {
	for _, c := range r.commands[name] {
		if SupportsAPI(c.API, api) {
			return c, true
		}
	}
	return nil, false
}

func (r *Registry) Feature(name string) (*Feature, bool) {
	f, ok := r.features[name]
	return f, ok
}

func (r *Registry) Extension(name string) (*Extension, bool) {
	e, ok := r.extensions[name]
	return e, ok
}

func (r *Registry) Platform(name string) (Platform, bool) {
	p, ok := r.platforms[name]
	return p, ok
}

// VendorTags returns the author tags, longest first so suffix matching
// prefers KHX over KH style prefixes.
func (r *Registry) VendorTags() []string {
	tags := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		tags = append(tags, t.Name)
	}
	sort.Slice(tags, func(i, j int) bool {
		if len(tags[i]) != len(tags[j]) {
			return len(tags[i]) > len(tags[j])
		}
		return tags[i] < tags[j]
	})
	return tags
}
