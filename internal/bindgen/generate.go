package bindgen

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/vkinit/internal/ctxlog"
	"github.com/vkngwrapper/vkinit/internal/registry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"
)

// ErrUnformatted marks output that was generated but is not valid Go.
var ErrUnformatted = errors.New("generated source is not valid Go")

// Options controls the shape of the generated file.
type Options struct {
	Package string
	// Source names the registry file in the generated header.
	Source string
	// Output is the path the file will be written to. It is used to
	// resolve imports only.
	Output string

	CFlags []string
	// LDFlags maps GOOS to linker flags.
	LDFlags map[string]string

	Commands  bool
	Stringers bool
	// Overrides replaces the Go spelling of registry types. Overridden
	// types are not declared.
	Overrides map[string]string
}

// Generate renders sel as a formatted Go file. When formatting fails the
// unformatted source is returned along with an error marked ErrUnformatted.
func Generate(ctx context.Context, sel *registry.Selection, opts Options) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)
	start := hrtime.Now()

	r := newRenderer(sel, opts)

	preamble, err := renderPreamble(opts, sel.Protects)
	if err != nil {
		return nil, err
	}

	blocks := make([][]byte, len(sel.Blocks))
	stats := make([]blockStats, len(sel.Blocks))
	group, gctx := errgroup.WithContext(ctx)
	for i, b := range sel.Blocks {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, st, err := r.renderBlock(gctx, b)
			if err != nil {
				return err
			}
			blocks[i] = src
			stats[i] = st
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var total blockStats
	raw := bytes.NewBuffer(preamble)
	for i := range blocks {
		raw.Write(blocks[i])
		total.types += stats[i].types
		total.constants += stats[i].constants
		total.values += stats[i].values
		total.commands += stats[i].commands
	}

	src, err := imports.Process(opts.Output, raw.Bytes(), &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return raw.Bytes(), errors.Mark(errors.Wrap(err, "format generated source"), ErrUnformatted)
	}

	logger.Info("Bindings generated.",
		"blocks", len(sel.Blocks),
		"types", total.types,
		"constants", total.constants,
		"values", total.values,
		"commands", total.commands,
		"bytes", len(src),
		"elapsed", hrtime.Since(start))
	return src, nil
}

// WriteFile generates into path. Unformatted output is kept next to it as
// path.broken so the failure can be inspected.
func WriteFile(ctx context.Context, sel *registry.Selection, opts Options, path string) error {
	if opts.Output == "" {
		opts.Output = path
	}
	if opts.Source == "" {
		opts.Source = "the Vulkan registry"
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}

	src, err := Generate(ctx, sel, opts)
	if errors.Is(err, ErrUnformatted) {
		broken := path + ".broken"
		if werr := os.WriteFile(broken, src, 0o644); werr != nil {
			return errors.CombineErrors(err, errors.Wrapf(werr, "write %s", broken))
		}
		return errors.Wrapf(err, "unformatted output written to %s", broken)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// newRenderer resolves every Go identifier up front. Types are named first
// so they keep their natural names when a constant or function collides.
func newRenderer(sel *registry.Selection, opts Options) *renderer {
	namer := NewNamer(sel.Registry.VendorTags())
	names := newNameTable(namer)

	defines := make([]string, 0, len(preambleDefines))
	for cName, goName := range preambleDefines {
		if goName != "" {
			defines = append(defines, cName)
		}
	}
	sort.Strings(defines)
	for _, cName := range defines {
		names.reserve(cName, preambleDefines[cName], kindConst)
	}

	structTags := make(map[string]struct{})
	noteTags := func(decls []*registry.Decl) {
		for _, d := range decls {
			if d.Struct && !strings.HasPrefix(d.Type, "Vk") {
				structTags[d.Type] = struct{}{}
			}
		}
	}

	for _, b := range sel.Blocks {
		for _, t := range b.Types {
			noteTags(t.Members)
			noteTags(t.Params)
			if _, ok := opts.Overrides[t.Name]; ok {
				continue
			}
			switch t.Category {
			case registry.CategoryInclude:
			case registry.CategoryDefine:
				if emittableDefine(t) {
					names.addConst(t.Name)
				}
			default:
				if !IsScalar(t.Name) {
					names.addType(t.Name)
				}
			}
		}
		for _, c := range b.Commands {
			noteTags(c.Params)
		}
	}

	for _, g := range sel.Groups() {
		for _, v := range g.Values {
			names.addConst(v.Name)
		}
		if g.BitWidth != 64 {
			names.reserve(maxEnumKey(g.Name), namer.MaxEnumName(g.Name), kindConst)
		}
	}
	for _, b := range sel.Blocks {
		for _, ev := range b.Constants {
			names.addConst(ev.Name)
		}
	}

	sTypes := make(map[string]struct{})
	if g, ok := sel.Group("VkStructureType"); ok {
		for _, v := range g.Values {
			sTypes[v.Name] = struct{}{}
		}
	}

	for _, b := range sel.Blocks {
		for _, t := range b.Types {
			if t.Category != registry.CategoryStruct || t.Alias != "" || sTypeValue(t, sTypes) == "" {
				continue
			}
			if _, ok := opts.Overrides[t.Name]; !ok {
				names.reserve(constructorKey(t.Name), "New"+namer.TypeName(t.Name), kindFunc)
			}
		}
		if !opts.Commands {
			continue
		}
		for _, c := range b.Commands {
			if c.Alias == "" {
				names.addFunc(c.Name)
			}
		}
	}

	return &renderer{
		sel:   sel,
		opts:  opts,
		names: names,
		types: &typeMapper{
			names:      names,
			overrides:  opts.Overrides,
			structTags: structTags,
		},
		sTypes: sTypes,
	}
}
