package registry

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

type xmlRegistry struct {
	Platforms  []Platform      `xml:"platforms>platform"`
	Tags       []Tag           `xml:"tags>tag"`
	Types      []*xmlType      `xml:"types>type"`
	Enums      []*xmlEnums     `xml:"enums"`
	Commands   []*xmlCommand   `xml:"commands>command"`
	Features   []*xmlFeature   `xml:"feature"`
	Extensions []*xmlExtension `xml:"extensions>extension"`
}

type xmlEnums struct {
	Name     string      `xml:"name,attr"`
	Type     string      `xml:"type,attr"`
	BitWidth int         `xml:"bitwidth,attr"`
	Comment  string      `xml:"comment,attr"`
	Values   []EnumValue `xml:"enum"`
}

type xmlCommand struct {
	Name         string     `xml:"name,attr"`
	Alias        string     `xml:"alias,attr"`
	API          string     `xml:"api,attr"`
	SuccessCodes string     `xml:"successcodes,attr"`
	ErrorCodes   string     `xml:"errorcodes,attr"`
	Comment      string     `xml:"comment,attr"`
	Deprecated   string     `xml:"deprecated,attr"`
	Proto        *xmlDecl   `xml:"proto"`
	Params       []*xmlDecl `xml:"param"`
}

type xmlNamed struct {
	Name string `xml:"name,attr"`
}

type xmlRequire struct {
	API       string      `xml:"api,attr"`
	Depends   string      `xml:"depends,attr"`
	Feature   string      `xml:"feature,attr"`
	Extension string      `xml:"extension,attr"`
	Comment   string      `xml:"comment,attr"`
	Types     []xmlNamed  `xml:"type"`
	Enums     []EnumValue `xml:"enum"`
	Commands  []xmlNamed  `xml:"command"`
}

type xmlFeature struct {
	API      string        `xml:"api,attr"`
	Name     string        `xml:"name,attr"`
	Number   string        `xml:"number,attr"`
	Depends  string        `xml:"depends,attr"`
	Comment  string        `xml:"comment,attr"`
	Requires []*xmlRequire `xml:"require"`
	Removes  []*xmlRequire `xml:"remove"`
}

type xmlExtension struct {
	Name         string        `xml:"name,attr"`
	Number       string        `xml:"number,attr"`
	Type         string        `xml:"type,attr"`
	Supported    string        `xml:"supported,attr"`
	Platform     string        `xml:"platform,attr"`
	Depends      string        `xml:"depends,attr"`
	LegacyReqs   string        `xml:"requires,attr"`
	PromotedTo   string        `xml:"promotedto,attr"`
	DeprecatedBy string        `xml:"deprecatedby,attr"`
	ObsoletedBy  string        `xml:"obsoletedby,attr"`
	Author       string        `xml:"author,attr"`
	Provisional  string        `xml:"provisional,attr"`
	Requires     []*xmlRequire `xml:"require"`
	Removes      []*xmlRequire `xml:"remove"`
}

// xmlType decodes the mixed content of a <type> element.
type xmlType Type

func (t *xmlType) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "name":
			t.Name = a.Value
		case "category":
			t.Category = Category(a.Value)
		case "alias":
			t.Alias = a.Value
		case "requires":
			t.Requires = a.Value
		case "bitvalues":
			t.BitValues = a.Value
		case "parent":
			t.Parent = a.Value
		case "structextends":
			t.StructExtends = a.Value
		case "objtypeenum":
			t.ObjTypeEnum = a.Value
		case "returnedonly":
			t.ReturnedOnly = a.Value == "true"
		case "api":
			t.API = a.Value
		case "deprecated":
			t.Deprecated = a.Value
		case "comment":
			t.Comment = a.Value
		}
	}

	var text strings.Builder
	afterInner := false
	for {
		tok, err := d.Token()
		if err != nil {
			return errors.Wrapf(err, "decode type %q", t.Name)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "member", "param", "proto":
				decl := &xmlDecl{}
				if err := d.DecodeElement(decl, &el); err != nil {
					return errors.Wrapf(err, "decode %s of type %q", el.Name.Local, t.Name)
				}
				switch el.Name.Local {
				case "member":
					t.Members = append(t.Members, (*Decl)(decl))
				case "param":
					t.Params = append(t.Params, (*Decl)(decl))
				default:
					t.Proto = (*Decl)(decl)
					if t.Name == "" {
						t.Name = decl.Name
					}
				}
			case "name":
				var s string
				if err := d.DecodeElement(&s, &el); err != nil {
					return err
				}
				if t.Name == "" {
					t.Name = s
				}
				text.WriteString(s)
			case "type":
				var s string
				if err := d.DecodeElement(&s, &el); err != nil {
					return err
				}
				if t.Inner == "" {
					t.Inner = s
					afterInner = true
				}
				t.Refs = append(t.Refs, s)
				text.WriteString(s)
				continue
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
			afterInner = false
		case xml.CharData:
			if afterInner && strings.HasPrefix(strings.TrimSpace(string(el)), "*") {
				t.Pointer = true
			}
			afterInner = false
			text.Write(el)
		case xml.EndElement:
			t.Text = strings.TrimSpace(text.String())
			return nil
		}
	}
}

// xmlDecl decodes a <member>, <param> or <proto>. The C declarator is split
// around its <type> and <name> children.
type xmlDecl Decl

func (m *xmlDecl) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "optional":
			m.Optional = a.Value
		case "len":
			m.Len = a.Value
		case "altlen":
			m.AltLen = a.Value
		case "values":
			m.Values = a.Value
		case "selector":
			m.Selector = a.Value
		case "api":
			m.API = a.Value
		case "deprecated":
			m.Deprecated = a.Value
		case "externsync":
			m.ExternSync = a.Value
		}
	}

	const (
		beforeType = iota
		beforeName
		afterName
	)
	stage := beforeType
	var pre, mid, post strings.Builder

	for {
		tok, err := d.Token()
		if err != nil {
			return errors.Wrap(err, "decode declarator")
		}

		switch el := tok.(type) {
		case xml.StartElement:
			var s string
			if err := d.DecodeElement(&s, &el); err != nil {
				return err
			}
			switch el.Name.Local {
			case "type":
				m.Type = s
				stage = beforeName
			case "name":
				m.Name = s
				stage = afterName
			case "enum":
				post.WriteString(s)
			case "comment":
				m.Comment = strings.TrimSpace(s)
			}
		case xml.CharData:
			switch stage {
			case beforeType:
				pre.Write(el)
			case beforeName:
				mid.Write(el)
			default:
				post.Write(el)
			}
		case xml.EndElement:
			return m.finish(pre.String(), mid.String(), post.String())
		}
	}
}

func (m *xmlDecl) finish(pre, mid, post string) error {
	for _, f := range strings.Fields(pre) {
		switch f {
		case "const":
			m.Const = true
		case "struct":
			m.Struct = true
		}
	}

	// Funcpointer protos read "void (VKAPI_PTR *PFN_x)"; the stars after the
	// parenthesis belong to the pointer type, not the return type.
	if i := strings.IndexByte(mid, '('); i >= 0 {
		mid = mid[:i]
	}
	for _, f := range strings.Fields(strings.ReplaceAll(mid, "*", " * ")) {
		switch {
		case f == "*":
			m.Pointers = append(m.Pointers, false)
		case f == "const" && len(m.Pointers) > 0:
			m.Pointers[len(m.Pointers)-1] = true
		}
	}

	post = strings.TrimSpace(post)
	for post != "" {
		switch post[0] {
		case '[':
			end := strings.IndexByte(post, ']')
			if end < 0 {
				return errors.Newf("declarator %q: unterminated array bound", m.Name)
			}
			m.ArrayDims = append(m.ArrayDims, strings.TrimSpace(post[1:end]))
			post = strings.TrimSpace(post[end+1:])
		case ':':
			width, err := strconv.Atoi(strings.TrimSpace(post[1:]))
			if err != nil {
				return errors.Wrapf(err, "declarator %q: bitfield width", m.Name)
			}
			m.BitWidth = width
			post = ""
		default:
			// Trailing text such as a funcpointer's parameter list.
			post = ""
		}
	}
	return nil
}
