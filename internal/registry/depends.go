package registry

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// EvalDepends evaluates a depends expression such as
// "(VK_KHR_get_physical_device_properties2,VK_VERSION_1_1)+VK_KHR_surface".
// '+' is AND and ',' is OR; both bind equally and associate left to right,
// so mixed expressions rely on parentheses. An empty expression is true.
func EvalDepends(expr string, enabled func(name string) bool) (bool, error) {
	p := &dependsParser{src: expr, enabled: enabled}
	p.skipSpace()
	if p.done() {
		return true, nil
	}
	v, err := p.expr()
	if err != nil {
		return false, err
	}
	p.skipSpace()
	if !p.done() {
		return false, errors.Newf("depends %q: unexpected %q at offset %d", expr, p.src[p.pos], p.pos)
	}
	return v, nil
}

// DependsNames lists every name referenced by expr.
func DependsNames(expr string) []string {
	return strings.FieldsFunc(expr, func(r rune) bool {
		return r == '+' || r == ',' || r == '(' || r == ')' || r == ' '
	})
}

type dependsParser struct {
	src     string
	pos     int
	enabled func(string) bool
}

func (p *dependsParser) done() bool {
	return p.pos >= len(p.src)
}

func (p *dependsParser) skipSpace() {
	for !p.done() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *dependsParser) expr() (bool, error) {
	v, err := p.term()
	if err != nil {
		return false, err
	}
	for {
		p.skipSpace()
		if p.done() {
			return v, nil
		}
		op := p.src[p.pos]
		if op != '+' && op != ',' {
			return v, nil
		}
		p.pos++
		rhs, err := p.term()
		if err != nil {
			return false, err
		}
		if op == '+' {
			v = v && rhs
		} else {
			v = v || rhs
		}
	}
}

func (p *dependsParser) term() (bool, error) {
	p.skipSpace()
	if p.done() {
		return false, errors.Newf("depends %q: unexpected end of expression", p.src)
	}

	if p.src[p.pos] == '(' {
		p.pos++
		v, err := p.expr()
		if err != nil {
			return false, err
		}
		p.skipSpace()
		if p.done() || p.src[p.pos] != ')' {
			return false, errors.Newf("depends %q: missing closing parenthesis", p.src)
		}
		p.pos++
		return v, nil
	}

	start := p.pos
	for !p.done() && isNameByte(p.src[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return false, errors.Newf("depends %q: expected a name at offset %d", p.src, start)
	}
	return p.enabled(p.src[start:p.pos]), nil
}

func isNameByte(c byte) bool {
	return c == '_' || c == ':' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
