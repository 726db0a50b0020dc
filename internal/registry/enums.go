package registry

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Extension enum values live in a reserved range: each extension owns a
// block of extBlockSize values starting at extBase.
const (
	extBase      = 1000000000
	extBlockSize = 1000
)

// ExtensionValue computes the value of an offset-style enum.
func ExtensionValue(extNumber, offset int, negative bool) int64 {
	v := int64(extBase) + int64(extNumber-1)*extBlockSize + int64(offset)
	if negative {
		return -v
	}
	return v
}

// IntValue resolves the numeric value of e. extNumber is the number of the
// extension whose require block holds e; an extnumber attribute wins over it.
// Aliases and references have no value of their own and return an error.
func (e *EnumValue) IntValue(extNumber int) (int64, error) {
	switch {
	case e.BitPos != "":
		pos, err := strconv.Atoi(e.BitPos)
		if err != nil || pos < 0 || pos > 63 {
			return 0, errors.Newf("enum %s: invalid bitpos %q", e.Name, e.BitPos)
		}
		return int64(uint64(1) << pos), nil

	case e.Offset != "":
		offset, err := strconv.Atoi(e.Offset)
		if err != nil {
			return 0, errors.Wrapf(err, "enum %s: offset", e.Name)
		}
		num := extNumber
		if e.ExtNumber != "" {
			num, err = strconv.Atoi(e.ExtNumber)
			if err != nil {
				return 0, errors.Wrapf(err, "enum %s: extnumber", e.Name)
			}
		}
		if num <= 0 {
			return 0, errors.Newf("enum %s: offset without an extension number", e.Name)
		}
		return ExtensionValue(num, offset, e.Dir == "-"), nil

	case e.Value != "":
		return parseCInt(e.Value)

	default:
		return 0, errors.Newf("enum %s has no numeric value", e.Name)
	}
}

// parseCInt parses an integer literal as written in the registry, with
// optional parentheses and U/L suffixes.
func parseCInt(s string) (int64, error) {
	lit := strings.TrimSpace(s)
	lit = strings.TrimSuffix(strings.TrimPrefix(lit, "("), ")")
	lit = strings.TrimRight(lit, "uUlL")
	if v, err := strconv.ParseInt(lit, 0, 64); err == nil {
		return v, nil
	}
	u, err := strconv.ParseUint(lit, 0, 64)
	if err != nil {
		return 0, errors.Newf("not an integer literal: %q", s)
	}
	return int64(u), nil
}

// IsString reports whether a constant's value is a quoted C string, as used
// for extension name constants.
func (e *EnumValue) IsString() bool {
	return len(e.Value) >= 2 && strings.HasPrefix(e.Value, `"`) && strings.HasSuffix(e.Value, `"`)
}
