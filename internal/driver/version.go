package driver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Version is a packed Vulkan version number, laid out the same way as
// VK_MAKE_API_VERSION: 3 bits variant, 7 bits major, 10 bits minor and
// 12 bits patch.
type Version uint32

const (
	Vulkan1_0 Version = 1 << 22
	Vulkan1_1 Version = 1<<22 | 1<<12
	Vulkan1_2 Version = 1<<22 | 2<<12
	Vulkan1_3 Version = 1<<22 | 3<<12
)

func MakeAPIVersion(variant, major, minor, patch uint32) Version {
	return Version(variant<<29 | major<<22 | minor<<12 | patch)
}

func (v Version) Variant() uint32 { return uint32(v) >> 29 }
func (v Version) Major() uint32   { return (uint32(v) >> 22) & 0x7F }
func (v Version) Minor() uint32   { return (uint32(v) >> 12) & 0x3FF }
func (v Version) Patch() uint32   { return uint32(v) & 0xFFF }

func (v Version) IsAtLeast(other Version) bool {
	return v&^(0x7<<29) >= other&^(0x7<<29)
}

func (v Version) String() string {
	if v.Variant() != 0 {
		return fmt.Sprintf("%d.%d.%d (variant %d)", v.Major(), v.Minor(), v.Patch(), v.Variant())
	}
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

// ParseVersion accepts "major.minor" or "major.minor.patch".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, errors.Newf("invalid version %q: want major.minor[.patch]", s)
	}

	limits := []uint64{0x7F, 0x3FF, 0xFFF}
	nums := make([]uint32, 3)
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid version %q", s)
		}
		if n > limits[i] {
			return 0, errors.Newf("invalid version %q: component %d out of range", s, n)
		}
		nums[i] = uint32(n)
	}

	return MakeAPIVersion(0, nums[0], nums[1], nums[2]), nil
}
