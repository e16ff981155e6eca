// Package version decodes the packed JVMTI version word.
package version

import (
	"fmt"

	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
)

// Number is a decoded JVMTI version.
type Number struct {
	Major uint32
	Minor uint32
	Micro uint32
}

// FromUint32 decodes a version word as returned by GetVersionNumber. Any
// input decodes to some triple; the interface type bits are ignored.
func FromUint32(encoded uint32) Number {
	return Number{
		Major: (encoded & native.VersionMaskMajor) >> native.VersionShiftMajor,
		Minor: (encoded & native.VersionMaskMinor) >> native.VersionShiftMinor,
		Micro: (encoded & native.VersionMaskMicro) >> native.VersionShiftMicro,
	}
}

// String renders the version as "major.minor.micro".
func (n Number) String() string {
	return fmt.Sprintf("%d.%d.%d", n.Major, n.Minor, n.Micro)
}

// AtLeast reports whether n is the same as or newer than major.minor.
func (n Number) AtLeast(major, minor uint32) bool {
	if n.Major != major {
		return n.Major > major
	}
	return n.Minor >= minor
}
