// Package version tracks the format version of persisted file systems
package version

import (
	"github.com/blang/semver"
	"github.com/oneconcern/nest/pkg/core/status"
)

const (
	// V1 is the first stable format
	V1 = "1.0.0"

	// Latest format written by this package
	Latest = V1
)

// Support level of a format version
type Support int

const (
	// Supported versions are compatible with Latest
	Supported Support = iota

	// TooHigh versions were written by a newer major release
	TooHigh

	// TooLow versions were written by an older release
	TooLow
)

func (s Support) String() string {
	switch s {
	case Supported:
		return "supported"
	case TooHigh:
		return "too-high"
	default:
		return "too-low"
	}
}

var latest = semver.MustParse(Latest)

// Parse a format version
func Parse(v string) (semver.Version, error) {
	parsed, err := semver.Parse(v)
	if err != nil {
		return semver.Version{}, status.ErrVersionMismatch.WrapMessage("invalid file system version detected %q", v)
	}
	return parsed, nil
}

// IsSupported checks a version against Latest with caret semantics: same
// major version, not older than Latest.
func IsSupported(v semver.Version) Support {
	switch {
	case v.Major == latest.Major && v.GTE(latest):
		return Supported
	case v.GT(latest):
		return TooHigh
	default:
		return TooLow
	}
}
