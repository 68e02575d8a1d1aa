package nsupdate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedVersion is returned when a version has a negative component or a
// release line cannot be parsed.
var ErrMalformedVersion = errors.New("malformed version")

// Version is an appliance build, e.g. 13.0 Build 71.44.
type Version struct {
	Major      int
	Minor      int
	BuildMajor int
	BuildMinor int
}

// NewVersion validates and returns a Version.
func NewVersion(major, minor, buildMajor, buildMinor int) (Version, error) {
	if major < 0 || minor < 0 || buildMajor < 0 || buildMinor < 0 {
		return Version{}, fmt.Errorf("%w: %d.%d build %d.%d", ErrMalformedVersion, major, minor, buildMajor, buildMinor)
	}
	return Version{Major: major, Minor: minor, BuildMajor: buildMajor, BuildMinor: buildMinor}, nil
}

// Line returns the release line the version belongs to.
func (v Version) Line() ReleaseLine {
	return ReleaseLine(fmt.Sprintf("%d.%d", v.Major, v.Minor))
}

// Build returns the build portion, e.g. "71.44".
func (v Version) Build() string {
	return fmt.Sprintf("%d.%d", v.BuildMajor, v.BuildMinor)
}

// String formats the version the way status messages print it: "13.0 71.44".
func (v Version) String() string {
	return string(v.Line()) + " " + v.Build()
}

// Compare returns -1 if v < other, 0 if equal, 1 if v > other.
func (v Version) Compare(other Version) int {
	return Compare(v, other)
}

// Compare orders two versions by major, minor, build major, build minor.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func Compare(a, b Version) int {
	switch {
	case a.Major != b.Major:
		return cmpInt(a.Major, b.Major)
	case a.Minor != b.Minor:
		return cmpInt(a.Minor, b.Minor)
	case a.BuildMajor != b.BuildMajor:
		return cmpInt(a.BuildMajor, b.BuildMajor)
	default:
		return cmpInt(a.BuildMinor, b.BuildMinor)
	}
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// ReleaseLine is a "major.minor" release family such as "13.0".
type ReleaseLine string

// ParseReleaseLine splits "13.0" into its major and minor components.
func ParseReleaseLine(s string) (major, minor int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: release line %q", ErrMalformedVersion, s)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return 0, 0, fmt.Errorf("%w: release line major %q", ErrMalformedVersion, parts[0])
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return 0, 0, fmt.Errorf("%w: release line minor %q", ErrMalformedVersion, parts[1])
	}
	return major, minor, nil
}

// versionFromStrings builds a Version from regexp capture groups.
func versionFromStrings(major, minor, buildMajor, buildMinor string) (Version, error) {
	fields := [4]int{}
	for i, raw := range [4]string{major, minor, buildMajor, buildMinor} {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Version{}, fmt.Errorf("%w: component %q", ErrMalformedVersion, raw)
		}
		fields[i] = n
	}
	return NewVersion(fields[0], fields[1], fields[2], fields[3])
}
