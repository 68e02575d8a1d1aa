package nsupdate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DefaultLineConstraint matches the release lines the probe knows about.
const DefaultLineConstraint = ">= 10.0, < 15.0"

// Announcement titles look like:
//
//	New - NetScaler Release (Feature Phase) 12.0 Build 57.19
//	New - NetScaler Release (Maintenance Phase) 11.1 Build 57.11
//	New - Citrix ADC Release (Feature Phase) 13.0 Build 41.20
//	New - NetScaler ADC Release (Maintenance Phase) 13.1 Build 49.13
var announcementPattern = regexp.MustCompile(
	`^New - (?:NetScaler(?: ADC)?|Citrix ADC) Release(?: \((?:Feature|Maintenance) Phase\))? ([0-9]{1,2})\.([0-9]) Build ([0-9]{1,3})\.([0-9]{1,3})`,
)

// LineFilter restricts the release lines accepted into a catalog.
type LineFilter struct {
	raw         string
	constraints *semver.Constraints
}

// NewLineFilter compiles a semver constraint such as ">= 10.0, < 15.0".
// An empty expression uses DefaultLineConstraint.
func NewLineFilter(expr string) (*LineFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultLineConstraint
	}
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("parse release line constraint %q: %w", expr, err)
	}
	return &LineFilter{raw: expr, constraints: c}, nil
}

// Allows reports whether the release line major.minor passes the filter.
// A nil filter allows every line.
func (f *LineFilter) Allows(major, minor int) bool {
	if f == nil {
		return true
	}
	return f.constraints.Check(semver.New(uint64(major), uint64(minor), 0, "", ""))
}

func (f *LineFilter) String() string {
	if f == nil {
		return ""
	}
	return f.raw
}

// Catalog maps each release line to its latest announced build.
// It is immutable once returned by ExtractCatalog.
type Catalog struct {
	latest map[ReleaseLine]Version
}

// ExtractCatalog builds a catalog from announcement titles ordered newest
// first. Titles that are not release announcements are skipped. For each
// release line the first matching title wins.
func ExtractCatalog(titles []string, filter *LineFilter) *Catalog {
	c := &Catalog{latest: make(map[ReleaseLine]Version)}
	for _, title := range titles {
		m := announcementPattern.FindStringSubmatch(strings.TrimSpace(title))
		if m == nil {
			continue
		}
		v, err := versionFromStrings(m[1], m[2], m[3], m[4])
		if err != nil {
			continue
		}
		if !filter.Allows(v.Major, v.Minor) {
			continue
		}
		if _, seen := c.latest[v.Line()]; seen {
			continue
		}
		c.latest[v.Line()] = v
	}
	return c
}

// Lookup returns the latest known build for a release line.
func (c *Catalog) Lookup(line ReleaseLine) (Version, bool) {
	if c == nil {
		return Version{}, false
	}
	v, ok := c.latest[line]
	return v, ok
}

// Len returns the number of release lines in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.latest)
}

// Versions returns the latest build of every release line, ordered oldest
// line first.
func (c *Catalog) Versions() []Version {
	if c == nil {
		return nil
	}
	out := make([]Version, 0, len(c.latest))
	for _, v := range c.latest {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return Compare(out[i], out[j]) < 0 })
	return out
}
