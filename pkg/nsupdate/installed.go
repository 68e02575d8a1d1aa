package nsupdate

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrUnrecognizedVersion is matched by UnrecognizedVersionError.
var ErrUnrecognizedVersion = errors.New("unrecognized version string")

// UnrecognizedVersionError carries the text no version grammar matched.
type UnrecognizedVersionError struct {
	Text string
}

func (e *UnrecognizedVersionError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnrecognizedVersion, e.Text)
}

func (e *UnrecognizedVersionError) Is(target error) bool {
	return target == ErrUnrecognizedVersion
}

var (
	// NetScaler NS13.0: Build 71.44.nc, Date: Dec 26 2020, 11:31:14   (64-bit)
	statusPattern = regexp.MustCompile(`\bNS([0-9]{1,2})\.([0-9]+): Build ([0-9]+)\.([0-9]+)`)

	// <plugin ... version="13,0,71,44" ...> as served by older gateways.
	pluginVersionPattern = regexp.MustCompile(`\bversion="([0-9]+),([0-9]+),([0-9]+),([0-9]+)"`)
)

// ParseInstalled extracts the installed version from device status text.
// The "NS13.0: Build 71.44" form is tried first, then the legacy
// version="13,0,71,44" attribute form.
func ParseInstalled(text string) (Version, error) {
	for _, re := range []*regexp.Regexp{statusPattern, pluginVersionPattern} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := versionFromStrings(m[1], m[2], m[3], m[4])
		if err != nil {
			return Version{}, err
		}
		return v, nil
	}
	return Version{}, &UnrecognizedVersionError{Text: text}
}
