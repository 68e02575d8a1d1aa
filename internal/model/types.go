package model

// NSVersionResponse is the subset of the NITRO /config/nsversion payload the
// probe uses.
type NSVersionResponse struct {
	NSVersion NSVersion `json:"nsversion"`
}

// NSVersion carries the appliance version banner, e.g.
// "NetScaler NS13.0: Build 71.44.nc, Date: Dec 26 2020, 11:31:14   (64-bit)".
type NSVersion struct {
	Version string `json:"version"`
}

// Mode selects how a target is queried.
type Mode string

const (
	// ModeNITRO queries the authenticated NITRO REST API of one appliance.
	ModeNITRO Mode = "nitro"
	// ModeLegacy scrapes the unauthenticated gateway plugin list of one or more hosts.
	ModeLegacy Mode = "legacy"
)

// FeedSource describes where release announcements are read from.
type FeedSource struct {
	URL string
	// File, when set, replaces URL with a local feed snapshot.
	File string
	// SignaturePath and PublicKeyPath enable minisign verification of File.
	SignaturePath string
	PublicKeyPath string
}
