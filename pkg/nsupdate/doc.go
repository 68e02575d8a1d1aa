// Package nsupdate decides whether a NetScaler (Citrix ADC) appliance runs an
// outdated build relative to the latest publicly announced releases.
//
// It is designed to be driven by a monitoring probe: callers supply raw
// announcement titles and the raw version text reported by a device, and get
// back a Nagios-style severity plus a one-line status message.
//
// This package intentionally does not perform any network I/O. Fetching the
// release feed and querying appliances is left to the caller.
//
// Version model
//   - A version is four integers: major, minor, build major, build minor
//     (e.g. "13.0 Build 71.44" is {13, 0, 71, 44}).
//   - A release line is "major.minor" (e.g. "13.0").
//   - Ordering is field-by-field integer comparison, so build "9.5" < "10.1".
//   - The catalog keeps the first build announced per release line; feeds are
//     delivered newest first.
//   - An installed build newer than the catalog is reported as up to date.
package nsupdate
