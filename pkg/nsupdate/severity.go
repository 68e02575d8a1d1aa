package nsupdate

// Severity is a monitoring status ordered by ascending risk.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
	SeverityUnknown
)

// String returns the uppercase status name printed by monitoring plugins.
func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ExitCode returns the plugin exit status for the severity (0-3).
func (s Severity) ExitCode() int {
	if s < SeverityOK || s > SeverityUnknown {
		return int(SeverityUnknown)
	}
	return int(s)
}

// Result is the outcome of checking one target.
type Result struct {
	Target   string
	Severity Severity
	Message  string
}

// Line renders the result as a status line, e.g. "WARNING: gw1: update available (...)".
func (r Result) Line() string {
	return r.Severity.String() + ": " + r.Message
}
