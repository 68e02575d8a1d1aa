package nsupdate

import (
	"fmt"
	"io"
)

// Summary collects results for one run and tracks the worst severity.
// The zero value is ready to use.
type Summary struct {
	results []Result
	worst   Severity
}

// Record appends a result and raises the worst severity if needed.
func (s *Summary) Record(r Result) {
	if r.Severity > s.worst {
		s.worst = r.Severity
	}
	s.results = append(s.results, r)
}

// Worst returns the highest severity recorded, OK when empty.
func (s *Summary) Worst() Severity {
	return s.worst
}

// Results returns a copy of the recorded results in order.
func (s *Summary) Results() []Result {
	return append([]Result(nil), s.results...)
}

// Finalize returns the status lines in record order and the exit severity.
func (s *Summary) Finalize() ([]string, Severity) {
	lines := make([]string, 0, len(s.results))
	for _, r := range s.results {
		lines = append(lines, r.Line())
	}
	return lines, s.worst
}

// Write prints one line per result and returns the plugin exit code.
func (s *Summary) Write(w io.Writer) int {
	lines, worst := s.Finalize()
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	return worst.ExitCode()
}
