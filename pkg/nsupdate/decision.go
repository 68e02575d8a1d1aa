package nsupdate

import (
	"errors"
	"fmt"
)

// ErrUnknownReleaseLine is matched by UnknownReleaseLineError.
var ErrUnknownReleaseLine = errors.New("unknown release line")

// UnknownReleaseLineError reports an installed release line that the catalog
// has no announcement for.
type UnknownReleaseLineError struct {
	Target    string
	Line      ReleaseLine
	Installed Version
}

func (e *UnknownReleaseLineError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Target, ErrUnknownReleaseLine, e.Line)
}

func (e *UnknownReleaseLineError) Is(target error) bool {
	return target == ErrUnknownReleaseLine
}

// Evaluate compares the installed version of target with the latest build
// of its release line.
//
// Installed equal to or newer than the catalog is OK; older is WARNING.
// A release line missing from the catalog returns *UnknownReleaseLineError.
func Evaluate(catalog *Catalog, target string, installed Version) (Result, error) {
	latest, ok := catalog.Lookup(installed.Line())
	if !ok {
		return Result{}, &UnknownReleaseLineError{Target: target, Line: installed.Line(), Installed: installed}
	}

	versions := fmt.Sprintf("(installed: %s, available: %s)", installed, latest)
	if Compare(installed, latest) >= 0 {
		return Result{
			Target:   target,
			Severity: SeverityOK,
			Message:  fmt.Sprintf("%s: up to date %s", target, versions),
		}, nil
	}
	return Result{
		Target:   target,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("%s: update available %s", target, versions),
	}, nil
}

// Decide is Evaluate with the unknown release line case folded into an
// UNKNOWN result, so it never fails.
func Decide(catalog *Catalog, target string, installed Version) Result {
	res, err := Evaluate(catalog, target, installed)
	if err == nil {
		return res
	}
	var unknown *UnknownReleaseLineError
	if errors.As(err, &unknown) {
		return Result{
			Target:   target,
			Severity: SeverityUnknown,
			Message: fmt.Sprintf("%s: release line %s not found in release catalog (installed: %s)",
				target, unknown.Line, installed),
		}
	}
	return Result{Target: target, Severity: SeverityUnknown, Message: fmt.Sprintf("%s: %v", target, err)}
}
