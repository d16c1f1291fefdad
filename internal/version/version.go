// Package version validates the build version string, per SPEC_FULL.md
// §4.11. Grounded on SeleniaProject-Orizon's use of Masterminds/semver for
// package-manager version constraints, repurposed here to gate a single
// build-embedded version at startup instead of resolving a dependency graph.
package version

import (
	"github.com/Masterminds/semver/v3"

	"github.com/tinyreactor/tinyreactor/internal/logx"
)

// Current is overridden at build time via -ldflags "-X ...version.Current=v1.2.3".
var Current = "v0.0.0-dev"

// MinSupported is the oldest config-file schema version this build accepts.
var MinSupported = "v0.1.0"

// Parse validates raw as a semantic version string.
func Parse(raw string) (*semver.Version, error) {
	return semver.NewVersion(raw)
}

// MustCurrent parses Current and exits the process via logx.Fatal if it
// fails to parse — an invalid embedded build version is a fatal
// configuration error, per spec §7.
func MustCurrent() *semver.Version {
	v, err := Parse(Current)
	if err != nil {
		logx.Fatal("version: build version %q does not parse as semver: %v", Current, err)
	}
	return v
}

// CheckMinSupported returns an error if raw is older than MinSupported.
// Callers treat this as a fatal configuration error (spec §7), not a
// transient one.
func CheckMinSupported(raw string) error {
	v, err := Parse(raw)
	if err != nil {
		return err
	}
	min, err := Parse(MinSupported)
	if err != nil {
		return err
	}
	if v.LessThan(min) {
		return &TooOldError{Have: raw, Want: MinSupported}
	}
	return nil
}

// TooOldError reports a config schema version older than MinSupported.
type TooOldError struct {
	Have string
	Want string
}

func (e *TooOldError) Error() string {
	return "version: " + e.Have + " is older than minimum supported " + e.Want
}
