// Package pypkg resolves requested Python dependency names against static
// compatibility tables: alias resolution to canonical distribution names and
// classification as prebuilt, installable, or known-incompatible.
//
// Everything here is a pure function over static tables. The worker engine
// uses it to rewrite names before installation; the HTTP layer uses it to
// warn callers ahead of a run.
package pypkg

import (
	"regexp"
	"strings"
)

// Class is the compatibility classification of a canonical package name.
type Class string

const (
	// Prebuilt packages ship with the runtime; no installation needed.
	Prebuilt Class = "prebuilt"
	// Installable packages are assumed to be pure Python and to install
	// successfully.
	Installable Class = "installable"
	// Incompatible packages are known to require OS facilities the sandbox
	// does not provide.
	Incompatible Class = "incompatible"
	// Unknown marks names that are not recognizable package names at all.
	Unknown Class = "unknown"
)

// distName matches a plausible distribution name (PEP 508 shape).
var distName = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

// ResolveAlias maps an informal or import name to its canonical distribution
// name. An exact case-sensitive match wins over a lowercase-normalized match;
// unmapped names are returned lowercased.
func ResolveAlias(name string) string {
	name = strings.TrimSpace(name)
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	lower := strings.ToLower(name)
	if canonical, ok := aliases[lower]; ok {
		return canonical
	}
	return lower
}

// Classify resolves name and reports its compatibility class.
func Classify(name string) Class {
	canonical := ResolveAlias(name)
	if canonical == "" || !distName.MatchString(canonical) {
		return Unknown
	}
	if prebuilt[canonical] {
		return Prebuilt
	}
	if _, ok := incompatible[canonical]; ok {
		return Incompatible
	}
	return Installable
}

// IncompatibleReason returns the human-readable reason a package is
// classified incompatible, or "" if it is not.
func IncompatibleReason(name string) string {
	return incompatible[ResolveAlias(name)]
}
