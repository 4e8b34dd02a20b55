package pyworker

import (
	"fmt"

	"github.com/codename-co/runbox/internal/pypkg"
)

// installPlan is the host-side resolution of the request's package list:
// what actually gets handed to pip, and the notes explaining every rewrite
// or refusal. Notes surface in the result's stderr so the caller can see
// which aliases were resolved.
type installPlan struct {
	install []string
	notes   []string
}

// buildInstallPlan resolves aliases and filters the package list through the
// compatibility classifier. Incompatible packages are never attempted;
// prebuilt packages need no installation.
func buildInstallPlan(packages []string) installPlan {
	var plan installPlan
	seen := make(map[string]bool, len(packages))
	for _, name := range packages {
		canonical := pypkg.ResolveAlias(name)
		if canonical != name {
			plan.notes = append(plan.notes, fmt.Sprintf("resolved package alias %s -> %s", name, canonical))
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true

		switch pypkg.Classify(canonical) {
		case pypkg.Prebuilt:
			// Available without installation.
		case pypkg.Incompatible:
			plan.notes = append(plan.notes, fmt.Sprintf("skipped %s: %s", canonical, pypkg.IncompatibleReason(canonical)))
		case pypkg.Unknown:
			plan.notes = append(plan.notes, fmt.Sprintf("unrecognized package name %q", name))
		default:
			plan.install = append(plan.install, canonical)
		}
	}
	return plan
}
