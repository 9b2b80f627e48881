package scoring

import (
	"fmt"
	"strings"

	"github.com/komparedocers/autonomous-lead-qualification/internal/domain/model"
)

// explain renders the one-line human explanation for a signal from the
// occurrence's detector parameters. Every emitted signal carries one.
func explain(occ *model.SignalOccurrence) string {
	p := occ.Params
	switch occ.Kind {
	case model.KindHiringSpike:
		msg := fmt.Sprintf("Hiring spike: %s %s postings in the last window against a baseline of %s (ratio %s)",
			param(p, "short_count", "several"),
			param(p, "role_class", "unclassified"),
			param(p, "baseline", "0"),
			param(p, "ratio", "n/a"))
		if region := p["region"]; region != "" {
			msg += " in " + region
		}
		return msg
	case model.KindTechAdopt:
		return fmt.Sprintf("New %s adoption: stack fingerprint corroborated by a public mention within %s",
			param(p, "technology", "technology"),
			param(p, "corroborated_in", "the corroboration window"))
	case model.KindFunding:
		return fmt.Sprintf("Announced a %s funding round",
			strings.ReplaceAll(param(p, "round_stage", "qualifying"), "_", " "))
	case model.KindCompliance:
		return fmt.Sprintf("Matched %s notice indicating expansion or regulatory activity",
			strings.ReplaceAll(param(p, "category", "a tracked"), "_", " "))
	default:
		return fmt.Sprintf("Detected %s activity", occ.Kind)
	}
}

func param(p map[string]string, key, fallback string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return fallback
}
