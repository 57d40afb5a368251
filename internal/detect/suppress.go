package detect

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

// SuppressionPolicy evaluates business-tunable expr rules against a
// consecutive activity pair. A pair matching any rule is skipped by the
// travel analyzer. The client whitelist and same-site tables cover the
// common cases; these expressions exist for the matching policies the
// tables cannot express.
type SuppressionPolicy struct {
	programs []*vm.Program
	sources  []string
}

// NewSuppressionPolicy compiles the rule expressions. Each must evaluate to
// a bool over the pair environment (from_client, to_client, gap_minutes,
// distance_km, same_day).
func NewSuppressionPolicy(rules []string) (*SuppressionPolicy, error) {
	p := &SuppressionPolicy{}
	for _, rule := range rules {
		program, err := expr.Compile(rule,
			expr.Env(samplePairEnv()),
			expr.AsBool(),
		)
		if err != nil {
			return nil, fmt.Errorf("compile suppression rule %q: %w", rule, err)
		}
		p.programs = append(p.programs, program)
		p.sources = append(p.sources, rule)
	}
	return p, nil
}

// Rules returns the original rule expressions.
func (p *SuppressionPolicy) Rules() []string {
	return p.sources
}

// Suppress reports whether any rule matches the pair. Evaluation errors
// count as no match: a broken rule must not hide findings.
func (p *SuppressionPolicy) Suppress(prev, next models.ActivityInterval, gapMin, distanceKm float64) bool {
	if p == nil || len(p.programs) == 0 {
		return false
	}
	env := map[string]any{
		"from_client": prev.Client,
		"to_client":   next.Client,
		"gap_minutes": gapMin,
		"distance_km": distanceKm,
		"same_day":    sameDay(prev.Start, next.Start),
	}
	for _, program := range p.programs {
		result, err := expr.Run(program, env)
		if err != nil {
			continue
		}
		if matched, ok := result.(bool); ok && matched {
			return true
		}
	}
	return false
}

func samplePairEnv() map[string]any {
	return map[string]any{
		"from_client": "",
		"to_client":   "",
		"gap_minutes": 0.0,
		"distance_km": 0.0,
		"same_day":    false,
	}
}
