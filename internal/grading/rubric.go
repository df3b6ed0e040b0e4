package grading

import (
	"fmt"
	"strings"
)

// Rubric configures how probe outcomes turn into points.
type Rubric struct {
	Name string
	// PartialCredit is the fraction of a probe's weight awarded when it fails.
	PartialCredit float64
	// CompileRetention scales every category when compilation fails.
	CompileRetention float64
	// ExecutionRetention scales every category when the program compiled but did not run.
	ExecutionRetention float64
}

// StrictRubric awards points exactly as the rubric is written.
var StrictRubric = Rubric{
	Name:               "strict",
	PartialCredit:      0,
	CompileRetention:   0.8,
	ExecutionRetention: 0.95,
}

// LenientRubric gives partial credit for missing items and softer penalties.
var LenientRubric = Rubric{
	Name:               "lenient",
	PartialCredit:      0.2,
	CompileRetention:   0.9,
	ExecutionRetention: 0.98,
}

// RubricByName resolves a configured rubric name. An empty name selects the strict rubric.
func RubricByName(name string) (Rubric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrictRubric.Name:
		return StrictRubric, nil
	case LenientRubric.Name, "easy":
		return LenientRubric, nil
	default:
		return Rubric{}, fmt.Errorf("unknown rubric %q", name)
	}
}
