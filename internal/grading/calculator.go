package grading

import "math"

// Calculator maps an analysis report and run outcome to a grade.
type Calculator struct {
	rubric Rubric
}

// NewCalculator constructs a calculator for the given rubric.
func NewCalculator(rubric Rubric) Calculator {
	return Calculator{rubric: rubric}
}

// Rubric returns the rubric the calculator applies.
func (c Calculator) Rubric() Rubric {
	return c.rubric
}

// Calculate scores a submission. Test results are accepted for parity with the
// grading pipeline but award no points of their own.
func (c Calculator) Calculate(analysis AnalysisReport, compilationSuccess, executionSuccess bool, _ []TestResult) GradeBreakdown {
	points := make([]int, len(Categories))
	for i, category := range Categories {
		points[i] = clamp(round(c.subtotal(category, analysis.Group(category))), 0, CategoryMax)
	}

	factor := 1.0
	switch {
	case !compilationSuccess:
		factor = c.rubric.CompileRetention
	case !executionSuccess:
		factor = c.rubric.ExecutionRetention
	}
	if factor != 1.0 {
		for i := range points {
			points[i] = clamp(round(float64(points[i])*factor), 0, CategoryMax)
		}
	}

	sum := 0
	for _, p := range points {
		sum += p
	}
	total := clamp(sum, 0, MaxScore)

	if sum > 0 && abs(sum-total) > 1 {
		scale := float64(total) / float64(sum)
		sum = 0
		for i := range points {
			points[i] = clamp(round(float64(points[i])*scale), 0, CategoryMax)
			sum += points[i]
		}
	}
	total = clamp(sum, 0, MaxScore)

	return GradeBreakdown{
		TransactionHistory: points[0],
		PortfolioManager:   points[1],
		Display:            points[2],
		Standards:          points[3],
		Total:              total,
	}
}

func (c Calculator) subtotal(category Category, set ProbeSet) float64 {
	var subtotal float64
	for _, probe := range Probes(category) {
		if set[probe.Name] {
			subtotal += probe.Weight
		} else {
			subtotal += probe.Weight * c.rubric.PartialCredit
		}
	}
	return subtotal
}

func round(v float64) int {
	return int(math.Round(v))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
